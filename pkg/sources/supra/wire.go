package supra

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// PullRequest is pull_service.PullRequest.
type PullRequest struct {
	PairIndexes []uint32
	ChainType   string
}

// PullResponseEvm is pull_service.PullResponseEvm.
type PullResponseEvm struct {
	PairIndexes []uint32
	ProofBytes  []byte
}

// PullResponse is pull_service.PullResponse. Only the evm branch of the
// oneof is decoded; other branches leave Evm nil.
type PullResponse struct {
	Evm *PullResponseEvm
}

type wireMessage interface {
	marshalWire() []byte
	unmarshalWire(b []byte) error
}

func (m *PullRequest) marshalWire() []byte {
	var b []byte
	if len(m.PairIndexes) > 0 {
		var packed []byte
		for _, p := range m.PairIndexes {
			packed = protowire.AppendVarint(packed, uint64(p))
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if m.ChainType != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.ChainType)
	}
	return b
}

func (m *PullRequest) unmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			idx, err := unpackVarints(v)
			if err != nil {
				return err
			}
			m.PairIndexes = append(m.PairIndexes, idx...)
		case num == 1 && typ == protowire.VarintType:
			m.PairIndexes = append(m.PairIndexes, uint32(n))
		case num == 2 && typ == protowire.BytesType:
			m.ChainType = string(v)
		}
		return nil
	})
}

func (m *PullResponseEvm) marshalWire() []byte {
	var b []byte
	if len(m.PairIndexes) > 0 {
		var packed []byte
		for _, p := range m.PairIndexes {
			packed = protowire.AppendVarint(packed, uint64(p))
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(m.ProofBytes) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.ProofBytes)
	}
	return b
}

func (m *PullResponseEvm) unmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error {
		switch {
		case num == 1 && typ == protowire.BytesType:
			idx, err := unpackVarints(v)
			if err != nil {
				return err
			}
			m.PairIndexes = append(m.PairIndexes, idx...)
		case num == 1 && typ == protowire.VarintType:
			m.PairIndexes = append(m.PairIndexes, uint32(n))
		case num == 2 && typ == protowire.BytesType:
			m.ProofBytes = append([]byte(nil), v...)
		}
		return nil
	})
}

func (m *PullResponse) marshalWire() []byte {
	if m.Evm == nil {
		return nil
	}
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	return protowire.AppendBytes(b, m.Evm.marshalWire())
}

func (m *PullResponse) unmarshalWire(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != 1 || typ != protowire.BytesType {
			return nil
		}
		evm := &PullResponseEvm{}
		if err := evm.unmarshalWire(v); err != nil {
			return err
		}
		m.Evm = evm
		return nil
	})
}

// walkFields calls fn for every field; v holds length-delimited payloads and
// n holds varint values. Unknown wire types are skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return protowire.ParseError(tagLen)
		}
		b = b[tagLen:]

		switch typ {
		case protowire.VarintType:
			n, l := protowire.ConsumeVarint(b)
			if l < 0 {
				return protowire.ParseError(l)
			}
			if err := fn(num, typ, nil, n); err != nil {
				return err
			}
			b = b[l:]
		case protowire.BytesType:
			v, l := protowire.ConsumeBytes(b)
			if l < 0 {
				return protowire.ParseError(l)
			}
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
			b = b[l:]
		default:
			l := protowire.ConsumeFieldValue(num, typ, b)
			if l < 0 {
				return protowire.ParseError(l)
			}
			b = b[l:]
		}
	}
	return nil
}

func unpackVarints(b []byte) ([]uint32, error) {
	var out []uint32
	for len(b) > 0 {
		v, l := protowire.ConsumeVarint(b)
		if l < 0 {
			return nil, protowire.ParseError(l)
		}
		out = append(out, uint32(v))
		b = b[l:]
	}
	return out, nil
}

// wireCodec is a gRPC codec for the pull service messages. It speaks the
// protobuf wire format without generated code.
type wireCodec struct{}

var _ encoding.Codec = wireCodec{}

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("supra codec: cannot marshal %T", v)
	}
	return m.marshalWire(), nil
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("supra codec: cannot unmarshal into %T", v)
	}
	return m.unmarshalWire(data)
}

func (wireCodec) Name() string { return "proto" }
