package pyth

import (
	"encoding/binary"
	"fmt"

	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

const (
	accumulatorMagic     = "PNAU"
	accumulatorMajor     = 1
	updateTypeWormhole   = 0
	vaaSignerCountOffset = 5
	vaaSignaturesOffset  = 6
	signatureRecordSize  = 66
	digestSize           = 20
	messageTypePrice     = 0
	priceMessageSize     = 1 + 32 + 8 + 8 + 4 + 8 + 8 + 8
)

// GuardianSignature is one record of the VAA signature section.
type GuardianSignature struct {
	Index     uint8
	Signature [65]byte
}

// VAA is the guardian-signed part of an accumulator update.
type VAA struct {
	Signatures []GuardianSignature
	// Body is everything after the signature records; it is what guardians sign.
	Body      []byte
	Timestamp uint32
	Root      [digestSize]byte
}

// Update is one price message with its Merkle path to the VAA root.
type Update struct {
	Message    []byte
	Proof      [][digestSize]byte
	ProofValid bool
}

// AccumulatorUpdate is a decoded Hermes accumulator payload.
type AccumulatorUpdate struct {
	MinorVersion uint8
	VAA          VAA
	Updates      []Update
}

// PriceMessage is a price feed message carried by an update.
type PriceMessage struct {
	ID              [32]byte
	Price           int64
	Conf            uint64
	Expo            int32
	PublishTime     int64
	PrevPublishTime int64
	EMAPrice        int64
	EMAConf         uint64
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated %s at offset %d", sources.ErrUnsupportedFormat, what, r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8(what string) (uint8, error) {
	b, err := r.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(what string) (uint16, error) {
	b, err := r.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ParseAccumulatorUpdate decodes a Hermes accumulator update and checks every
// message against the VAA root. A failed inclusion proof is recorded on the
// update rather than returned, so the caller can reject only that feed.
func ParseAccumulatorUpdate(data []byte) (*AccumulatorUpdate, error) {
	r := &reader{buf: data}

	magic, err := r.take(4, "magic")
	if err != nil {
		return nil, err
	}
	if string(magic) != accumulatorMagic {
		return nil, fmt.Errorf("%w: magic %x", sources.ErrUnsupportedFormat, magic)
	}
	major, err := r.u8("major version")
	if err != nil {
		return nil, err
	}
	if major != accumulatorMajor {
		return nil, fmt.Errorf("%w: major version %d", sources.ErrUnsupportedFormat, major)
	}
	minor, err := r.u8("minor version")
	if err != nil {
		return nil, err
	}

	trailing, err := r.u8("trailing header size")
	if err != nil {
		return nil, err
	}
	if _, err := r.take(int(trailing), "trailing header"); err != nil {
		return nil, err
	}

	updateType, err := r.u8("update type")
	if err != nil {
		return nil, err
	}
	if updateType != updateTypeWormhole {
		return nil, fmt.Errorf("%w: accumulator update type %d", sources.ErrUnsupportedFormat, updateType)
	}

	vaaLen, err := r.u16("vaa length")
	if err != nil {
		return nil, err
	}
	raw, err := r.take(int(vaaLen), "vaa")
	if err != nil {
		return nil, err
	}
	vaa, err := parseVAA(raw)
	if err != nil {
		return nil, err
	}

	count, err := r.u8("update count")
	if err != nil {
		return nil, err
	}

	out := &AccumulatorUpdate{MinorVersion: minor, VAA: *vaa}
	for i := 0; i < int(count); i++ {
		msgLen, err := r.u16("message length")
		if err != nil {
			return nil, err
		}
		msg, err := r.take(int(msgLen), "message")
		if err != nil {
			return nil, err
		}
		proofLen, err := r.u8("proof length")
		if err != nil {
			return nil, err
		}
		proof := make([][digestSize]byte, proofLen)
		for j := range proof {
			sib, err := r.take(digestSize, "proof sibling")
			if err != nil {
				return nil, err
			}
			copy(proof[j][:], sib)
		}

		out.Updates = append(out.Updates, Update{
			Message:    msg,
			Proof:      proof,
			ProofValid: VerifyProof(msg, proof, vaa.Root),
		})
	}

	return out, nil
}

func parseVAA(raw []byte) (*VAA, error) {
	if len(raw) <= vaaSignerCountOffset {
		return nil, fmt.Errorf("%w: vaa too short (%d bytes)", sources.ErrUnsupportedFormat, len(raw))
	}
	n := int(raw[vaaSignerCountOffset])

	bodyStart := vaaSignaturesOffset + n*signatureRecordSize
	if bodyStart+4+digestSize > len(raw) {
		return nil, fmt.Errorf("%w: vaa of %d bytes cannot hold %d signatures and a body",
			sources.ErrUnsupportedFormat, len(raw), n)
	}

	vaa := &VAA{Signatures: make([]GuardianSignature, n)}
	for i := 0; i < n; i++ {
		rec := raw[vaaSignaturesOffset+i*signatureRecordSize:]
		vaa.Signatures[i].Index = rec[0]
		copy(vaa.Signatures[i].Signature[:], rec[1:signatureRecordSize])
	}

	vaa.Body = raw[bodyStart:]
	vaa.Timestamp = binary.BigEndian.Uint32(vaa.Body[:4])
	copy(vaa.Root[:], vaa.Body[len(vaa.Body)-digestSize:])
	return vaa, nil
}

// ParsePriceMessage decodes a price feed message. ok is false for other
// message types, which callers skip.
func ParsePriceMessage(msg []byte) (m PriceMessage, ok bool, err error) {
	if len(msg) == 0 {
		return m, false, fmt.Errorf("%w: empty message", sources.ErrUnsupportedFormat)
	}
	if msg[0] != messageTypePrice {
		return m, false, nil
	}
	if len(msg) < priceMessageSize {
		return m, false, fmt.Errorf("%w: price message of %d bytes", sources.ErrUnsupportedFormat, len(msg))
	}

	be := binary.BigEndian
	p := msg[1:]
	copy(m.ID[:], p[:32])
	p = p[32:]
	m.Price = int64(be.Uint64(p))
	m.Conf = be.Uint64(p[8:])
	m.Expo = int32(be.Uint32(p[16:]))
	m.PublishTime = int64(be.Uint64(p[20:]))
	m.PrevPublishTime = int64(be.Uint64(p[28:]))
	m.EMAPrice = int64(be.Uint64(p[36:]))
	if len(p) >= 52 {
		m.EMAConf = be.Uint64(p[44:])
	}
	return m, true, nil
}
