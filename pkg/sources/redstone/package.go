package redstone

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

const (
	feedIDSize        = 32
	valueSize         = 32
	timestampSize     = 6
	valueSizeFieldLen = 4
	countFieldLen     = 3
	signatureLen      = 65
)

// DataPoint is one feed value inside a package.
type DataPoint struct {
	DataFeedID string          `json:"dataFeedId"`
	Value      decimal.Decimal `json:"value"`
}

// SignedDataPackage is a gateway data package as served by
// /data-packages/latest/{dataServiceId}.
type SignedDataPackage struct {
	DataPoints            []DataPoint `json:"dataPoints"`
	TimestampMilliseconds int64       `json:"timestampMilliseconds"`
	Signature             string      `json:"signature"`
	SignerAddress         string      `json:"signerAddress,omitempty"`
	DataPackageID         string      `json:"dataPackageId,omitempty"`
}

// Timestamp returns the package timestamp.
func (p *SignedDataPackage) Timestamp() time.Time {
	return time.UnixMilli(p.TimestampMilliseconds)
}

// Serialize encodes the signed part of the package: every data point as
// bytes32 feed id and 32-byte scaled value (sorted by feed id), followed by
// a 6-byte timestamp, 4-byte value size and 3-byte data point count.
func (p *SignedDataPackage) Serialize(decimals int32) ([]byte, error) {
	points := make([]DataPoint, len(p.DataPoints))
	copy(points, p.DataPoints)
	sort.Slice(points, func(i, j int) bool { return points[i].DataFeedID < points[j].DataFeedID })

	out := make([]byte, 0, len(points)*(feedIDSize+valueSize)+timestampSize+valueSizeFieldLen+countFieldLen)
	for _, dp := range points {
		id, err := feedIDBytes(dp.DataFeedID)
		if err != nil {
			return nil, err
		}
		v, err := scaledValue(dp.Value, decimals)
		if err != nil {
			return nil, err
		}
		out = append(out, id[:]...)
		out = append(out, v.FillBytes(make([]byte, valueSize))...)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(p.TimestampMilliseconds))
	out = append(out, ts[8-timestampSize:]...)

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], valueSize)
	out = append(out, size[:]...)

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(points)))
	out = append(out, count[4-countFieldLen:]...)
	return out, nil
}

// RecoverSigner returns the address that signed keccak256(Serialize()).
func (p *SignedDataPackage) RecoverSigner(decimals int32) (common.Address, error) {
	msg, err := p.Serialize(decimals)
	if err != nil {
		return common.Address{}, err
	}
	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: signature encoding: %w", sources.ErrInvalidResponse, err)
	}
	if len(sig) != signatureLen {
		return common.Address{}, fmt.Errorf("%w: signature of %d bytes", sources.ErrInvalidResponse, len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", sources.ErrInvalidSigner, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Value returns the value of feedID carried by the package, decoded as the
// unsigned integer that was signed and rescaled by 10^decimals.
func (p *SignedDataPackage) Value(feedID string, decimals int32) (decimal.Decimal, bool, error) {
	for _, dp := range p.DataPoints {
		if dp.DataFeedID != feedID {
			continue
		}
		v, err := scaledValue(dp.Value, decimals)
		if err != nil {
			return decimal.Zero, false, err
		}
		return decimal.NewFromBigInt(v, -decimals), true, nil
	}
	return decimal.Zero, false, nil
}

func feedIDBytes(id string) ([feedIDSize]byte, error) {
	var out [feedIDSize]byte
	if len(id) == 0 || len(id) > feedIDSize {
		return out, fmt.Errorf("%w: data feed id %q", sources.ErrInvalidResponse, id)
	}
	copy(out[:], id)
	return out, nil
}

func scaledValue(v decimal.Decimal, decimals int32) (*big.Int, error) {
	if v.IsNegative() {
		return nil, fmt.Errorf("%w: negative value %s", sources.ErrInvalidResponse, v)
	}
	return v.Shift(decimals).Round(0).BigInt(), nil
}
