package supra

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

// targetDecimals is the fixed precision every pair price is rescaled to.
const targetDecimals = 9

var (
	//go:embed resources/oracle_proof.json
	oracleProofJSON []byte
	//go:embed resources/signed_coherent_cluster.json
	signedClusterJSON []byte

	oracleProofArgs   = mustArguments(oracleProofJSON)
	signedClusterArgs = mustArguments(signedClusterJSON)
)

func mustArguments(data []byte) abi.Arguments {
	args, err := parseArguments(data)
	if err != nil {
		panic(err)
	}
	return args
}

func parseArguments(data []byte) (abi.Arguments, error) {
	var raw []abi.ArgumentMarshaling
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	args := make(abi.Arguments, 0, len(raw))
	for _, r := range raw {
		typ, err := abi.NewType(r.Type, r.InternalType, r.Components)
		if err != nil {
			return nil, fmt.Errorf("abi type %s: %w", r.Name, err)
		}
		args = append(args, abi.Argument{Name: r.Name, Type: typ})
	}
	return args, nil
}

// PairPrice is one pair extracted from a proof, rescaled to 9 decimals.
type PairPrice struct {
	Pair      uint64
	Price     *big.Int
	Decimals  uint64
	Timestamp time.Time
}

// DecodeProof ABI-decodes an evm proof and returns every pair flagged in the
// pair mask, walking clusters in order.
func DecodeProof(proofBytes []byte) ([]PairPrice, error) {
	values, err := oracleProofArgs.Unpack(proofBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: oracle proof: %w", sources.ErrUnsupportedFormat, err)
	}
	proof := reflect.ValueOf(values[0])

	var clusters [][]byte
	var mask []bool
	if err := field(proof, "ClustersRaw", &clusters); err != nil {
		return nil, err
	}
	if err := field(proof, "PairMask", &mask); err != nil {
		return nil, err
	}

	var out []PairPrice
	counter := 0
	for i, raw := range clusters {
		scc, err := signedClusterArgs.Unpack(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: cluster %d: %w", sources.ErrUnsupportedFormat, i, err)
		}
		cc := reflect.ValueOf(scc[0]).FieldByName("Cc")
		if !cc.IsValid() {
			return nil, fmt.Errorf("%w: cluster %d has no cc", sources.ErrUnsupportedFormat, i)
		}

		var pairs, prices, timestamps, decimals []*big.Int
		for name, dst := range map[string]*[]*big.Int{
			"Pair": &pairs, "Prices": &prices, "Timestamp": &timestamps, "Decimals": &decimals,
		} {
			if err := field(cc, name, dst); err != nil {
				return nil, err
			}
		}
		if len(prices) != len(pairs) || len(timestamps) != len(pairs) || len(decimals) != len(pairs) {
			return nil, fmt.Errorf("%w: cluster %d has ragged arrays", sources.ErrUnsupportedFormat, i)
		}

		for j := range pairs {
			counter++
			if counter > len(mask) {
				return nil, fmt.Errorf("%w: pair mask shorter than %d pairs", sources.ErrUnsupportedFormat, counter)
			}
			if !mask[counter-1] {
				continue
			}
			if !pairs[j].IsUint64() || !decimals[j].IsUint64() || !timestamps[j].IsInt64() {
				return nil, fmt.Errorf("%w: pair entry %d out of range", sources.ErrUnsupportedFormat, counter)
			}
			d := decimals[j].Uint64()
			out = append(out, PairPrice{
				Pair:      pairs[j].Uint64(),
				Price:     Rescale(prices[j], d),
				Decimals:  d,
				Timestamp: time.UnixMilli(timestamps[j].Int64()),
			})
		}
	}
	return out, nil
}

// Rescale converts price with decimals places to 9 decimals, truncating.
func Rescale(price *big.Int, decimals uint64) *big.Int {
	out := new(big.Int).Set(price)
	switch {
	case decimals > targetDecimals:
		return out.Quo(out, pow10(decimals-targetDecimals))
	case decimals < targetDecimals:
		return out.Mul(out, pow10(targetDecimals-decimals))
	}
	return out
}

func pow10(n uint64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(n), nil)
}

// field copies the struct field name of v into dst.
func field[T any](v reflect.Value, name string, dst *T) error {
	f := v.FieldByName(name)
	if !f.IsValid() {
		return fmt.Errorf("%w: missing field %s", sources.ErrUnsupportedFormat, name)
	}
	val, ok := f.Interface().(T)
	if !ok {
		return fmt.Errorf("%w: field %s has type %s", sources.ErrUnsupportedFormat, name, f.Type())
	}
	*dst = val
	return nil
}
