package commitment

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
)

// OpVerifyPrices is the verifier entry point opcode.
const OpVerifyPrices = 0x3b3cca17

// OracleCommitment is one oracle's signed packed commitment.
type OracleCommitment struct {
	ID        uint32
	Packed    *cell.Cell
	Signature []byte
}

// OracleProof is one link of the oracles chain.
type OracleProof struct {
	ID        uint32
	Proof     *cell.Cell
	Signature []byte
}

// AssetPrice is one link of the assets chain.
type AssetPrice struct {
	ID    *big.Int
	Price *big.Int
}

// Request is an assembled verify request before serialization.
type Request struct {
	Prices []AssetPrice  // ascending by ID
	Proofs []OracleProof // ascending by oracle ID
}

// BuildRequest computes the per-asset median across oracles and a pruned
// proof of each oracle's commitment restricted to the requested assets.
func BuildRequest(oracles []OracleCommitment, requested []assets.Asset) (*Request, error) {
	if len(oracles) == 0 {
		return nil, fmt.Errorf("%w: no oracles", ErrIncompletePackaging)
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrIncompletePackaging)
	}

	sorted := make([]OracleCommitment, len(oracles))
	copy(sorted, oracles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID == sorted[i-1].ID {
			return nil, fmt.Errorf("%w: duplicate oracle %d", ErrIncompletePackaging, sorted[i].ID)
		}
	}

	ids := make([]*big.Int, len(requested))
	for i, a := range requested {
		ids[i] = a.ID()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	for i := 1; i < len(ids); i++ {
		if ids[i].Cmp(ids[i-1]) == 0 {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrIncompletePackaging, assetName(ids[i]))
		}
	}

	claimed := make([][]*big.Int, len(ids))
	req := &Request{Proofs: make([]OracleProof, 0, len(sorted))}
	for _, o := range sorted {
		if len(o.Signature) != 64 {
			return nil, fmt.Errorf("%w: oracle %d signature is %d bytes", ErrIncompletePackaging, o.ID, len(o.Signature))
		}
		c, err := Unpack(o.Packed)
		if err != nil {
			return nil, fmt.Errorf("oracle %d: %w", o.ID, err)
		}
		for i, id := range ids {
			p, ok := c.Price(id)
			if !ok {
				return nil, fmt.Errorf("%w: oracle %d has no price for %s", ErrIncompletePackaging, o.ID, assetName(id))
			}
			claimed[i] = append(claimed[i], p)
		}

		proof, err := CreateProof(o.Packed, ids)
		if err != nil {
			return nil, fmt.Errorf("oracle %d: %w", o.ID, err)
		}
		req.Proofs = append(req.Proofs, OracleProof{ID: o.ID, Proof: proof, Signature: o.Signature})
	}

	for i, id := range ids {
		m, err := aggregator.MedianBig(claimed[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIncompletePackaging, assetName(id), err)
		}
		req.Prices = append(req.Prices, AssetPrice{ID: id, Price: m})
	}
	return req, nil
}

// Cell serializes the request as op, ref(assets chain), ref(oracles chain).
func (r *Request) Cell() (*cell.Cell, error) {
	prices, err := PackAssetsChain(r.Prices)
	if err != nil {
		return nil, err
	}
	proofs, err := PackOraclesChain(r.Proofs)
	if err != nil {
		return nil, err
	}
	return cell.BeginCell().
		MustStoreUInt(OpVerifyPrices, 32).
		MustStoreRef(prices).
		MustStoreRef(proofs).
		EndCell(), nil
}

// PackAssetsChain links uint256 id, coins price and a maybe-ref to the next
// asset, in the given order.
func PackAssetsChain(prices []AssetPrice) (*cell.Cell, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrIncompletePackaging)
	}
	var next *cell.Cell
	for i := len(prices) - 1; i >= 0; i-- {
		b := cell.BeginCell().MustStoreBigUInt(prices[i].ID, KeyBits)
		if err := b.StoreBigCoins(prices[i].Price); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPrice, err)
		}
		next = b.MustStoreMaybeRef(next).EndCell()
	}
	return next, nil
}

// PackOraclesChain links uint32 id, ref(proof), the 512-bit signature and a
// maybe-ref to the next oracle, in the given order.
func PackOraclesChain(proofs []OracleProof) (*cell.Cell, error) {
	if len(proofs) == 0 {
		return nil, fmt.Errorf("%w: no oracles", ErrIncompletePackaging)
	}
	var next *cell.Cell
	for i := len(proofs) - 1; i >= 0; i-- {
		p := proofs[i]
		next = cell.BeginCell().
			MustStoreUInt(uint64(p.ID), 32).
			MustStoreRef(p.Proof).
			MustStoreSlice(p.Signature, 512).
			MustStoreMaybeRef(next).
			EndCell()
	}
	return next, nil
}

func assetName(id *big.Int) string {
	if a, ok := assets.FromID(id); ok {
		return a.String()
	}
	return id.String()
}
