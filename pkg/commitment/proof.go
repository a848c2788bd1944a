package commitment

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// CreateProof returns a Merkle proof of packed that keeps only the
// dictionary entries for ids. Every other branch, leaves included, is
// replaced by a pruned branch cell, so the proof resolves to the same root
// hash as the full commitment and reveals nothing else.
func CreateProof(packed *cell.Cell, ids []*big.Int) (*cell.Cell, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no assets requested", ErrIncompletePackaging)
	}

	s := packed.BeginParse()
	if _, err := s.LoadUInt(32); err != nil {
		return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformedCommitment, err)
	}
	hasDict, err := s.LoadBoolBit()
	if err != nil || !hasDict {
		return nil, fmt.Errorf("%w: empty dictionary", ErrMalformedCommitment)
	}
	root, err := s.LoadRef()
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary root: %w", ErrMalformedCommitment, err)
	}

	keys := make([][]bool, len(ids))
	for i, id := range ids {
		keys[i] = keyBits(id)
	}

	path := &proofPath{}
	if err := walkDict(root, KeyBits, keys, path.ref(0)); err != nil {
		return nil, err
	}

	body, err := pruneOutside(packed, path)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 1+32+2)
	data[0] = byte(cell.MerkleProofCellType)
	copy(data[1:], body.Hash(0))
	binary.BigEndian.PutUint16(data[1+32:], body.Depth(0))

	return cell.FromRawUnsafe(cell.RawUnsafeCell{
		IsSpecial: true,
		LevelMask: cell.LevelMask{Mask: levelMask(body) >> 1},
		BitsSz:    uint(len(data) * 8),
		Data:      data,
		Refs:      []*cell.Cell{body},
	}), nil
}

// proofPath marks the refs that stay in a proof.
type proofPath struct {
	refs [4]*proofPath
}

func (p *proofPath) ref(i int) *proofPath {
	if p.refs[i] == nil {
		p.refs[i] = &proofPath{}
	}
	return p.refs[i]
}

// pruneOutside copies c, keeping refs on path and pruning every other ref.
func pruneOutside(c *cell.Cell, path *proofPath) (*cell.Cell, error) {
	raw := c.ToRawUnsafe()
	if raw.IsSpecial {
		return nil, fmt.Errorf("%w: unexpected exotic cell", ErrMalformedCommitment)
	}

	mask := raw.LevelMask.Mask
	refs := make([]*cell.Cell, len(raw.Refs))
	for i, r := range raw.Refs {
		var err error
		if path.refs[i] != nil {
			refs[i], err = pruneOutside(r, path.refs[i])
		} else {
			refs[i], err = prunedBranch(r, raw.LevelMask.GetLevel())
		}
		if err != nil {
			return nil, err
		}
		mask |= levelMask(refs[i])
	}

	return cell.FromRawUnsafe(cell.RawUnsafeCell{
		LevelMask: cell.LevelMask{Mask: mask},
		BitsSz:    raw.BitsSz,
		Data:      append([]byte(nil), raw.Data...),
		Refs:      refs,
	}), nil
}

// prunedBranch replaces c with its hashes and depths.
func prunedBranch(c *cell.Cell, parentLevel int) (*cell.Cell, error) {
	own := c.ToRawUnsafe().LevelMask
	lvl := own.GetLevel()
	if parentLevel >= 3 || lvl >= 3 {
		return nil, fmt.Errorf("%w: cell level too high to prune", ErrMalformedCommitment)
	}

	data := make([]byte, 2+(lvl+1)*(32+2))
	data[0] = byte(cell.PrunedCellType)
	data[1] = own.Mask | 1<<parentLevel
	for l := 0; l <= lvl; l++ {
		copy(data[2+l*32:], c.Hash(l))
		binary.BigEndian.PutUint16(data[2+(lvl+1)*32+2*l:], c.Depth(l))
	}

	return cell.FromRawUnsafe(cell.RawUnsafeCell{
		IsSpecial: true,
		LevelMask: cell.LevelMask{Mask: data[1]},
		BitsSz:    uint(len(data) * 8),
		Data:      data,
	}), nil
}

func levelMask(c *cell.Cell) byte {
	return c.ToRawUnsafe().LevelMask.Mask
}

// CheckProof reports whether proof commits to a cell with the given hash.
func CheckProof(proof *cell.Cell, hash []byte) error {
	if err := cell.CheckProof(proof, hash); err != nil {
		return fmt.Errorf("%w: %w", ErrProofMismatch, err)
	}
	return nil
}

// walkDict marks every edge leading to keys in path. Labels follow the
// hml_short, hml_long and hml_same encodings of TL-B HashmapE.
func walkDict(s *cell.Slice, m uint, keys [][]bool, path *proofPath) error {
	label, err := loadLabel(s, m)
	if err != nil {
		return err
	}

	var matched [][]bool
	for _, k := range keys {
		if hasPrefix(k, label) {
			matched = append(matched, k[len(label):])
		}
	}
	if len(matched) != len(keys) {
		return fmt.Errorf("%w: requested asset is not in the commitment", ErrIncompletePackaging)
	}

	m -= uint(len(label))
	if m == 0 {
		return nil
	}

	left, err := s.LoadRef()
	if err != nil {
		return fmt.Errorf("%w: fork: %w", ErrMalformedCommitment, err)
	}
	right, err := s.LoadRef()
	if err != nil {
		return fmt.Errorf("%w: fork: %w", ErrMalformedCommitment, err)
	}

	var byBit [2][][]bool
	for _, k := range matched {
		b := 0
		if k[0] {
			b = 1
		}
		byBit[b] = append(byBit[b], k[1:])
	}
	for b, child := range []*cell.Slice{left, right} {
		if len(byBit[b]) == 0 {
			continue
		}
		if err := walkDict(child, m-1, byBit[b], path.ref(b)); err != nil {
			return err
		}
	}
	return nil
}

func loadLabel(s *cell.Slice, m uint) ([]bool, error) {
	lenBits := uint(bits.Len(m))

	first, err := s.LoadBoolBit()
	if err != nil {
		return nil, labelErr(err)
	}
	if !first {
		// hml_short: unary length then bits.
		var n uint
		for {
			one, err := s.LoadBoolBit()
			if err != nil {
				return nil, labelErr(err)
			}
			if !one {
				break
			}
			n++
		}
		return loadBits(s, n)
	}

	second, err := s.LoadBoolBit()
	if err != nil {
		return nil, labelErr(err)
	}
	if !second {
		// hml_long
		n, err := s.LoadUInt(lenBits)
		if err != nil {
			return nil, labelErr(err)
		}
		return loadBits(s, uint(n))
	}

	// hml_same
	v, err := s.LoadBoolBit()
	if err != nil {
		return nil, labelErr(err)
	}
	n, err := s.LoadUInt(lenBits)
	if err != nil {
		return nil, labelErr(err)
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func loadBits(s *cell.Slice, n uint) ([]bool, error) {
	out := make([]bool, n)
	for i := range out {
		b, err := s.LoadBoolBit()
		if err != nil {
			return nil, labelErr(err)
		}
		out[i] = b
	}
	return out, nil
}

func labelErr(err error) error {
	return fmt.Errorf("%w: dictionary label: %w", ErrMalformedCommitment, err)
}

func keyBits(id *big.Int) []bool {
	out := make([]bool, KeyBits)
	for i := range out {
		out[i] = id.Bit(KeyBits-1-i) == 1
	}
	return out
}

func hasPrefix(k, prefix []bool) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
