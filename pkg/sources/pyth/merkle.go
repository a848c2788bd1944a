package pyth

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// LeafDigest is keccak256(0x00 || message) truncated to 20 bytes.
func LeafDigest(message []byte) [digestSize]byte {
	var out [digestSize]byte
	copy(out[:], crypto.Keccak256([]byte{leafPrefix}, message)[:digestSize])
	return out
}

// NodeDigest combines two digests as keccak256(0x01 || min || max) truncated
// to 20 bytes, ordering the pair as big-endian integers.
func NodeDigest(a, b [digestSize]byte) [digestSize]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var out [digestSize]byte
	copy(out[:], crypto.Keccak256([]byte{nodePrefix}, a[:], b[:])[:digestSize])
	return out
}

// RootFromProof folds the sibling path over the message's leaf digest.
func RootFromProof(message []byte, proof [][digestSize]byte) [digestSize]byte {
	cur := LeafDigest(message)
	for _, sib := range proof {
		cur = NodeDigest(cur, sib)
	}
	return cur
}

// VerifyProof reports whether message is included under root.
func VerifyProof(message []byte, proof [][digestSize]byte, root [digestSize]byte) bool {
	return RootFromProof(message, proof) == root
}
