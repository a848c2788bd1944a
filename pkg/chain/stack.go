package chain

import (
	"fmt"
	"math/big"
)

// Stack entry types.
const (
	EntryNum   = "num"
	EntryCell  = "cell"
	EntrySlice = "slice"
	EntryTuple = "tuple"
	EntryNull  = "null"
)

// StackEntry is one value returned by a get method. Num is set for numeric
// entries only.
type StackEntry struct {
	Type string
	Num  *big.Int
}

// Stack is a get method result read front to back.
type Stack struct {
	entries []StackEntry
	pos     int
}

// NewStack wraps entries in a reader positioned at the first entry.
func NewStack(entries []StackEntry) *Stack {
	return &Stack{entries: entries}
}

// Len returns the number of unread entries.
func (s *Stack) Len() int {
	return len(s.entries) - s.pos
}

// Skip discards the next n entries.
func (s *Stack) Skip(n int) error {
	if n < 0 || s.pos+n > len(s.entries) {
		return fmt.Errorf("%w: cannot skip %d of %d remaining entries", ErrInvalidStack, n, s.Len())
	}
	s.pos += n
	return nil
}

// ReadBigNumber consumes the next entry, which must be numeric.
func (s *Stack) ReadBigNumber() (*big.Int, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: stack exhausted", ErrInvalidStack)
	}
	e := s.entries[s.pos]
	if e.Type != EntryNum || e.Num == nil {
		return nil, fmt.Errorf("%w: entry %d is %s, expected num", ErrInvalidStack, s.pos, e.Type)
	}
	s.pos++
	return new(big.Int).Set(e.Num), nil
}
