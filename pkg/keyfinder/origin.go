package keyfinder

import (
	"fmt"
	"math/big"

	"github.com/mahdiidarabi/keyfinder/internal/parser"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/stepper"
)

// Origin selects where candidate private keys come from. It is either a
// SequentialRange or an ExplicitList.
type Origin interface {
	// Validate checks the origin before any device work starts.
	Validate() error

	isOrigin()
}

// SequentialRange enumerates Start, Start+Stride, Start+2·Stride, ... modulo N.
type SequentialRange struct {
	Start  Scalar
	Stride Scalar

	// End optionally bounds the range (inclusive). Nil runs until the
	// iteration limit or cancellation.
	End *Scalar
}

func (SequentialRange) isOrigin() {}

// Validate checks that Start is a valid key, Stride is non-zero and End, if
// set, is not below Start.
func (r SequentialRange) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("%w: range start is zero", secp.ErrOutOfRangeKey)
	}
	if r.Stride.IsZero() {
		return stepper.ErrInvalidStride
	}
	if r.End != nil && r.End.Cmp(r.Start) < 0 {
		return fmt.Errorf("%w: end %s below start %s", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Count returns the number of keys in a bounded range, or nil when End is
// unset.
func (r SequentialRange) Count() *big.Int {
	if r.End == nil {
		return nil
	}
	n := new(big.Int).Sub(r.End.Big(), r.Start.Big())
	n.Quo(n, r.Stride.Big())
	return n.Add(n, big.NewInt(1))
}

// KeyAt returns the key at the given offset, Start + offset·Stride mod N.
func (r SequentialRange) KeyAt(offset Scalar) Scalar {
	return r.Start.Add(offset.Mul(r.Stride))
}

// rangeBound counts the keys of a bounded range that are still to be
// searched. A nil remaining means the range is unbounded.
type rangeBound struct {
	remaining *big.Int
}

func newRangeBound(count *big.Int) rangeBound {
	if count == nil {
		return rangeBound{}
	}
	return rangeBound{remaining: new(big.Int).Set(count)}
}

// lanes shrinks a batch of size lanes to the range when the range is smaller.
func (b rangeBound) lanes(size int) int {
	if b.remaining != nil && b.remaining.Cmp(big.NewInt(int64(size))) < 0 {
		return int(b.remaining.Int64())
	}
	return size
}

// take consumes one iteration of lanes keys. It returns how many of them lie
// inside the range and whether the range is exhausted.
func (b rangeBound) take(lanes int) (valid uint64, done bool) {
	if b.remaining == nil {
		return uint64(lanes), false
	}
	n := big.NewInt(int64(lanes))
	if b.remaining.Cmp(n) <= 0 {
		valid = b.remaining.Uint64()
		b.remaining.SetInt64(0)
		return valid, true
	}
	b.remaining.Sub(b.remaining, n)
	return uint64(lanes), false
}

// ExplicitList searches exactly the listed keys.
type ExplicitList struct {
	Keys []Scalar
}

func (ExplicitList) isOrigin() {}

// Validate fails with ErrNoValidKeys for an empty list.
func (l ExplicitList) Validate() error {
	if len(l.Keys) == 0 {
		return ErrNoValidKeys
	}
	return nil
}

// NewExplicitList drops zero and repeated keys, keeping first occurrences in
// order, and returns a warning for each dropped entry.
func NewExplicitList(keys []Scalar) (ExplicitList, []Warning) {
	var (
		out      = make([]Scalar, 0, len(keys))
		warnings []Warning
		seen     = make(map[secp.Uint256]struct{}, len(keys))
	)
	for i, k := range keys {
		if k.IsZero() {
			warnings = append(warnings, Warning{Line: i + 1, Text: k.String(),
				Err: fmt.Errorf("%w: zero", secp.ErrOutOfRangeKey)})
			continue
		}
		w := k.Words()
		if _, ok := seen[w]; ok {
			warnings = append(warnings, Warning{Line: i + 1, Text: k.String(), Err: parser.ErrDuplicateKey})
			continue
		}
		seen[w] = struct{}{}
		out = append(out, k)
	}
	return ExplicitList{Keys: out}, warnings
}

// pages splits the list into batches of at most size keys.
func (l ExplicitList) pages(size int) []ExplicitList {
	var out []ExplicitList
	for lo := 0; lo < len(l.Keys); lo += size {
		out = append(out, ExplicitList{Keys: l.Keys[lo:min(lo+size, len(l.Keys))]})
	}
	return out
}
