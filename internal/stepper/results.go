package stepper

import (
	"fmt"
	"sync/atomic"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
)

// MatchResult is one lane whose digest hit the target set.
type MatchResult struct {
	Lane        uint32
	Hash        digest.Hash
	Compression digest.Compression
}

// ResultBuffer is a bounded append-only buffer filled concurrently by check
// kernels. Appends past capacity are counted but not stored.
type ResultBuffer struct {
	items []MatchResult
	count atomic.Uint32
}

// NewResultBuffer allocates a buffer holding up to capacity matches.
func NewResultBuffer(capacity int) *ResultBuffer {
	return &ResultBuffer{items: make([]MatchResult, capacity)}
}

// Cap returns the number of matches the buffer can hold.
func (r *ResultBuffer) Cap() int {
	return len(r.items)
}

// Append records m. Safe for concurrent use.
func (r *ResultBuffer) Append(m MatchResult) {
	i := r.count.Add(1) - 1
	if int(i) < len(r.items) {
		r.items[i] = m
	}
}

// Drain returns the buffered matches and empties the buffer. When more
// matches were appended than fit, nothing is returned and the error wraps
// ErrResultBufferOverflow; the caller must replay the work with fewer lanes.
func (r *ResultBuffer) Drain() ([]MatchResult, error) {
	n := int(r.count.Swap(0))
	if n > len(r.items) {
		return nil, fmt.Errorf("%w: %d matches for capacity %d", ErrResultBufferOverflow, n, len(r.items))
	}
	out := make([]MatchResult, n)
	copy(out, r.items[:n])
	return out, nil
}
