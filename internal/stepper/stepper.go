// Package stepper advances batches of secp256k1 points by a fixed increment
// and tests every point's digest against a target set.
//
// A batch has one lane per starting key. Work is expressed as kernels over a
// lane window [lo, hi) so that a device can split a batch across workers.
// One search iteration runs CheckKernel over all lanes, drains the results and
// then runs AdvanceKernel, so that after i iterations a lane that started at
// key k holds the point (k + i·step)·G.
package stepper

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

var (
	// ErrInvalidStride is returned for a zero step.
	ErrInvalidStride = errors.New("stride must be non-zero")

	// ErrArithmeticInvariant reports a lane whose point reached infinity.
	ErrArithmeticInvariant = errors.New("arithmetic invariant violated")

	// ErrResultBufferOverflow reports more matches than the result buffer holds.
	ErrResultBufferOverflow = errors.New("result buffer overflow")

	// ErrNoIncrement is returned when advancing a batch without an increment.
	ErrNoIncrement = errors.New("batch increment not set")
)

// MinResultCapacity is the smallest usable result buffer. A single lane can
// produce one match per encoding.
const MinResultCapacity = 2

// Fault records a lane that was aborted.
type Fault struct {
	Lane uint32
	Err  error
}

// Batch holds the lane points of one search batch.
type Batch struct {
	xs, ys    []secp.FieldElement
	dead      *roaring.Bitmap
	pendingMu sync.Mutex
	pending   []Fault

	inc    secp.Point
	hasInc bool

	targets   *targetset.Set
	encodings []digest.Compression
	results   *ResultBuffer
	hashers   sync.Pool
}

// NewBatch allocates a batch of lanes testing against targets.
//
// Args:
//   - lanes: Number of starting keys
//   - targets: Digests to match
//   - mode: Public key encodings to digest per lane
//   - resultCapacity: Matches held per check before overflow, at least MinResultCapacity
//
// Returns:
//   - The batch, or an error for invalid parameters
func NewBatch(lanes int, targets *targetset.Set, mode digest.Compression, resultCapacity int) (*Batch, error) {
	if lanes <= 0 {
		return nil, fmt.Errorf("lane count must be positive, got %d", lanes)
	}
	if targets == nil || targets.Len() == 0 {
		return nil, targetset.ErrNoTargets
	}
	encodings := mode.Encodings()
	if len(encodings) == 0 {
		return nil, fmt.Errorf("no public key encoding selected")
	}
	if resultCapacity < MinResultCapacity {
		return nil, fmt.Errorf("result capacity must be at least %d, got %d", MinResultCapacity, resultCapacity)
	}

	b := &Batch{
		xs:        make([]secp.FieldElement, lanes),
		ys:        make([]secp.FieldElement, lanes),
		dead:      roaring.New(),
		targets:   targets,
		encodings: encodings,
		results:   NewResultBuffer(resultCapacity),
	}
	b.hashers.New = func() any { return digest.NewHasher() }
	return b, nil
}

// Lanes returns the batch size.
func (b *Batch) Lanes() int {
	return len(b.xs)
}

// SetIncrement sets the point every lane is advanced by to step·G.
func (b *Batch) SetIncrement(step secp.Scalar) error {
	if step.IsZero() {
		return ErrInvalidStride
	}
	b.inc = secp.ScalarBaseMult(step)
	b.hasInc = true
	return nil
}

// Point returns the current point of lane i. Dead lanes report infinity.
func (b *Batch) Point(i int) secp.Point {
	if b.dead.Contains(uint32(i)) {
		return secp.Infinity()
	}
	return secp.Point{X: b.xs[i], Y: b.ys[i]}
}

// Dead reports whether lane i was aborted.
func (b *Batch) Dead(i int) bool {
	return b.dead.Contains(uint32(i))
}

// LiveLanes returns the number of lanes still being stepped.
func (b *Batch) LiveLanes() int {
	return len(b.xs) - int(b.dead.GetCardinality())
}

// LoadKernel computes the starting point keys[i]·G of each lane. Keys are in
// device layout; a zero key faults its lane.
func (b *Batch) LoadKernel(keys []secp.Uint256) func(lo, hi int) error {
	return func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			k, err := secp.ScalarFromUint256(keys[i])
			if err != nil {
				return fmt.Errorf("failed to load lane %d: %w", i, err)
			}
			p := secp.ScalarBaseMult(k)
			if p.IsInfinity() {
				b.fault(i, fmt.Errorf("%w: lane %d starts at infinity", ErrArithmeticInvariant, i))
				continue
			}
			b.xs[i], b.ys[i] = p.X, p.Y
		}
		return nil
	}
}

// CheckKernel digests every live lane in the window and appends matches to
// the result buffer. It does not modify lane state, so a window can be
// checked again after an overflow.
func (b *Batch) CheckKernel() func(lo, hi int) error {
	return func(lo, hi int) error {
		h := b.hashers.Get().(*digest.Hasher)
		defer b.hashers.Put(h)

		for i := lo; i < hi; i++ {
			if b.dead.Contains(uint32(i)) {
				continue
			}
			p := secp.Point{X: b.xs[i], Y: b.ys[i]}
			for _, c := range b.encodings {
				d := h.Sum(p, c)
				if b.targets.Match(d, c) {
					b.results.Append(MatchResult{Lane: uint32(i), Hash: d, Compression: c})
				}
			}
		}
		return nil
	}
}

// AdvanceKernel adds the increment to every live lane in the window. The
// x-differences of the window share a single field inversion.
func (b *Batch) AdvanceKernel() func(lo, hi int) error {
	return func(lo, hi int) error {
		if !b.hasInc {
			return ErrNoIncrement
		}
		n := hi - lo
		dx := make([]secp.FieldElement, n)
		prefix := make([]secp.FieldElement, n)
		live := make([]bool, n)
		qx, qy := b.inc.X, b.inc.Y

		acc := secp.FieldFromUint64(1)
		for j := 0; j < n; j++ {
			i := lo + j
			if b.dead.Contains(uint32(i)) {
				continue
			}
			d := qx.Sub(b.xs[i])
			if d.IsZero() {
				b.advanceGeneric(i)
				continue
			}
			dx[j], prefix[j], live[j] = d, acc, true
			acc = acc.Mul(d)
		}

		inv := acc.Inverse()
		for j := n - 1; j >= 0; j-- {
			if !live[j] {
				continue
			}
			i := lo + j
			laneInv := inv.Mul(prefix[j])
			inv = inv.Mul(dx[j])

			x, y := b.xs[i], b.ys[i]
			lambda := qy.Sub(y).Mul(laneInv)
			nx := lambda.Square().Sub(x).Sub(qx)
			ny := lambda.Mul(x.Sub(nx)).Sub(y)
			b.xs[i], b.ys[i] = nx, ny
		}
		return nil
	}
}

// advanceGeneric handles a lane sharing its x coordinate with the increment:
// either the lane equals the increment (doubling) or its negation.
func (b *Batch) advanceGeneric(i int) {
	p := secp.Point{X: b.xs[i], Y: b.ys[i]}.Add(b.inc)
	if p.IsInfinity() {
		b.fault(i, fmt.Errorf("%w: lane %d reached infinity", ErrArithmeticInvariant, i))
		return
	}
	b.xs[i], b.ys[i] = p.X, p.Y
}

func (b *Batch) fault(i int, err error) {
	b.pendingMu.Lock()
	b.pending = append(b.pending, Fault{Lane: uint32(i), Err: err})
	b.pendingMu.Unlock()
}

// CommitFaults marks the lanes faulted by the last kernel as dead and returns
// them. It must not run concurrently with a kernel. When no live lane remains
// the error wraps ErrArithmeticInvariant.
func (b *Batch) CommitFaults() ([]Fault, error) {
	b.pendingMu.Lock()
	faults := b.pending
	b.pending = nil
	b.pendingMu.Unlock()

	for _, f := range faults {
		b.dead.Add(f.Lane)
	}
	if b.LiveLanes() == 0 {
		return faults, fmt.Errorf("%w: all %d lanes aborted", ErrArithmeticInvariant, len(b.xs))
	}
	return faults, nil
}

// Drain returns the matches collected since the last drain.
func (b *Batch) Drain() ([]MatchResult, error) {
	return b.results.Drain()
}

// ResultCapacity returns the capacity of the result buffer.
func (b *Batch) ResultCapacity() int {
	return b.results.Cap()
}
