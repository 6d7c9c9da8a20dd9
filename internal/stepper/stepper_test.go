package stepper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

// runWindows runs kernel over [0, lanes) in windows of the given size.
func runWindows(t *testing.T, lanes, window int, kernel func(lo, hi int) error) {
	t.Helper()
	for lo := 0; lo < lanes; lo += window {
		require.NoError(t, kernel(lo, min(lo+window, lanes)))
	}
}

func keysOf(t *testing.T, values ...secp.Scalar) []secp.Uint256 {
	t.Helper()
	out := make([]secp.Uint256, len(values))
	for i, v := range values {
		out[i] = v.Words()
	}
	return out
}

func singleTarget(t *testing.T, k secp.Scalar, c digest.Compression) *targetset.Set {
	t.Helper()
	s, err := targetset.New([]targetset.Target{{Hash: digest.Compute(secp.ScalarBaseMult(k), c), Flags: c}})
	require.NoError(t, err)
	return s
}

func TestNewBatchValidation(t *testing.T) {
	targets := singleTarget(t, secp.ScalarFromUint64(1), digest.Compressed)

	_, err := NewBatch(0, targets, digest.Both, 4)
	assert.Error(t, err)
	_, err = NewBatch(4, nil, digest.Both, 4)
	assert.ErrorIs(t, err, targetset.ErrNoTargets)
	_, err = NewBatch(4, targets, 0, 4)
	assert.Error(t, err)
	_, err = NewBatch(4, targets, digest.Both, 1)
	assert.Error(t, err)

	b, err := NewBatch(4, targets, digest.Both, 4)
	require.NoError(t, err)
	assert.ErrorIs(t, b.SetIncrement(secp.Scalar{}), ErrInvalidStride)
	assert.ErrorIs(t, b.AdvanceKernel()(0, 4), ErrNoIncrement)
}

func TestAdvanceMatchesScalarMultiplication(t *testing.T) {
	const lanes = 37
	start := secp.ScalarFromUint64(0xdeadbeef)
	stride := secp.ScalarFromUint64(3)

	keys := make([]secp.Scalar, lanes)
	k := start
	for i := range keys {
		keys[i] = k
		k = k.Add(stride)
	}

	b, err := NewBatch(lanes, singleTarget(t, start, digest.Compressed), digest.Compressed, 4)
	require.NoError(t, err)
	step := stride.Mul(secp.ScalarFromUint64(lanes))
	require.NoError(t, b.SetIncrement(step))

	runWindows(t, lanes, 8, b.LoadKernel(keysOf(t, keys...)))
	_, err = b.CommitFaults()
	require.NoError(t, err)

	for iter := 1; iter <= 5; iter++ {
		runWindows(t, lanes, 5+iter, b.AdvanceKernel())
		_, err = b.CommitFaults()
		require.NoError(t, err)

		for i, k := range keys {
			want := secp.ScalarBaseMult(k.Add(step.Mul(secp.ScalarFromUint64(uint64(iter)))))
			require.True(t, b.Point(i).Equal(want), "lane %d iteration %d", i, iter)
		}
	}
}

func TestAdvanceDoublingLane(t *testing.T) {
	step := secp.ScalarFromUint64(5)
	b, err := NewBatch(2, singleTarget(t, step, digest.Compressed), digest.Compressed, 4)
	require.NoError(t, err)
	require.NoError(t, b.SetIncrement(step))

	runWindows(t, 2, 2, b.LoadKernel(keysOf(t, step, secp.ScalarFromUint64(7))))
	runWindows(t, 2, 2, b.AdvanceKernel())
	faults, err := b.CommitFaults()
	require.NoError(t, err)
	assert.Empty(t, faults)

	assert.True(t, b.Point(0).Equal(secp.ScalarBaseMult(secp.ScalarFromUint64(10))))
	assert.True(t, b.Point(1).Equal(secp.ScalarBaseMult(secp.ScalarFromUint64(12))))
}

func TestAdvanceInfinityAbortsOnlyThatLane(t *testing.T) {
	step := secp.ScalarFromUint64(5)
	k1 := secp.ScalarFromUint64(11)
	b, err := NewBatch(3, singleTarget(t, k1.Add(step), digest.Compressed), digest.Compressed, 4)
	require.NoError(t, err)
	require.NoError(t, b.SetIncrement(step))

	runWindows(t, 3, 3, b.LoadKernel(keysOf(t, step.Negate(), k1, secp.ScalarFromUint64(2))))
	runWindows(t, 3, 3, b.AdvanceKernel())
	faults, err := b.CommitFaults()
	require.NoError(t, err)
	require.Len(t, faults, 1)
	assert.Equal(t, uint32(0), faults[0].Lane)
	assert.ErrorIs(t, faults[0].Err, ErrArithmeticInvariant)

	assert.True(t, b.Dead(0))
	assert.Equal(t, 2, b.LiveLanes())
	assert.True(t, b.Point(0).IsInfinity())
	assert.True(t, b.Point(1).Equal(secp.ScalarBaseMult(k1.Add(step))))

	runWindows(t, 3, 3, b.CheckKernel())
	matches, err := b.Drain()
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(1), matches[0].Lane)

	// Dead lanes stay put on later advances.
	runWindows(t, 3, 3, b.AdvanceKernel())
	_, err = b.CommitFaults()
	require.NoError(t, err)
	assert.True(t, b.Point(2).Equal(secp.ScalarBaseMult(secp.ScalarFromUint64(12))))
}

func TestAllLanesFaultedIsFatal(t *testing.T) {
	b, err := NewBatch(1, singleTarget(t, secp.ScalarFromUint64(1), digest.Compressed), digest.Compressed, 2)
	require.NoError(t, err)
	runWindows(t, 1, 1, b.LoadKernel([]secp.Uint256{{}}))
	_, err = b.CommitFaults()
	assert.ErrorIs(t, err, ErrArithmeticInvariant)
}

func TestCheckFindsEncodings(t *testing.T) {
	k := secp.ScalarFromUint64(42)
	p := secp.ScalarBaseMult(k)
	targets, err := targetset.New([]targetset.Target{
		{Hash: digest.Compute(p, digest.Compressed), Flags: digest.Compressed},
		{Hash: digest.Compute(p, digest.Uncompressed), Flags: digest.Uncompressed},
	})
	require.NoError(t, err)

	b, err := NewBatch(4, targets, digest.Both, 4)
	require.NoError(t, err)
	runWindows(t, 4, 4, b.LoadKernel(keysOf(t,
		secp.ScalarFromUint64(40), secp.ScalarFromUint64(41), k, secp.ScalarFromUint64(43))))

	runWindows(t, 4, 2, b.CheckKernel())
	matches, err := b.Drain()
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, uint32(2), m.Lane)
	}

	// Drain empties the buffer and checking is repeatable.
	matches, err = b.Drain()
	require.NoError(t, err)
	assert.Empty(t, matches)
	runWindows(t, 4, 4, b.CheckKernel())
	matches, err = b.Drain()
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestCheckOverflowAndReplay(t *testing.T) {
	keys := []secp.Scalar{secp.ScalarFromUint64(1), secp.ScalarFromUint64(2), secp.ScalarFromUint64(3)}
	var tgs []targetset.Target
	for _, k := range keys {
		tgs = append(tgs, targetset.Target{Hash: digest.Compute(secp.ScalarBaseMult(k), digest.Compressed)})
	}
	targets, err := targetset.New(tgs)
	require.NoError(t, err)

	b, err := NewBatch(3, targets, digest.Compressed, 2)
	require.NoError(t, err)
	runWindows(t, 3, 3, b.LoadKernel(keysOf(t, keys...)))

	check := b.CheckKernel()
	require.NoError(t, check(0, 3))
	_, err = b.Drain()
	require.ErrorIs(t, err, ErrResultBufferOverflow)

	var all []MatchResult
	for _, w := range [][2]int{{0, 2}, {2, 3}} {
		require.NoError(t, check(w[0], w[1]))
		m, err := b.Drain()
		require.NoError(t, err)
		all = append(all, m...)
	}
	assert.Len(t, all, 3)
}
