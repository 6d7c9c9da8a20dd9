package keyfinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mahdiidarabi/keyfinder/internal/device"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
)

func lanesFrom(start uint64, n int) []secp.Uint256 {
	keys := make([]secp.Uint256, n)
	for i := range keys {
		keys[i] = secp.ScalarFromUint64(start + uint64(i)).Words()
	}
	return keys
}

func TestRequiredMemory(t *testing.T) {
	targets := targetsForKeys(t, Compressed, ScalarFromUint64(1))
	want := uint64(10*96) + targets.DeviceSize() + uint64(4*28)
	assert.Equal(t, want, requiredMemory(10, targets, 4))
}

func TestInsufficientMemoryBeforeAllocation(t *testing.T) {
	targets := targetsForKeys(t, Compressed, ScalarFromUint64(1))
	cfg := testConfig()
	cfg.MemoryFraction = 1

	// Room for 16 lanes next to the targets and results.
	memory := requiredMemory(16, targets, cfg.ResultCapacity)
	dev := device.NewCPU(device.CPUOptions{Workers: 2, Memory: memory})
	t.Cleanup(func() { dev.Close() })

	dc := device.Acquire(dev, zap.NewNop())
	defer dc.Release()
	o := newOrchestrator(dc, cfg, targets, zap.NewNop(), nil)

	err := o.load(lanesFrom(1, 64), nil)
	require.ErrorIs(t, err, ErrInsufficientDeviceMemory)
	assert.Zero(t, dc.AllocCount())
	assert.Zero(t, dc.Allocated())

	require.NoError(t, o.load(lanesFrom(1, 8), nil))
	assert.Equal(t, 4, dc.AllocCount())
	assert.Equal(t, 4, dc.LiveCount())
	assert.Equal(t, requiredMemory(8, targets, cfg.ResultCapacity), dc.Allocated())
	o.release()
	assert.Zero(t, dc.LiveCount())
	assert.Zero(t, dc.Allocated())
}

func TestReleaseWaitsForAdvance(t *testing.T) {
	targets := targetsForKeys(t, Compressed, ScalarFromUint64(9))
	dc := device.Acquire(newTestDevice(t), zap.NewNop())
	defer dc.Release()
	o := newOrchestrator(dc, testConfig(), targets, zap.NewNop(), nil)

	step := secp.ScalarFromUint64(8)
	require.NoError(t, o.load(lanesFrom(1, 8), &step))

	matches, err := o.iterate(true)
	require.NoError(t, err)
	assert.Empty(t, matches)
	require.NotNil(t, o.pending)

	matches, err = o.iterate(true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint32(0), matches[0].Lane)

	o.release()
	assert.Nil(t, o.pending)
	assert.Zero(t, dc.LiveCount())
	o.release()
}

func TestLoadFailureFreesBuffers(t *testing.T) {
	targets := targetsForKeys(t, Compressed, ScalarFromUint64(1))
	dev := &flakyDevice{Device: newTestDevice(t)}
	dc := device.Acquire(dev, zap.NewNop())
	defer dc.Release()
	o := newOrchestrator(dc, testConfig(), targets, zap.NewNop(), nil)

	err := o.load(lanesFrom(1, 8), nil)
	require.ErrorIs(t, err, errDeviceLost)
	assert.Equal(t, 4, dc.AllocCount())
	assert.Zero(t, dc.LiveCount())
	assert.Zero(t, dc.Allocated())
}

func TestAllLanesFaultedIsFatal(t *testing.T) {
	targets := targetsForKeys(t, Compressed, ScalarFromUint64(1))
	dc := device.Acquire(newTestDevice(t), zap.NewNop())
	defer dc.Release()
	o := newOrchestrator(dc, testConfig(), targets, zap.NewNop(), nil)

	err := o.load(make([]secp.Uint256, 4), nil)
	require.Error(t, err)
	assert.Zero(t, dc.LiveCount())
	assert.Zero(t, dc.Allocated())
}

func TestSequentialKeyDecoding(t *testing.T) {
	rng := SequentialRange{Start: ScalarFromUint64(5), Stride: ScalarFromUint64(3)}
	// offset 2·16 + 7 = 39
	assert.True(t, sequentialKey(rng, 2, 16, 7).Equal(ScalarFromUint64(5+39*3)))

	wrap := SequentialRange{Start: ScalarFromUint64(1).Negate(), Stride: ScalarFromUint64(1)}
	assert.True(t, sequentialKey(wrap, 0, 4, 2).Equal(ScalarFromUint64(1)))
}

func TestListKeyBounds(t *testing.T) {
	page := ExplicitList{Keys: scalars(7, 8)}
	k, err := listKey(page, 1)
	require.NoError(t, err)
	assert.True(t, k.Equal(ScalarFromUint64(8)))

	_, err = listKey(page, 2)
	assert.Error(t, err)
}
