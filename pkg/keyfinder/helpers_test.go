package keyfinder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/keyfinder/internal/device"
	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
)

// testConfig keeps batches small so multi-iteration paths are exercised.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 8
	cfg.ResultCapacity = 16
	return cfg
}

func newTestDevice(t *testing.T) *device.CPU {
	t.Helper()
	d := device.NewCPU(device.CPUOptions{Workers: 3, ChunkLanes: 3})
	t.Cleanup(func() { d.Close() })
	return d
}

func newTestFinder(t *testing.T, cfg Config) *KeyFinder {
	t.Helper()
	return NewKeyFinder(newTestDevice(t)).WithConfig(cfg)
}

// targetsForKeys builds a target set holding the digest of each key for
// every encoding in c.
func targetsForKeys(t *testing.T, c Compression, keys ...Scalar) *TargetSet {
	t.Helper()
	var targets []Target
	for _, k := range keys {
		p := secp.ScalarBaseMult(k)
		for i, h := range digest.ComputeEach(p, c) {
			targets = append(targets, Target{Hash: h, Flags: c.Encodings()[i]})
		}
	}
	set, err := NewTargetSet(targets)
	require.NoError(t, err)
	return set
}

func scalars(values ...uint64) []Scalar {
	out := make([]Scalar, len(values))
	for i, v := range values {
		out[i] = ScalarFromUint64(v)
	}
	return out
}

func mustKey(t *testing.T, hex string) Scalar {
	t.Helper()
	k, err := ParseKey(hex)
	require.NoError(t, err)
	return k
}

func keyPtr(v uint64) *Scalar {
	k := ScalarFromUint64(v)
	return &k
}

var errDeviceLost = errors.New("device lost")

// flakyDevice fails every kernel launch after the first failAfter.
type flakyDevice struct {
	device.Device
	failAfter int
	launches  int
}

func (d *flakyDevice) Launch(lanes int, kernel device.Kernel) *device.Event {
	d.launches++
	if d.launches > d.failAfter {
		return device.Completed(errDeviceLost)
	}
	return d.Device.Launch(lanes, kernel)
}
