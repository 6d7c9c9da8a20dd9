package keyfinder

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mahdiidarabi/keyfinder/internal/device"
	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/metrics"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/stepper"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

// Device footprint per lane and per result record, in bytes.
const (
	keyBytes    = 32
	pointBytes  = 64
	resultBytes = 4 + digest.Size + 4
)

// requiredMemory is the device memory a batch of lanes needs.
func requiredMemory(lanes int, targets *targetset.Set, resultCapacity int) uint64 {
	return uint64(lanes)*(keyBytes+pointBytes) + targets.DeviceSize() + uint64(resultCapacity)*resultBytes
}

// orchestrator owns the device buffers of one batch and drives its iterations.
type orchestrator struct {
	dc      *device.Context
	cfg     Config
	targets *targetset.Set
	logger  *zap.Logger
	metrics *metrics.Metrics

	batch   *stepper.Batch
	lanes   int
	allocs  []*device.Allocation
	pending *device.Event
}

func newOrchestrator(dc *device.Context, cfg Config, targets *targetset.Set, logger *zap.Logger, m *metrics.Metrics) *orchestrator {
	return &orchestrator{dc: dc, cfg: cfg, targets: targets, logger: logger, metrics: m}
}

// checkCapacity fails with ErrInsufficientDeviceMemory when lanes would not fit
// in the configured share of device memory.
func (o *orchestrator) checkCapacity(lanes int) error {
	total := o.dc.Device().TotalMemory()
	limit := uint64(float64(total) * o.cfg.MemoryFraction)
	need := requiredMemory(lanes, o.targets, o.cfg.ResultCapacity)
	if need > limit {
		return fmt.Errorf("%w: batch of %d lanes needs %s, limit is %s (%.0f%% of %s)",
			ErrInsufficientDeviceMemory, lanes, humanize.IBytes(need), humanize.IBytes(limit),
			o.cfg.MemoryFraction*100, humanize.IBytes(total))
	}
	return nil
}

// load allocates the batch buffers and computes the starting point of every
// key. A nil step loads a batch that is checked once and never advanced.
func (o *orchestrator) load(keys []secp.Uint256, step *secp.Scalar) error {
	lanes := len(keys)
	if err := o.checkCapacity(lanes); err != nil {
		return err
	}

	buffers := []struct {
		name string
		size uint64
	}{
		{"keys", uint64(lanes) * keyBytes},
		{"points", uint64(lanes) * pointBytes},
		{"targets", o.targets.DeviceSize()},
		{"results", uint64(o.cfg.ResultCapacity) * resultBytes},
	}
	for _, b := range buffers {
		a, err := o.dc.Alloc(b.name, b.size)
		if err != nil {
			o.release()
			return fmt.Errorf("failed to allocate %s buffer: %w", b.name, err)
		}
		o.allocs = append(o.allocs, a)
	}

	batch, err := stepper.NewBatch(lanes, o.targets, o.cfg.Compression, o.cfg.ResultCapacity)
	if err != nil {
		o.release()
		return fmt.Errorf("failed to create batch: %w", err)
	}
	if step != nil {
		if err := batch.SetIncrement(*step); err != nil {
			o.release()
			return err
		}
	}
	o.batch, o.lanes = batch, lanes

	if err := o.dc.Device().Launch(lanes, batch.LoadKernel(keys)).Wait(); err != nil {
		o.release()
		return fmt.Errorf("failed to compute starting points: %w", err)
	}
	if err := o.commitFaults(); err != nil {
		o.release()
		return err
	}
	return nil
}

// iterate checks the current points and returns their matches. When advance
// is set the step kernel is launched before returning and completes in the
// background; the next call waits for it.
func (o *orchestrator) iterate(advance bool) ([]stepper.MatchResult, error) {
	if err := o.sync(); err != nil {
		return nil, err
	}
	matches, err := o.check(0, o.lanes)
	if err != nil {
		return nil, err
	}
	if advance {
		o.pending = o.dc.Device().Launch(o.lanes, o.batch.AdvanceKernel())
	}
	return matches, nil
}

// check runs the check kernel over lanes [lo, hi). When the result buffer
// overflows the window's results are discarded and both halves are checked
// again, so every match is returned exactly once.
func (o *orchestrator) check(lo, hi int) ([]stepper.MatchResult, error) {
	dev := o.dc.Device()
	if err := dev.Launch(hi-lo, window(o.batch.CheckKernel(), lo)).Wait(); err != nil {
		return nil, fmt.Errorf("failed to check batch: %w", err)
	}

	var matches []stepper.MatchResult
	err := dev.Enqueue(func() error {
		var err error
		matches, err = o.batch.Drain()
		return err
	}).Wait()
	if !errors.Is(err, stepper.ErrResultBufferOverflow) {
		return matches, err
	}
	if hi-lo <= 1 {
		return nil, err
	}

	o.metrics.ResultOverflow()
	o.logger.Warn("result buffer overflow, replaying check on smaller windows",
		zap.Int("lo", lo), zap.Int("hi", hi), zap.Int("capacity", o.batch.ResultCapacity()))
	mid := lo + (hi-lo)/2
	left, err := o.check(lo, mid)
	if err != nil {
		return nil, err
	}
	right, err := o.check(mid, hi)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// sync waits for an in-flight advance and folds its lane faults in.
func (o *orchestrator) sync() error {
	if o.pending == nil {
		return nil
	}
	ev := o.pending
	o.pending = nil
	if err := ev.Wait(); err != nil {
		return fmt.Errorf("failed to advance batch: %w", err)
	}
	return o.commitFaults()
}

func (o *orchestrator) commitFaults() error {
	faults, err := o.batch.CommitFaults()
	for _, f := range faults {
		o.logger.Warn("lane aborted", zap.Uint32("lane", f.Lane), zap.Error(f.Err))
	}
	o.metrics.LaneFault(len(faults))
	return err
}

// release drains in-flight work and frees the batch buffers. Safe to call
// more than once.
func (o *orchestrator) release() {
	if o.pending != nil {
		if err := o.pending.Wait(); err != nil {
			o.logger.Debug("discarding failed advance during release", zap.Error(err))
		}
		o.pending = nil
	}
	for _, a := range o.allocs {
		o.dc.Free(a)
	}
	o.allocs = nil
	o.batch, o.lanes = nil, 0
}

// window shifts a kernel launched over [0, n) onto lanes [base, base+n).
func window(kernel func(lo, hi int) error, base int) device.Kernel {
	return func(lo, hi int) error {
		return kernel(base+lo, base+hi)
	}
}
