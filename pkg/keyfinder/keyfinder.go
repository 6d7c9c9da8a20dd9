package keyfinder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mahdiidarabi/keyfinder/internal/device"
	"github.com/mahdiidarabi/keyfinder/internal/metrics"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/stepper"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

// KeyFinder runs a search on a device and decodes its matches.
//
// A KeyFinder moves Idle → Initializing → Running and ends in Completed,
// Stopped (context cancelled) or Failed. Reset returns a finished finder to
// Idle.
type KeyFinder struct {
	device     device.Device
	config     Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	sink       ResultSink
	onProgress func(Progress)

	state    atomic.Int32
	progress atomic.Uint64

	mu       sync.Mutex
	warnings []Warning
}

// NewKeyFinder creates a finder for dev with default settings.
func NewKeyFinder(dev device.Device) *KeyFinder {
	return &KeyFinder{
		device: dev,
		config: DefaultConfig(),
		logger: zap.NewNop(),
	}
}

// WithConfig sets the search configuration.
func (k *KeyFinder) WithConfig(cfg Config) *KeyFinder {
	k.config = cfg
	return k
}

// WithLogger sets the logger.
func (k *KeyFinder) WithLogger(logger *zap.Logger) *KeyFinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	k.logger = logger
	return k
}

// WithMetrics records search counters into m.
func (k *KeyFinder) WithMetrics(m *metrics.Metrics) *KeyFinder {
	k.metrics = m
	return k
}

// WithSink streams every decoded match to sink.
func (k *KeyFinder) WithSink(sink ResultSink) *KeyFinder {
	k.sink = sink
	return k
}

// WithProgressHandler calls fn on the search goroutine after every iteration.
func (k *KeyFinder) WithProgressHandler(fn func(Progress)) *KeyFinder {
	k.onProgress = fn
	return k
}

// State returns the current lifecycle state.
func (k *KeyFinder) State() State {
	return State(k.state.Load())
}

// Progress returns the number of keys processed. Safe to call from any
// goroutine while Run is in progress.
func (k *KeyFinder) Progress() uint64 {
	return k.progress.Load()
}

// Reset returns a finished finder to Idle and clears its progress and
// warnings.
func (k *KeyFinder) Reset() error {
	s := k.State()
	if !s.Terminal() {
		return fmt.Errorf("%w: cannot reset while %s", ErrNotIdle, s)
	}
	k.progress.Store(0)
	k.mu.Lock()
	k.warnings = nil
	k.mu.Unlock()
	k.state.Store(int32(StateIdle))
	return nil
}

// Warn records skipped input entries, typically from loading targets or key
// lists, so they are logged and included in the run summary.
func (k *KeyFinder) Warn(ws ...Warning) {
	if len(ws) == 0 {
		return
	}
	k.mu.Lock()
	k.warnings = append(k.warnings, ws...)
	k.mu.Unlock()

	k.metrics.Warning(len(ws))
	for _, w := range ws {
		k.logger.Warn("skipping input", zap.Int("line", w.Line), zap.String("input", w.Text), zap.Error(w.Err))
	}
}

func (k *KeyFinder) setState(s State) {
	old := State(k.state.Swap(int32(s)))
	k.logger.Debug("state transition", zap.Stringer("from", old), zap.Stringer("to", s))
}

// Run searches origin for keys whose address digest is in targets.
//
// Device resources are released on every path. Cancelling ctx stops the
// search between iterations; the summary then reports StateStopped and a nil
// error.
//
// Args:
//   - ctx: Cancels the search between iterations
//   - origin: SequentialRange or ExplicitList
//   - targets: Digests to search for
//
// Returns:
//   - Summary of the run, and the fatal error when the state is StateFailed
func (k *KeyFinder) Run(ctx context.Context, origin Origin, targets *TargetSet) (*Summary, error) {
	if !k.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return nil, fmt.Errorf("%w: state is %s", ErrNotIdle, k.State())
	}
	k.logger.Debug("state transition", zap.Stringer("from", StateIdle), zap.Stringer("to", StateInitializing))

	r := &run{finder: k, ctx: ctx, summary: &Summary{}, started: time.Now()}
	final, err := r.search(origin, targets)

	k.setState(final)
	r.summary.State = final
	r.summary.Progress = k.Progress()
	r.summary.Elapsed = time.Since(r.started)
	k.mu.Lock()
	r.summary.Warnings = append([]Warning(nil), k.warnings...)
	k.mu.Unlock()

	fields := []zap.Field{
		zap.Stringer("state", final),
		zap.Uint64("keys", r.summary.Progress),
		zap.Uint64("iterations", r.summary.Iterations),
		zap.Int("matches", len(r.summary.Matches)),
		zap.Duration("elapsed", r.summary.Elapsed),
	}
	if err != nil {
		k.logger.Error("search failed", append(fields, zap.Error(err))...)
		return r.summary, err
	}
	k.logger.Info("search finished", fields...)
	return r.summary, nil
}

// run is the state of a single Run call.
type run struct {
	finder  *KeyFinder
	ctx     context.Context
	summary *Summary
	started time.Time
}

func (r *run) search(origin Origin, targets *TargetSet) (State, error) {
	k := r.finder
	if err := k.config.Validate(); err != nil {
		return StateFailed, err
	}
	if targets == nil || targets.Len() == 0 {
		return StateFailed, targetset.ErrNoTargets
	}
	if origin == nil {
		return StateFailed, fmt.Errorf("%w: no key origin", ErrInvalidConfig)
	}
	if list, ok := origin.(ExplicitList); ok {
		clean, ws := NewExplicitList(list.Keys)
		k.Warn(ws...)
		origin = clean
	}
	if err := origin.Validate(); err != nil {
		return StateFailed, err
	}

	dc := device.Acquire(k.device, k.logger)
	defer dc.Release()
	o := newOrchestrator(dc, k.config, targets, k.logger, k.metrics)
	defer o.release()

	k.logger.Info("starting search",
		zap.String("device", k.device.Name()),
		zap.Int("targets", targets.Len()),
		zap.Int("batch_size", k.config.BatchSize),
		zap.Stringer("compression", k.config.Compression))

	switch org := origin.(type) {
	case SequentialRange:
		return r.searchRange(o, org)
	case ExplicitList:
		return r.searchList(o, org)
	default:
		return StateFailed, fmt.Errorf("%w: unsupported key origin %T", ErrInvalidConfig, origin)
	}
}

func (r *run) searchRange(o *orchestrator, rng SequentialRange) (State, error) {
	k := r.finder

	bound := newRangeBound(rng.Count())
	lanes := bound.lanes(k.config.BatchSize)
	if err := o.checkCapacity(lanes); err != nil {
		return StateFailed, err
	}
	keys := make([]secp.Uint256, lanes)
	key := rng.Start
	for i := range keys {
		keys[i] = key.Words()
		key = key.Add(rng.Stride)
	}
	step := rng.Stride.Mul(secp.ScalarFromUint64(uint64(lanes)))
	if err := o.load(keys, &step); err != nil {
		return StateFailed, err
	}
	k.setState(StateRunning)

	for iter := uint64(0); ; iter++ {
		if r.ctx.Err() != nil {
			return StateStopped, nil
		}
		began := time.Now()

		valid, done := bound.take(lanes)
		last := done || (k.config.Iterations > 0 && iter+1 >= k.config.Iterations)

		matches, err := o.iterate(!last)
		if err != nil {
			return StateFailed, err
		}
		for _, m := range matches {
			if uint64(m.Lane) >= valid {
				continue
			}
			if err := r.report(sequentialKey(rng, iter, lanes, m.Lane), iter, m); err != nil {
				return StateFailed, err
			}
		}
		r.finishIteration(valid, time.Since(began))

		if last {
			return StateCompleted, nil
		}
	}
}

func (r *run) searchList(o *orchestrator, list ExplicitList) (State, error) {
	k := r.finder

	for i, page := range list.pages(k.config.BatchSize) {
		if r.ctx.Err() != nil {
			return StateStopped, nil
		}
		began := time.Now()

		keys := make([]secp.Uint256, len(page.Keys))
		for j, key := range page.Keys {
			keys[j] = key.Words()
		}
		if err := o.load(keys, nil); err != nil {
			return StateFailed, err
		}
		if i == 0 {
			k.setState(StateRunning)
		}

		matches, err := o.iterate(false)
		o.release()
		if err != nil {
			return StateFailed, err
		}
		for _, m := range matches {
			key, err := listKey(page, m.Lane)
			if err != nil {
				return StateFailed, err
			}
			if err := r.report(key, uint64(i), m); err != nil {
				return StateFailed, err
			}
		}
		r.finishIteration(uint64(len(page.Keys)), time.Since(began))
	}
	return StateCompleted, nil
}

func (r *run) report(key Scalar, iteration uint64, m stepper.MatchResult) error {
	k := r.finder
	res, err := newResult(key, iteration, m)
	if err != nil {
		return err
	}
	if !res.Verified {
		k.logger.Error("decoded key does not reproduce the matched digest",
			zap.Uint64("iteration", iteration), zap.Uint32("lane", m.Lane), zap.Stringer("hash", m.Hash))
	}

	r.summary.Matches = append(r.summary.Matches, res)
	k.metrics.Match()
	k.logger.Info("match found",
		zap.String("address", res.Address),
		zap.Stringer("compression", res.Compression),
		zap.Bool("verified", res.Verified))

	if k.sink != nil {
		if err := k.sink.Report(res); err != nil {
			return fmt.Errorf("failed to report result: %w", err)
		}
	}
	return nil
}

// finishIteration publishes progress once an iteration's matches are decoded.
func (r *run) finishIteration(keys uint64, took time.Duration) {
	k := r.finder
	r.summary.Iterations++
	total := k.progress.Add(keys)
	k.metrics.Iteration(keys, took)

	if k.onProgress != nil {
		k.onProgress(Progress{
			Iteration: r.summary.Iterations,
			Keys:      total,
			Matches:   len(r.summary.Matches),
			Elapsed:   time.Since(r.started),
		})
	}
}
