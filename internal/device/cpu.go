package device

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMemory is the memory a CPU device reports when none is configured.
	DefaultMemory = 4 << 30

	minChunkLanes = 64
	queueDepth    = 16
)

// CPUOptions configures a CPU device.
type CPUOptions struct {
	// Workers bounds concurrent kernel windows (0 = number of CPUs)
	Workers int

	// Memory is the reported device memory in bytes (0 = DefaultMemory)
	Memory uint64

	// ChunkLanes fixes the window size (0 = derived from lanes and workers)
	ChunkLanes int
}

// CPU is a Device that runs kernels on a pool of goroutines.
type CPU struct {
	opts CPUOptions

	mu     sync.RWMutex
	closed bool
	queue  chan command
	done   chan struct{}
}

type command struct {
	run func() error
	ev  *Event
}

// NewCPU starts a CPU device.
func NewCPU(opts CPUOptions) *CPU {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Memory == 0 {
		opts.Memory = DefaultMemory
	}
	d := &CPU{
		opts:  opts,
		queue: make(chan command, queueDepth),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *CPU) loop() {
	defer close(d.done)
	for cmd := range d.queue {
		cmd.ev.Complete(cmd.run())
	}
}

// Name returns a description of the device.
func (d *CPU) Name() string {
	return fmt.Sprintf("cpu(%d workers)", d.opts.Workers)
}

// TotalMemory returns the configured memory size.
func (d *CPU) TotalMemory() uint64 {
	return d.opts.Memory
}

// Workers returns the worker count.
func (d *CPU) Workers() int {
	return d.opts.Workers
}

// Launch splits [0, lanes) into windows and runs kernel on each, at most
// Workers at a time. The first kernel error is the event's error.
func (d *CPU) Launch(lanes int, kernel Kernel) *Event {
	return d.Enqueue(func() error {
		return d.run(lanes, kernel)
	})
}

// Enqueue runs fn after all previously submitted work.
func (d *CPU) Enqueue(fn func() error) *Event {
	ev := NewEvent()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		ev.Complete(ErrClosed)
		return ev
	}
	d.queue <- command{run: fn, ev: ev}
	return ev
}

// Close waits for queued work to finish and stops the device.
func (d *CPU) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return nil
}

func (d *CPU) run(lanes int, kernel Kernel) error {
	if lanes <= 0 {
		return nil
	}
	chunk := d.chunkLanes(lanes)

	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for lo := 0; lo < lanes; lo += chunk {
		lo, hi := lo, min(lo+chunk, lanes)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel panic on lanes [%d, %d): %v", lo, hi, r)
				}
			}()
			return kernel(lo, hi)
		})
	}
	return g.Wait()
}

func (d *CPU) chunkLanes(lanes int) int {
	if d.opts.ChunkLanes > 0 {
		return d.opts.ChunkLanes
	}
	// A few windows per worker keeps the pool busy when windows finish unevenly.
	chunk := (lanes + d.opts.Workers*4 - 1) / (d.opts.Workers * 4)
	return max(chunk, minChunkLanes)
}
