// Package device abstracts the parallel compute device a search runs on.
//
// A Device executes commands from an in-order queue: every Launch or Enqueue
// returns an Event that completes after all earlier commands. The host waits
// on events; it never touches lane state while a command is in flight.
package device

import (
	"errors"
)

var (
	// ErrOutOfMemory is returned when an allocation exceeds device memory.
	ErrOutOfMemory = errors.New("device out of memory")

	// ErrClosed is returned for work submitted to a closed device or context.
	ErrClosed = errors.New("device closed")
)

// Kernel processes the lanes in [lo, hi). Kernels launched together run
// concurrently on disjoint windows.
type Kernel func(lo, hi int) error

// Device is a compute device with an in-order command queue.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// TotalMemory is the device memory in bytes.
	TotalMemory() uint64

	// Launch enqueues kernel over lanes [0, lanes).
	Launch(lanes int, kernel Kernel) *Event

	// Enqueue runs fn in queue order. Used for host/device transfers.
	Enqueue(fn func() error) *Event

	// Close drains the queue and releases the device.
	Close() error
}

// Event is a completion token for enqueued work.
type Event struct {
	done chan struct{}
	err  error
}

// NewEvent returns a pending event.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Completed returns an event that has already finished with err.
func Completed(err error) *Event {
	e := NewEvent()
	e.Complete(err)
	return e
}

// Complete marks the event finished. It must be called exactly once.
func (e *Event) Complete(err error) {
	e.err = err
	close(e.done)
}

// Done is closed when the work has finished.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the work has finished and returns its error.
func (e *Event) Wait() error {
	<-e.done
	return e.err
}
