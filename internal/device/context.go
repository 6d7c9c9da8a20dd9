package device

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Context is a scoped acquisition of a device. All memory a search uses is
// accounted through it and returned by Release, which must run on every exit
// path.
type Context struct {
	dev    Device
	logger *zap.Logger

	mu        sync.Mutex
	live      map[*Allocation]struct{}
	allocated uint64
	count     int
	released  bool
}

// Allocation is a named region of device memory.
type Allocation struct {
	Name string
	Size uint64
}

// Acquire opens a context on dev.
func Acquire(dev Device, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		dev:    dev,
		logger: logger.With(zap.String("device", dev.Name())),
		live:   make(map[*Allocation]struct{}),
	}
}

// Device returns the underlying device.
func (c *Context) Device() Device {
	return c.dev
}

// Alloc reserves size bytes of device memory.
func (c *Context) Alloc(name string, size uint64) (*Allocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, ErrClosed
	}
	total := c.dev.TotalMemory()
	if c.allocated+size > total {
		return nil, fmt.Errorf("%w: %s needs %s, %s of %s in use", ErrOutOfMemory, name,
			humanize.IBytes(size), humanize.IBytes(c.allocated), humanize.IBytes(total))
	}

	a := &Allocation{Name: name, Size: size}
	c.live[a] = struct{}{}
	c.allocated += size
	c.count++
	c.logger.Debug("allocated device buffer", zap.String("buffer", name), zap.String("size", humanize.IBytes(size)))
	return a, nil
}

// Free returns a to the device. Freeing twice is a no-op.
func (c *Context) Free(a *Allocation) {
	if a == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[a]; !ok {
		return
	}
	delete(c.live, a)
	c.allocated -= a.Size
}

// Allocated returns the bytes currently reserved.
func (c *Context) Allocated() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated
}

// AllocCount returns the number of allocations ever made.
func (c *Context) AllocCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// LiveCount returns the number of allocations not yet freed.
func (c *Context) LiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Release frees every live allocation and invalidates the context. The device
// itself stays open.
func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	for a := range c.live {
		c.allocated -= a.Size
	}
	clear(c.live)
	c.released = true
	c.logger.Debug("released device context")
}
