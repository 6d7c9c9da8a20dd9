package keyfinder

import (
	"errors"
	"fmt"

	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/parser"
	"github.com/mahdiidarabi/keyfinder/internal/stepper"
)

var (
	// ErrNoValidKeys is returned when a key list holds no usable key.
	ErrNoValidKeys = parser.ErrNoValidKeys

	// ErrInsufficientDeviceMemory is returned when a batch would not fit in
	// the allowed share of device memory. Nothing is allocated.
	ErrInsufficientDeviceMemory = errors.New("insufficient device memory")

	// ErrInvalidRange is returned for a range whose end is below its start.
	ErrInvalidRange = errors.New("invalid key range")

	// ErrInvalidConfig is returned for unusable configuration values.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotIdle is returned when Run is called on a finder that is not idle.
	ErrNotIdle = errors.New("key finder is not idle")
)

// Config tunes a search.
type Config struct {
	// BatchSize is the number of lanes stepped in parallel
	BatchSize int

	// ResultCapacity is the number of matches one check can hold before it
	// is replayed on smaller windows (at least 2)
	ResultCapacity int

	// MemoryFraction is the share of device memory a batch may use, in (0, 1]
	MemoryFraction float64

	// Compression selects the public key encodings to test
	Compression digest.Compression

	// Iterations limits sequential searches (0 = until the range ends or the
	// context is cancelled)
	Iterations uint64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:      1 << 14,
		ResultCapacity: 1024,
		MemoryFraction: 0.8,
		Compression:    digest.Both,
		Iterations:     0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.ResultCapacity < stepper.MinResultCapacity:
		return fmt.Errorf("%w: result capacity must be at least %d, got %d", ErrInvalidConfig, stepper.MinResultCapacity, c.ResultCapacity)
	case c.MemoryFraction <= 0 || c.MemoryFraction > 1:
		return fmt.Errorf("%w: memory fraction must be in (0, 1], got %g", ErrInvalidConfig, c.MemoryFraction)
	case len(c.Compression.Encodings()) == 0:
		return fmt.Errorf("%w: no public key encoding selected", ErrInvalidConfig)
	}
	return nil
}
