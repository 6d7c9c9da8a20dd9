package keyfinder

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mahdiidarabi/keyfinder/internal/device"
	"github.com/mahdiidarabi/keyfinder/internal/digest"
	"github.com/mahdiidarabi/keyfinder/internal/metrics"
	"github.com/mahdiidarabi/keyfinder/internal/parser"
	"github.com/mahdiidarabi/keyfinder/internal/secp"
	"github.com/mahdiidarabi/keyfinder/internal/targetset"
)

type (
	// Scalar is a private key or other integer modulo the group order.
	Scalar = secp.Scalar

	// Hash is a HASH160 address digest.
	Hash = digest.Hash

	// Compression selects compressed and/or uncompressed public keys.
	Compression = digest.Compression

	// Target is one digest to search for.
	Target = targetset.Target

	// TargetSet is the immutable collection of targets.
	TargetSet = targetset.Set

	// Warning describes a skipped input entry.
	Warning = parser.Warning

	// Device is the compute device a search runs on.
	Device = device.Device

	// CPUOptions configures the CPU device.
	CPUOptions = device.CPUOptions

	// Metrics holds the Prometheus search counters.
	Metrics = metrics.Metrics
)

// NewCPUDevice starts a device that runs lanes on a goroutine pool. Close it
// when done.
func NewCPUDevice(opts CPUOptions) Device {
	return device.NewCPU(opts)
}

// NewMetrics creates search counters registered with reg (nil skips
// registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.New(reg)
}

const (
	Compressed   = digest.Compressed
	Uncompressed = digest.Uncompressed
	Both         = digest.Both
)

// State is the lifecycle stage of a KeyFinder.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions happen without Reset.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFailed
}

// Result is a decoded match.
type Result struct {
	PrivateKey  Scalar      // Key whose public point produced Hash
	Hash        Hash        // Matched digest
	Address     string      // Base58 P2PKH address of Hash
	Compression Compression // Encoding the digest was taken over
	Iteration   uint64      // Iteration (or list page) the match came from
	Lane        uint32      // Lane index within the batch
	Verified    bool        // Whether an independent derivation reproduced Hash
}

// Progress is reported after every iteration.
type Progress struct {
	Iteration uint64        // Iterations finished
	Keys      uint64        // Keys processed so far
	Matches   int           // Matches found so far
	Elapsed   time.Duration // Time since Run started
}

// Summary is the outcome of Run.
type Summary struct {
	State      State
	Progress   uint64
	Iterations uint64
	Matches    []Result
	Warnings   []Warning
	Elapsed    time.Duration
}
