package keyfinder

import (
	"fmt"
	"io"
	"sync"
)

// ResultSink receives matches as soon as they are decoded.
type ResultSink interface {
	Report(r Result) error
}

// LineSink writes one line per match: the hex private key, the address and
// the public key encoding.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineSink returns a sink writing to w.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

// Report writes r.
func (s *LineSink) Report(r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s %s %s\n", r.PrivateKey, r.Address, r.Compression)
	return err
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(Result) error

// Report calls f(r).
func (f SinkFunc) Report(r Result) error {
	return f(r)
}
