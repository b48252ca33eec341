// Package entropy collects bytes from an external noise source into a ring
// buffer, and serves them as 64 bit samples.
//
// The pieces are:
//   - Source, the capability shared by all the implementations: it can be
//     started and stopped, and returns samples. Samples can be turned into
//     random numbers with srand.New(source).
//   - Collector, the engine behind the implementations: a single reader
//     goroutine draining a Stream into a ring.Buffer, and consumers claiming
//     8 byte windows of it.
//   - Registry and Select, mapping a configuration key to an implementation,
//     and falling back to a time seeded generator if none is usable.
//
// Failures in collecting entropy never reach consumers: Sample always returns
// a value, even if it comes from stale or never written bytes. The only
// health signal is Running().
package entropy

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/enfabrica/sdrand/lib/srand"
)

var (
	ErrAlreadyRunning = errors.New("entropy source is already running")
	ErrStopTimeout    = errors.New("timed out waiting for the entropy reader to stop")
	ErrUnknownSource  = errors.New("unknown entropy source")
)

// Source is a startable and stoppable provider of 64 bit samples.
type Source interface {
	srand.Sampler

	// Start begins collecting entropy.
	//
	// ctx bounds the time spent starting up, not the lifetime of the source.
	// Returns ErrAlreadyRunning if the source was not idle.
	Start(ctx context.Context) error

	// Stop stops collecting entropy, and waits up to timeout for the
	// collection to terminate. Returns an error wrapping ErrStopTimeout if it
	// did not. Stopping an idle source is a no-op.
	Stop(timeout time.Duration) error

	// Running returns true between a successful Start and the following Stop.
	Running() bool
}

// Static turns an always available Sampler into a Source.
//
// Start and Stop only toggle the value returned by Running.
type Static struct {
	srand.Sampler
	running atomic.Bool
}

func NewStatic(sampler srand.Sampler) *Static {
	return &Static{Sampler: sampler}
}

func (s *Static) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	return nil
}

func (s *Static) Stop(timeout time.Duration) error {
	s.running.Store(false)
	return nil
}

func (s *Static) Running() bool {
	return s.running.Load()
}
