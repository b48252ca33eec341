package entropy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/enfabrica/sdrand/lib/goroutine"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/enfabrica/sdrand/lib/multierror"
	"github.com/enfabrica/sdrand/lib/ring"
)

const (
	DefaultBufferSize = 20480
	DefaultChunkSize  = 2048

	// Size of a sample, in bytes.
	SampleSize = 8
)

// Stream is where a Collector reads entropy from.
type Stream interface {
	// Open returns the reader to drain. It is invoked from the reader
	// goroutine, and is allowed to block.
	Open() (io.ReadCloser, error)

	// Abort releases whatever is producing the data. It is invoked when the
	// reader fails and when the Collector is stopped, possibly more than once,
	// and must cause a pending Open to return.
	Abort() error
}

// Collector drains a Stream into a ring buffer with a single reader goroutine,
// and serves samples out of it.
type Collector struct {
	name    string
	log     logger.Logger
	chunk   int
	ring    *ring.Buffer
	metrics *collectorMetrics

	running atomic.Bool

	// Serializes Start and Stop, protects stream and done.
	lifecycle sync.Mutex
	stream    Stream
	done      goroutine.ErrorChannel

	// Hands the open reader over from the reader goroutine to Stop.
	// running only changes with lock held.
	lock   sync.Mutex
	reader io.ReadCloser
}

type Modifier func(*Collector)

type Modifiers []Modifier

func (mods Modifiers) Apply(c *Collector) *Collector {
	for _, m := range mods {
		m(c)
	}
	return c
}

func WithLogger(log logger.Logger) Modifier {
	return func(c *Collector) {
		c.log = log
	}
}

// WithChunkSize sets the maximum number of bytes read from the stream at once.
func WithChunkSize(chunk int) Modifier {
	return func(c *Collector) {
		if chunk > 0 {
			c.chunk = chunk
		}
	}
}

// NewCollector creates an idle Collector with a ring buffer of size bytes.
//
// name identifies the collector in logs and metrics. If size is not positive,
// DefaultBufferSize is used.
func NewCollector(name string, size int, mods ...Modifier) *Collector {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return Modifiers(mods).Apply(&Collector{
		name:    name,
		log:     logger.Nil,
		chunk:   DefaultChunkSize,
		ring:    ring.New(size),
		metrics: newCollectorMetrics(name),
	})
}

// Sample returns the next 8 bytes of the ring buffer, as a big endian integer.
//
// Each caller gets its own window, advancing by 8 bytes at a time, and going
// back to offset 0 when the end of the buffer is reached. A window that would
// go past the end of the buffer takes its remaining bytes from the start of
// the buffer.
//
// Sample never blocks, and returns whatever data is in the buffer.
func (c *Collector) Sample() int64 {
	var data [SampleSize]byte
	c.ring.ReadAt(data[:], c.ring.Claim(SampleSize))
	c.metrics.samples.Inc()
	return int64(binary.BigEndian.Uint64(data[:]))
}

func (c *Collector) Running() bool {
	return c.running.Load()
}

// Start launches the reader goroutine on the specified stream.
//
// Returns ErrAlreadyRunning if the collector is running, or if the reader of
// a previous run has not terminated yet.
func (c *Collector) Start(stream Stream) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.running.Load() {
		return ErrAlreadyRunning
	}
	if c.done != nil {
		if done, _ := c.done.Poll(); !done {
			return fmt.Errorf("%w - the reader of the previous run has not terminated yet", ErrAlreadyRunning)
		}
		c.done = nil
	}

	c.log.Infof("%s: starting reader, collecting into a %s ring buffer", c.name, humanize.IBytes(uint64(c.ring.Size())))
	c.lock.Lock()
	c.reader = nil
	c.running.Store(true)
	c.lock.Unlock()

	c.stream = stream
	c.metrics.running.Set(1)
	c.done = goroutine.Run(func() error {
		return c.read(stream)
	})
	return nil
}

// Stop clears the running flag, aborts the stream, and waits up to timeout for the reader to exit.
func (c *Collector) Stop(timeout time.Duration) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.lock.Lock()
	if !c.running.Load() {
		c.lock.Unlock()
		return nil
	}
	c.running.Store(false)
	reader := c.reader
	c.lock.Unlock()
	c.metrics.running.Set(0)

	errs := []error{}
	if err := c.stream.Abort(); err != nil {
		errs = append(errs, fmt.Errorf("%s: could not abort stream: %w", c.name, err))
	}
	if reader != nil {
		if err := reader.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("%s: could not close stream: %w", c.name, err))
		}
	}

	// Errors of the reader have been logged already.
	if err := c.done.Wait(timeout); errors.Is(err, goroutine.ErrTimeout) {
		errs = append(errs, fmt.Errorf("%s: %w after %s", c.name, ErrStopTimeout, timeout))
	} else {
		c.done = nil
	}
	return multierror.New(errs)
}

func (c *Collector) fail(stream Stream, err error) error {
	c.metrics.errors.Inc()
	c.log.Errorf("%s: stopping reader - %s", c.name, err)
	if aerr := stream.Abort(); aerr != nil {
		c.log.Warnf("%s: cleanup after reader failure failed - %s", c.name, aerr)
	}
	return err
}

func (c *Collector) read(stream Stream) error {
	reader, err := stream.Open()
	if err != nil {
		if !c.running.Load() {
			return nil
		}
		return c.fail(stream, fmt.Errorf("could not open stream: %w", err))
	}
	defer reader.Close()

	c.lock.Lock()
	stopped := !c.running.Load()
	if !stopped {
		c.reader = reader
	}
	c.lock.Unlock()
	if stopped {
		return nil
	}

	transfer := make([]byte, c.chunk)
	for c.running.Load() {
		read, err := reader.Read(transfer)
		if read > 0 {
			c.ring.Write(transfer[:read])
			c.metrics.collected.Add(float64(read))
		}
		if err == nil {
			continue
		}

		if !c.running.Load() {
			break
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return c.fail(stream, fmt.Errorf("could not read stream: %w", err))
	}

	c.log.Infof("%s: reader stopped", c.name)
	return nil
}
