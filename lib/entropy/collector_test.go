package entropy

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errAborted = errors.New("stream aborted")

// pipeStream feeds the collector from an io.Pipe controlled by the test.
type pipeStream struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	openErr error
	aborted atomic.Int32
}

func newPipeStream() *pipeStream {
	reader, writer := io.Pipe()
	return &pipeStream{reader: reader, writer: writer}
}

func (ps *pipeStream) Open() (io.ReadCloser, error) {
	if ps.openErr != nil {
		return nil, ps.openErr
	}
	return ps.reader, nil
}

func (ps *pipeStream) Abort() error {
	ps.aborted.Add(1)
	ps.writer.CloseWithError(errAborted)
	return nil
}

// stuckStream blocks in Open until released, ignoring Abort.
type stuckStream struct {
	release chan struct{}
}

func (ss *stuckStream) Open() (io.ReadCloser, error) {
	<-ss.release
	reader, writer := io.Pipe()
	writer.Close()
	return reader, nil
}

func (ss *stuckStream) Abort() error {
	return nil
}

func TestSampleRoundTrip(t *testing.T) {
	c := NewCollector(t.Name(), 16)
	c.ring.Write([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	assert.Equal(t, int64(0x0102030405060708), c.Sample())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.samples))
}

func TestSampleWindows(t *testing.T) {
	c := NewCollector(t.Name(), 16)
	c.ring.Write([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})

	assert.Equal(t, int64(0x0001020304050607), c.Sample())
	assert.Equal(t, int64(0x08090a0b0c0d0e0f), c.Sample())
	// Back to the start.
	assert.Equal(t, int64(0x0001020304050607), c.Sample())
}

func TestSampleStraddlesEnd(t *testing.T) {
	c := NewCollector(t.Name(), 12)
	c.ring.Write([]byte{0x80, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})

	assert.Equal(t, int64(-0x7ffefdfcfbfaf9f9), c.Sample())
	// Window starting at 8 continues from the start of the buffer.
	assert.Equal(t, int64(0x08090a0b80010203), c.Sample())
	// 16 >= 12, the cursor went back to 0.
	assert.Equal(t, int64(-0x7ffefdfcfbfaf9f9), c.Sample())
}

func TestSampleSmallBuffer(t *testing.T) {
	c := NewCollector(t.Name(), 3)
	c.ring.Write([]byte{1, 2, 3})
	assert.Equal(t, int64(0x0102030102030102), c.Sample())
}

func TestSampleUnpopulated(t *testing.T) {
	c := NewCollector(t.Name(), 0)
	assert.Equal(t, DefaultBufferSize, c.ring.Size())
	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(0), c.Sample())
	}
}

func TestCollectorReadsStream(t *testing.T) {
	log := logger.NewAccumulator()
	c := NewCollector(t.Name(), 2048, WithLogger(log), WithChunkSize(100))
	stream := newPipeStream()

	require.NoError(t, c.Start(stream))
	assert.True(t, c.Running())
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.running))

	data := make([]byte, 3000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	n, err := stream.writer.Write(data)
	require.NoError(t, err)
	require.Equal(t, 3000, n)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.collected) == 3000
	}, 5*time.Second, time.Millisecond)

	// The last 2048 bytes are in the ring, each at its position modulo 2048.
	got := make([]byte, 2048)
	c.ring.ReadAt(got, 0)
	want := make([]byte, 2048)
	for i := 952; i < 3000; i++ {
		want[i%2048] = data[i]
	}
	assert.Equal(t, want, got)

	require.NoError(t, c.Stop(time.Second))
	assert.False(t, c.Running())
	assert.Equal(t, int32(1), stream.aborted.Load())
	assert.Equal(t, float64(0), testutil.ToFloat64(c.metrics.running))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.metrics.errors))
	assert.True(t, log.Contains(logger.InfoPriority, "reader stopped"))
}

func TestStartTwice(t *testing.T) {
	c := NewCollector(t.Name(), 64)
	require.NoError(t, c.Start(newPipeStream()))
	assert.ErrorIs(t, c.Start(newPipeStream()), ErrAlreadyRunning)
	assert.NoError(t, c.Stop(time.Second))
}

func TestStopIsFinal(t *testing.T) {
	c := NewCollector(t.Name(), 64)
	stream := newPipeStream()
	require.NoError(t, c.Start(stream))
	require.NoError(t, c.Stop(time.Second))

	assert.False(t, c.Running())
	assert.NoError(t, c.Stop(time.Second))
	assert.Equal(t, int32(1), stream.aborted.Load())

	// Nothing but Start makes it run again.
	stream.writer.Write([]byte{1, 2, 3})
	c.Sample()
	assert.False(t, c.Running())

	require.NoError(t, c.Start(newPipeStream()))
	assert.True(t, c.Running())
	require.NoError(t, c.Stop(time.Second))
	assert.False(t, c.Running())
}

func TestReaderFailure(t *testing.T) {
	log := logger.NewAccumulator()
	c := NewCollector(t.Name(), 64, WithLogger(log))
	stream := newPipeStream()
	require.NoError(t, c.Start(stream))

	stream.writer.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	stream.writer.CloseWithError(errors.New("usb device unplugged"))

	// Abort is the last thing the reader does before exiting.
	assert.Eventually(t, func() bool {
		return stream.aborted.Load() >= 1
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.errors))
	assert.True(t, log.Contains(logger.ErrorPriority, "usb device unplugged"))

	// The reader does not clear the running flag, and samples are still served.
	assert.True(t, c.Running())
	assert.Equal(t, int64(0x0102030405060708), c.Sample())

	assert.NoError(t, c.Stop(time.Second))
	assert.False(t, c.Running())
}

func TestReaderEOF(t *testing.T) {
	log := logger.NewAccumulator()
	c := NewCollector(t.Name(), 64, WithLogger(log))
	stream := newPipeStream()
	require.NoError(t, c.Start(stream))

	stream.writer.Close()
	assert.Eventually(t, func() bool {
		return log.Contains(logger.ErrorPriority, "unexpected EOF")
	}, 5*time.Second, time.Millisecond)
	assert.NoError(t, c.Stop(time.Second))
}

func TestOpenFailure(t *testing.T) {
	log := logger.NewAccumulator()
	c := NewCollector(t.Name(), 64, WithLogger(log))
	stream := newPipeStream()
	stream.openErr = errors.New("no such pipe")
	require.NoError(t, c.Start(stream))

	assert.Eventually(t, func() bool {
		return stream.aborted.Load() == 1
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.errors))
	assert.True(t, log.Contains(logger.ErrorPriority, "could not open stream: no such pipe"))
	assert.NoError(t, c.Stop(time.Second))
}

func TestStopTimeout(t *testing.T) {
	c := NewCollector(t.Name(), 64)
	stream := &stuckStream{release: make(chan struct{})}
	require.NoError(t, c.Start(stream))

	err := c.Stop(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrStopTimeout)
	assert.False(t, c.Running())

	// The previous reader is still around.
	assert.ErrorIs(t, c.Start(newPipeStream()), ErrAlreadyRunning)

	close(stream.release)
	assert.Eventually(t, func() bool {
		return c.Start(newPipeStream()) == nil
	}, 5*time.Second, time.Millisecond)
	assert.NoError(t, c.Stop(time.Second))
}
