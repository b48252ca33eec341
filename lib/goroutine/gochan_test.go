package goroutine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunWait(t *testing.T) {
	failed := errors.New("stream closed")
	assert.Equal(t, failed, Run(func() error { return failed }).Wait(time.Second))
	assert.NoError(t, Run(func() error { return nil }).Wait(time.Second))
}

func TestWaitTimeout(t *testing.T) {
	release := make(chan struct{})
	ec := Run(func() error {
		<-release
		return nil
	})

	assert.Equal(t, ErrTimeout, ec.Wait(10*time.Millisecond))
	done, _ := ec.Poll()
	assert.False(t, done)

	close(release)
	assert.NoError(t, ec.Wait(time.Second))
}

func TestPoll(t *testing.T) {
	failed := errors.New("open failed")
	ec := Run(func() error { return failed })
	assert.Equal(t, failed, ec.Wait(time.Second))

	ec = Run(func() error { return failed })
	assert.Eventually(t, func() bool { return len(ec) > 0 }, time.Second, time.Millisecond)
	done, err := ec.Poll()
	assert.True(t, done)
	assert.Equal(t, failed, err)
}
