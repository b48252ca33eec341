package goroutine

import (
	"errors"
	"time"
)

// ErrTimeout is returned by Wait when the goroutine did not complete in time.
var ErrTimeout = errors.New("timed out waiting for goroutine to complete")

// ErrorChannel is a simple "chan error" with a couple convenience methods,
// and strong typing to help the compiler.
//
// The channel receives exactly one value, the result of the goroutine.
type ErrorChannel chan error

// Wait waits up to timeout for the goroutine to complete, and returns its result.
//
// If the goroutine does not complete in time, ErrTimeout is returned. Once the
// result has been returned, the channel is empty: Wait must only be called once
// successfully.
func (ec ErrorChannel) Wait(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-ec:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

// Poll returns the result of the goroutine if it already completed, without blocking.
//
// done is false if the goroutine is still running.
func (ec ErrorChannel) Poll() (done bool, err error) {
	select {
	case err := <-ec:
		return true, err
	default:
		return false, nil
	}
}

// Run will start a go() coroutine for the specified function, and return an error channel.
func Run(goroutine func() error) ErrorChannel {
	ch := make(chan error, 1)
	go func() {
		ch <- goroutine()
	}()

	return ch
}
