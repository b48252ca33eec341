// Package retry runs operations that can temporarily fail until they succeed,
// waiting between attempts, and giving up after a configured number of them.
//
// To use the retry library:
//
//	options := retry.New(retry.WithWait(5 * time.Millisecond), retry.WithAttempts(10))
//	err := options.Run(func() error {
//	  ...
//	})
//
// The function is run until it returns nil, returns an error wrapping a
// retry.FatalError (use retry.Fatal to create one), or the attempts are
// exhausted.
package retry

import (
	"errors"
	"fmt"
	"time"

	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/enfabrica/sdrand/lib/multierror"
)

// TimeSource is a function returning the current time. Mainly used for testing.
type TimeSource func() time.Time

type Options struct {
	logger      logger.Logger
	description string
	sleep       func(time.Duration)

	Now TimeSource

	Flags
}

type Flags struct {
	// How many times to run the operation, at most. 0 means forever.
	AtMost int
	// How long to wait from the start of an attempt to the next.
	Wait time.Duration
	// How many errors to store at most.
	MaxErrors int
}

func DefaultFlags() *Flags {
	return &Flags{
		AtMost:    5,
		Wait:      1 * time.Second,
		MaxErrors: 10,
	}
}

func (fl *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.IntVar(&fl.AtMost, prefix+"retry-at-most", fl.AtMost, "How many time to retry the operation at most")
	set.IntVar(&fl.MaxErrors, prefix+"retry-max-errors", fl.MaxErrors, "How many errors to record when retrying")
	set.DurationVar(&fl.Wait, prefix+"retry-wait", fl.Wait, "How long to wait from the start of an attempt to the next")
	return fl
}

type Modifier func(*Options)

type Modifiers []Modifier

func (mods Modifiers) Apply(o *Options) *Options {
	for _, m := range mods {
		m(o)
	}
	return o
}

// WithDescription adds text to log messages, to distinguish a retry attempt from another.
func WithDescription(desc string) Modifier {
	return func(o *Options) {
		o.description = desc
	}
}

// WithWait sets how long to wait between the start of an attempt and the next.
func WithWait(duration time.Duration) Modifier {
	return func(o *Options) {
		o.Wait = duration
	}
}

func WithAttempts(atmost int) Modifier {
	return func(o *Options) {
		o.AtMost = atmost
	}
}

// WithLogger logs failed attempts with the specified logger, at debug level.
func WithLogger(log logger.Logger) Modifier {
	return func(o *Options) {
		o.logger = log
	}
}

// WithTimeSource configures a different clock, and a different way to sleep.
func WithTimeSource(ts TimeSource, sleep func(time.Duration)) Modifier {
	return func(o *Options) {
		o.Now = ts
		o.sleep = sleep
	}
}

func FromFlags(fl *Flags) Modifier {
	return func(o *Options) {
		if fl == nil {
			return
		}
		o.Flags = *fl
	}
}

func New(mods ...Modifier) *Options {
	return Modifiers(mods).Apply(&Options{
		Flags:  *DefaultFlags(),
		Now:    time.Now,
		sleep:  time.Sleep,
		logger: logger.Nil,
	})
}

type FatalError struct {
	Original error
}

func (s *FatalError) Error() string {
	if s.Original != nil {
		return s.Original.Error()
	}
	return "requested to stop retrying"
}

func (s *FatalError) Unwrap() error {
	return s.Original
}

// Fatal turns a normal error into one that stops the retrier immediately.
func Fatal(err error) *FatalError {
	return &FatalError{Original: err}
}

// ExhaustedError is returned when the retrier has exhausted all attempts.
type ExhaustedError struct {
	Message string
	// Original is a multierror.MultiError containing the first MaxErrors errors.
	Original error
}

func (ee *ExhaustedError) Error() string {
	return ee.Message
}

func (ee *ExhaustedError) Unwrap() error {
	return ee.Original
}

// DelaySince computes how much longer to wait after an attempt started at start.
func (o *Options) DelaySince(start time.Time) time.Duration {
	elapsed := o.Now().Sub(start)
	if elapsed >= o.Wait {
		return 0
	}
	return o.Wait - elapsed
}

// Run runs the function specified until it succeeds.
//
// When Run gives up, it returns the errors returned by the function wrapped
// into an ExhaustedError. A FatalError is returned unwrapped, as the original error.
func (o *Options) Run(runner func() error) error {
	description := ""
	if o.description != "" {
		description = " - " + o.description
	}

	errs := []error{}
	for ix := 0; o.AtMost == 0 || ix < o.AtMost; ix++ {
		start := o.Now()
		err := runner()
		if err == nil {
			return nil
		}

		var stop *FatalError
		if errors.As(err, &stop) {
			o.logger.Debugf("attempt #%d%s - FAILED - %s - not retrying", ix+1, description, err)
			return stop.Original
		}
		if len(errs) < o.MaxErrors {
			errs = append(errs, err)
		}

		delay := o.DelaySince(start)
		o.logger.Debugf("attempt #%d%s - FAILED - %s - will retry in %s", ix+1, description, err, delay)
		if delay > 0 {
			o.sleep(delay)
		}
	}
	err := multierror.New(errs)
	return &ExhaustedError{Original: err, Message: fmt.Sprintf("gave up after %d attempts - %s", o.AtMost, err)}
}
