//go:build unix

// Package sdr collects entropy from the noise received by an RTL-SDR radio.
//
// The radio is driven by a shell pipeline, by default rtl_fm, tuned to an FM
// frequency, copying the raw demodulated samples into a FIFO with tee. A
// Collector drains the FIFO into a ring buffer.
//
// Typical use:
//
//	source := sdr.New(sdr.WithLogger(log), sdr.FromFlags(flags))
//	if err := source.Start(ctx); err != nil {
//	    ...
//	}
//	defer source.Stop(5 * time.Second)
//
//	gen := srand.New(source)
package sdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/enfabrica/sdrand/lib/entropy"
	"github.com/enfabrica/sdrand/lib/goroutine"
	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/enfabrica/sdrand/lib/multierror"
	"github.com/enfabrica/sdrand/lib/retry"
	"golang.org/x/sys/unix"
)

// DefaultCommand is the pipeline started by default.
//
// The first %s is replaced with the frequency, the second with the path of the FIFO.
const DefaultCommand = "rtl_fm -g 50 -f %s -M wfm -s 180k -E deemp | tee %s | play -q -r 180k -t raw -e s -b 16 -c 1 -V1 - lowpass 16k"

// Name of the source, in metrics and logs.
const Name = "sdr"

var mkfifo = unix.Mkfifo

type Flags struct {
	Frequency   string
	Pipe        string
	BufferSize  int
	StartupWait time.Duration
	Command     string

	// Bounds the attempts at releasing a reader blocked opening the FIFO.
	Release retry.Flags
}

func DefaultFlags() *Flags {
	return &Flags{
		Frequency:   "92.5M",
		BufferSize:  entropy.DefaultBufferSize,
		StartupWait: 5 * time.Second,
		Command:     DefaultCommand,
		Release:     retry.Flags{
			AtMost:    200,
			Wait:      5 * time.Millisecond,
			MaxErrors: 10,
		},
	}
}

func (fl *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&fl.Frequency, prefix+"frequency", fl.Frequency, "Frequency to tune the radio to, in any format accepted by rtl_fm")
	set.StringVar(&fl.Pipe, prefix+"pipe", fl.Pipe, "Path of the FIFO the radio samples are copied into. Created if it does not exist")
	set.IntVar(&fl.BufferSize, prefix+"buffer-size", fl.BufferSize, "Size of the ring buffer holding the collected samples, in bytes")
	set.DurationVar(&fl.StartupWait, prefix+"startup-wait", fl.StartupWait, "How long the pipeline must stay alive to be considered started")
	set.StringVar(&fl.Command, prefix+"command", fl.Command, "Shell pipeline generating the samples. The first %s is replaced with the frequency, the second with the FIFO path")
	fl.Release.Register(set, prefix+"release-")
	return fl
}

type Modifier func(*Source)

type Modifiers []Modifier

func (mods Modifiers) Apply(s *Source) *Source {
	for _, m := range mods {
		m(s)
	}
	return s
}

func WithLogger(log logger.Logger) Modifier {
	return func(s *Source) {
		s.log = log
	}
}

// WithName changes the name used in logs and metrics, Name by default.
func WithName(name string) Modifier {
	return func(s *Source) {
		s.name = name
	}
}

func FromFlags(fl *Flags) Modifier {
	return func(s *Source) {
		if fl == nil {
			return
		}
		s.flags = *fl
	}
}

// Source is an entropy.Source backed by an SDR pipeline.
type Source struct {
	name      string
	log       logger.Logger
	flags     Flags
	collector *entropy.Collector

	// Serializes Start and Stop.
	lock sync.Mutex

	// Protects the process handle, used by the reader goroutine on failure.
	proc   sync.Mutex
	cmd    *exec.Cmd
	exited goroutine.ErrorChannel

	// True from the start of the reader until it is done opening the FIFO.
	opening atomic.Bool
}

// New creates an idle SDR source. Nothing is started until Start is invoked.
func New(mods ...Modifier) *Source {
	s := Modifiers(mods).Apply(&Source{
		name:  Name,
		log:   logger.Nil,
		flags: *DefaultFlags(),
	})
	s.collector = entropy.NewCollector(s.name, s.flags.BufferSize, entropy.WithLogger(s.log))
	return s
}

func (s *Source) Sample() int64 {
	return s.collector.Sample()
}

func (s *Source) Running() bool {
	return s.collector.Running()
}

// Start creates the FIFO, launches the pipeline, and starts draining the FIFO.
//
// If the pipeline exits within the configured startup wait, or cannot be
// launched at all, an error is returned and the source stays idle. An exit
// within the startup wait is a failure even with status 0: no reader is
// started on a FIFO nobody is going to write.
func (s *Source) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.collector.Running() {
		return entropy.ErrAlreadyRunning
	}

	if err := s.launch(ctx); err != nil {
		entropy.MetricProcessStarts.WithLabelValues(s.name, "failed").Inc()
		s.log.Errorf("%s: %s", s.name, err)
		return err
	}
	entropy.MetricProcessStarts.WithLabelValues(s.name, "ok").Inc()

	s.opening.Store(true)
	if err := s.collector.Start(&fifo{s}); err != nil {
		s.opening.Store(false)
		return multierror.Wrap(err, s.reap(time.Second))
	}
	return nil
}

// Stop stops the reader, kills the pipeline, and waits up to timeout for both.
func (s *Source) Stop(timeout time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return multierror.Wrap(s.collector.Stop(timeout), s.reap(timeout))
}

func (s *Source) launch(ctx context.Context) error {
	pipe := s.flags.Pipe
	if pipe == "" {
		return kflags.NewUsageErrorf("%s: a path for the FIFO must be configured", s.name)
	}

	info, err := os.Stat(pipe)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := mkfifo(pipe, 0600); err != nil {
			return fmt.Errorf("could not create FIFO %s: %w", pipe, err)
		}
		s.log.Infof("%s: created FIFO %s", s.name, pipe)
	case err != nil:
		return fmt.Errorf("could not access FIFO %s: %w", pipe, err)
	case info.Mode()&fs.ModeNamedPipe == 0:
		s.log.Warnf("%s: %s exists and is not a FIFO (mode %s) - reading from it anyway", s.name, pipe, info.Mode())
	}

	command := fmt.Sprintf(s.flags.Command, s.flags.Frequency, pipe)
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = os.Environ()
	// Own process group, so the whole pipeline can be killed at once.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = &logger.LineWriter{Prefix: "[" + s.name + " stdout] ", Printer: s.log.Infof}
	cmd.Stderr = &logger.LineWriter{Prefix: "[" + s.name + " stderr] ", Printer: s.log.Infof}
	cmd.WaitDelay = time.Second

	s.log.Infof("%s: running %q", s.name, command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not run %q: %w", command, err)
	}
	exited := goroutine.Run(cmd.Wait)

	timer := time.NewTimer(s.flags.StartupWait)
	defer timer.Stop()
	select {
	case err := <-exited:
		if err == nil {
			err = errors.New("exit status 0")
		}
		return fmt.Errorf("%q terminated within %s from start: %w", command, s.flags.StartupWait, err)
	case <-ctx.Done():
		s.log.Warnf("%s: startup wait interrupted - %s - pipeline still running, assuming started", s.name, ctx.Err())
	case <-timer.C:
	}

	s.proc.Lock()
	s.cmd = cmd
	s.exited = exited
	s.proc.Unlock()
	return nil
}

// kill terminates the process group of the pipeline, if any.
func (s *Source) kill() error {
	s.proc.Lock()
	cmd := s.cmd
	s.proc.Unlock()
	if cmd == nil {
		return nil
	}

	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("could not kill process group %d: %w", cmd.Process.Pid, err)
	}
	return nil
}

// reap kills the pipeline and waits up to timeout for it to be collected.
func (s *Source) reap(timeout time.Duration) error {
	err := s.kill()

	s.proc.Lock()
	cmd, exited := s.cmd, s.exited
	s.cmd, s.exited = nil, nil
	s.proc.Unlock()
	if exited == nil {
		return err
	}

	if werr := exited.Wait(timeout); errors.Is(werr, goroutine.ErrTimeout) {
		return multierror.Wrap(err, fmt.Errorf("%w - process %d still alive after %s", entropy.ErrStopTimeout, cmd.Process.Pid, timeout))
	}
	return err
}

// fifo is the entropy.Stream reading the FIFO written by the pipeline.
type fifo struct {
	*Source
}

// Open blocks until the pipeline opens the FIFO for writing.
func (f *fifo) Open() (io.ReadCloser, error) {
	defer f.opening.Store(false)
	return os.OpenFile(f.flags.Pipe, os.O_RDONLY, 0)
}

// Abort kills the pipeline and unblocks a reader waiting in Open.
func (f *fifo) Abort() error {
	errs := []error{f.kill()}

	// Opening the write side releases a reader blocked opening the read side.
	// ENXIO means the reader is not in the open syscall yet.
	release := retry.New(
		retry.FromFlags(&f.flags.Release),
		retry.WithLogger(f.log),
		retry.WithDescription("releasing reader of "+f.flags.Pipe),
	)
	err := release.Run(func() error {
		if !f.opening.Load() {
			return nil
		}
		fd, err := unix.Open(f.flags.Pipe, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			return unix.Close(fd)
		}
		if !errors.Is(err, unix.ENXIO) {
			return retry.Fatal(err)
		}
		return err
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("could not release reader of %s: %w", f.flags.Pipe, err))
	}
	return multierror.New(errs)
}
