// Package device collects entropy by reading a file, typically a character
// device exported by a hardware random number generator like /dev/hwrng.
package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/enfabrica/sdrand/lib/entropy"
	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/logger"
)

const Name = "device"

type Flags struct {
	Path       string
	BufferSize int
}

func DefaultFlags() *Flags {
	return &Flags{
		Path:       "/dev/hwrng",
		BufferSize: entropy.DefaultBufferSize,
	}
}

func (fl *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&fl.Path, prefix+"path", fl.Path, "Path of the device to read entropy from")
	set.IntVar(&fl.BufferSize, prefix+"buffer-size", fl.BufferSize, "Size of the ring buffer holding the bytes read from the device")
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

// Source is an entropy.Source reading a device.
type Source struct {
	name      string
	log       logger.Logger
	flags     Flags
	collector *entropy.Collector

	lock sync.Mutex
}

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

// Start verifies the device can be opened, and starts reading it.
func (s *Source) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.collector.Running() {
		return entropy.ErrAlreadyRunning
	}

	f, err := os.Open(s.flags.Path)
	if err != nil {
		err = fmt.Errorf("could not open entropy device: %w", err)
		s.log.Errorf("%s: %s", s.name, err)
		return err
	}
	f.Close()

	return s.collector.Start(file(s.flags.Path))
}

// Stop stops the reader. A reader blocked in a read of a device only returns
// once the device produces data.
func (s *Source) Stop(timeout time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.collector.Stop(timeout)
}

// file is an entropy.Stream reading a path.
type file string

func (f file) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// Abort is a no-op: there is nothing producing the data to release.
func (f file) Abort() error {
	return nil
}
