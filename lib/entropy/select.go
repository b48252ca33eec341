package entropy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/enfabrica/sdrand/lib/srand"
)

// Factory creates an idle Source.
type Factory func(log logger.Logger) (Source, error)

// Registry maps the name of an entropy source, as used in configs and flags, to its Factory.
type Registry map[string]Factory

// Keys returns the sorted names of the registered sources.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Create instantiates the source registered under key.
func (r Registry) Create(key string, log logger.Logger) (Source, error) {
	factory, found := r[key]
	if !found {
		return nil, fmt.Errorf("%w %q - valid: %s", ErrUnknownSource, key, strings.Join(r.Keys(), ", "))
	}
	source, err := factory(log)
	if err != nil {
		return nil, fmt.Errorf("could not create entropy source %q: %w", key, err)
	}
	return source, nil
}

// CryptoFactory creates a Source backed by crypto/rand, useful when no noise hardware is available.
func CryptoFactory(log logger.Logger) (Source, error) {
	return NewStatic(srand.Crypto{}), nil
}

type Flags struct {
	Source       string
	StartTimeout time.Duration
	StopTimeout  time.Duration
}

func DefaultFlags() *Flags {
	return &Flags{
		StartTimeout: 30 * time.Second,
		StopTimeout:  5 * time.Second,
	}
}

func (fl *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&fl.Source, prefix+"source", fl.Source, "Entropy source to use to generate random numbers. Empty means a time seeded pseudo random generator")
	set.DurationVar(&fl.StartTimeout, prefix+"start-timeout", fl.StartTimeout, "How long to wait at most for the entropy source to start")
	set.DurationVar(&fl.StopTimeout, prefix+"stop-timeout", fl.StopTimeout, "How long to wait at most for the entropy source to stop")
	return fl
}

// Select creates and starts the source configured in flags, and returns a generator using it.
//
// Select never fails: if no source is configured, or the configured source
// cannot be created or started, the problem is logged and a time seeded
// generator is returned instead, with a nil Source.
//
// On success, the returned Source is running, and the caller is responsible
// for stopping it.
func Select(ctx context.Context, registry Registry, flags *Flags, log logger.Logger) (*srand.Generator, Source) {
	if flags.Source == "" {
		log.Infof("no entropy source configured - using time seeded generator")
		return srand.NewTimeSeeded(), nil
	}

	source, err := registry.Create(flags.Source, log)
	if err != nil {
		log.Errorf("%s - falling back to time seeded generator", err)
		return srand.NewTimeSeeded(), nil
	}

	if flags.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.StartTimeout)
		defer cancel()
	}
	if err := source.Start(ctx); err != nil {
		log.Errorf("could not start entropy source %q: %s - falling back to time seeded generator", flags.Source, err)
		if serr := source.Stop(flags.StopTimeout); serr != nil {
			log.Warnf("could not stop entropy source %q: %s", flags.Source, serr)
		}
		return srand.NewTimeSeeded(), nil
	}

	log.Infof("using entropy source %q", flags.Source)
	return srand.New(source), source
}
