//go:build unix

// Package commands implements the sdrand command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/enfabrica/sdrand/lib/entropy"
	"github.com/enfabrica/sdrand/lib/entropy/device"
	"github.com/enfabrica/sdrand/lib/entropy/sdr"
	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/kflags/kcobra"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/enfabrica/sdrand/lib/logger/klog"
	"github.com/enfabrica/sdrand/lib/metrics"
	"github.com/enfabrica/sdrand/lib/multierror"
	"github.com/enfabrica/sdrand/lib/srand"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type Root struct {
	*cobra.Command
	Log logger.Logger

	MetricsPort int

	log     *klog.Flags
	entropy *entropy.Flags
	sdr     *sdr.Flags
	device  *device.Flags
}

func NewRoot() *Root {
	rc := &Root{
		Command: &cobra.Command{
			Use:           "sdrand",
			SilenceUsage:  true,
			SilenceErrors: true,
			Long:          `sdrand - random numbers from the noise captured by a radio`,
			Example: `  $ sdrand --source=sdr --sdr-pipe=/tmp/sdr.fifo generate --kind=intn --bound=100 --count=10
        To print 10 numbers between 0 and 99, using the noise of the FM band.

  $ sdrand --source=device --device-path=/dev/hwrng dump --bytes=1024 > random.bin
        To store 1KiB of random bytes read from a hardware generator.

  $ sdrand uuid
        To generate an UUID with a time seeded generator.`,
		},
		Log: logger.Nil,
	}

	set := &kcobra.FlagSet{FlagSet: rc.PersistentFlags()}
	rc.log = klog.DefaultFlags().Register(set, "")
	rc.entropy = entropy.DefaultFlags().Register(set, "")
	rc.sdr = sdr.DefaultFlags().Register(set, "sdr-")
	rc.device = device.DefaultFlags().Register(set, "device-")
	rc.PersistentFlags().IntVar(&rc.MetricsPort, "metrics-port", 0, "If not 0, port to export prometheus metrics on, at /metrics")

	rc.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		log, err := klog.New("sdrand", klog.FromFlags(*rc.log), klog.WithConsole(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		rc.Log = log
		kcobra.LogFlags(cmd, log.Debugf)
		return nil
	}

	rc.AddCommand(NewGenerate(rc).Command)
	rc.AddCommand(NewDump(rc).Command)
	rc.AddCommand(NewUUID(rc).Command)
	return rc
}

// Registry returns the entropy sources selectable with --source.
func (rc *Root) Registry() entropy.Registry {
	return entropy.Registry{
		sdr.Name: func(log logger.Logger) (entropy.Source, error) {
			return sdr.New(sdr.WithLogger(log), sdr.FromFlags(rc.sdr)), nil
		},
		device.Name: func(log logger.Logger) (entropy.Source, error) {
			return device.New(device.WithLogger(log), device.FromFlags(rc.device)), nil
		},
		"crypto": entropy.CryptoFactory,
	}
}

// WithGenerator invokes run with a generator backed by the configured entropy
// source, and stops the source once run returns.
func (rc *Root) WithGenerator(ctx context.Context, run func(gen *srand.Generator) error) error {
	if rc.MetricsPort > 0 {
		server, err := metrics.StartServer(fmt.Sprintf(":%d", rc.MetricsPort), "/metrics", rc.Log)
		if err != nil {
			return kflags.NewStatusError(2, err)
		}
		defer func() {
			if err := server.Stop(5 * time.Second); err != nil {
				rc.Log.Warnf("metrics server failed - %s", err)
			}
		}()
	}

	gen, source := entropy.Select(ctx, rc.Registry(), rc.entropy, rc.Log)
	err := run(gen)
	if source == nil {
		return err
	}
	return multierror.Wrap(err, source.Stop(rc.entropy.StopTimeout))
}

// Kinds lists the values WriteValues can produce.
var Kinds = []string{"int", "intn", "long", "bool", "float", "double", "gaussian"}

// WriteValues writes count values of the specified kind to out, one per line.
//
// bound is only used by intn, and must be positive.
func WriteValues(out io.Writer, gen *srand.Generator, kind string, bound int32, count int) error {
	var next func() interface{}
	switch kind {
	case "int":
		next = func() interface{} { return gen.Int32() }
	case "intn":
		if bound <= 0 {
			return kflags.NewUsageErrorf("--bound must be positive for intn, got %d", bound)
		}
		next = func() interface{} { return gen.Int32n(bound) }
	case "long":
		next = func() interface{} { return gen.Int64() }
	case "bool":
		next = func() interface{} { return gen.Bool() }
	case "float":
		next = func() interface{} { return gen.Float32() }
	case "double":
		next = func() interface{} { return gen.Float64() }
	case "gaussian":
		next = func() interface{} { return gen.NormFloat64() }
	default:
		return kflags.NewUsageErrorf("invalid --kind %q - valid: %s", kind, strings.Join(Kinds, ", "))
	}

	for i := 0; i < count; i++ {
		if _, err := fmt.Fprintln(out, next()); err != nil {
			return err
		}
	}
	return nil
}

type Generate struct {
	*cobra.Command
	root *Root

	Kind  string
	Bound int32
	Count int
}

func NewGenerate(root *Root) *Generate {
	command := &Generate{
		Command: &cobra.Command{
			Use:     "generate",
			Aliases: []string{"gen"},
			Short:   "Prints random numbers, one per line",
			Args:    cobra.NoArgs,
		},
		root: root,
	}
	command.Command.RunE = command.Run
	command.Flags().StringVarP(&command.Kind, "kind", "k", "int", "Kind of value to generate, one of: "+strings.Join(Kinds, ", "))
	command.Flags().Int32VarP(&command.Bound, "bound", "b", 100, "Exclusive upper bound of the values generated with --kind=intn")
	command.Flags().IntVarP(&command.Count, "count", "c", 1, "How many values to generate")
	return command
}

func (gc *Generate) Run(cmd *cobra.Command, args []string) error {
	return gc.root.WithGenerator(cmd.Context(), func(gen *srand.Generator) error {
		return WriteValues(cmd.OutOrStdout(), gen, gc.Kind, gc.Bound, gc.Count)
	})
}

type Dump struct {
	*cobra.Command
	root *Root

	Bytes int64
}

func NewDump(root *Root) *Dump {
	command := &Dump{
		Command: &cobra.Command{
			Use:   "dump",
			Short: "Writes raw random bytes to stdout",
			Args:  cobra.NoArgs,
		},
		root: root,
	}
	command.Command.RunE = command.Run
	command.Flags().Int64VarP(&command.Bytes, "bytes", "n", 1024, "How many bytes to write")
	return command
}

func (dc *Dump) Run(cmd *cobra.Command, args []string) error {
	if dc.Bytes < 0 {
		return kflags.NewUsageErrorf("--bytes cannot be negative, got %d", dc.Bytes)
	}
	return dc.root.WithGenerator(cmd.Context(), func(gen *srand.Generator) error {
		written, err := io.CopyN(cmd.OutOrStdout(), gen, dc.Bytes)
		dc.root.Log.Infof("wrote %s of random data", humanize.IBytes(uint64(written)))
		return err
	})
}

type UUID struct {
	*cobra.Command
	root *Root

	Count int
}

func NewUUID(root *Root) *UUID {
	command := &UUID{
		Command: &cobra.Command{
			Use:   "uuid",
			Short: "Prints version 4 UUIDs",
			Args:  cobra.NoArgs,
		},
		root: root,
	}
	command.Command.RunE = command.Run
	command.Flags().IntVarP(&command.Count, "count", "c", 1, "How many UUIDs to generate")
	return command
}

func (uc *UUID) Run(cmd *cobra.Command, args []string) error {
	return uc.root.WithGenerator(cmd.Context(), func(gen *srand.Generator) error {
		for i := 0; i < uc.Count; i++ {
			id, err := uuid.NewRandomFromReader(gen)
			if err != nil {
				return fmt.Errorf("could not generate uuid: %w", err)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
				return err
			}
		}
		return nil
	})
}
