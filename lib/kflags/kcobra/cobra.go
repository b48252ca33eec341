// Package kcobra glues kflags to the spf13/cobra and spf13/pflag libraries.
package kcobra

import (
	"errors"
	"fmt"
	"os"

	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagSet wraps a pflag.FlagSet to implement the kflags.FlagSet interface.
//
// Typical use:
//
//	flags := sdr.DefaultFlags().Register(&kcobra.FlagSet{root.PersistentFlags()}, "")
type FlagSet struct {
	*pflag.FlagSet
}

var _ kflags.FlagSet = &FlagSet{}

// LogFlags logs the value of each flag of the command, and whether it was changed by the user.
func LogFlags(command *cobra.Command, log logger.Printer) {
	log("Running: %s", os.Args)
	command.Flags().VisitAll(func(flag *pflag.Flag) {
		name := "--" + flag.Name
		if flag.Shorthand != "" {
			name += " (-" + flag.Shorthand + ")"
		}
		changed := "[not changed by user]"
		if flag.Changed {
			changed = fmt.Sprintf("[changed by user - original '%s']", flag.DefValue)
		}
		log("- flag %s value '%s' %s", name, flag.Value, changed)
	})
}

// An ErrorHandler transforms an error before it is shown to the user.
type ErrorHandler func(err error) error

type options struct {
	ehandlers []ErrorHandler
	printer   kflags.Printer
	argv      []string
	exit      func(code int)
	env       *kflags.EnvAugmenter
}

type Modifier func(*cobra.Command, *options) error

type Modifiers []Modifier

func (mods Modifiers) Apply(c *cobra.Command, o *options) error {
	for _, m := range mods {
		if err := m(c, o); err != nil {
			return err
		}
	}
	return nil
}

// WithPrinter logs all the flags and their values with the printer before running the command.
func WithPrinter(log kflags.Printer) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.printer = log
		return nil
	}
}

func WithErrorHandler(eh ...ErrorHandler) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.ehandlers = append(o.ehandlers, eh...)
		return nil
	}
}

// WithArgs runs the command with the specified argv, including argv[0].
func WithArgs(argv []string) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.argv = argv
		return nil
	}
}

// WithEnv sets the defaults of the flags from the environment, before parsing argv.
func WithEnv(env *kflags.EnvAugmenter) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.env = env
		return nil
	}
}

// WithExit replaces os.Exit, invoked when the command fails. Mainly used for testing.
func WithExit(exit func(code int)) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.exit = exit
		return nil
	}
}

// Run executes the root command, printing errors and exiting with the proper status on failure.
//
// Errors wrapping a kflags.UsageError cause the usage of the command to be printed.
// Errors wrapping a kflags.StatusError cause the process to exit with the specified code.
func Run(root *cobra.Command, mods ...Modifier) {
	o := options{
		argv: os.Args,
		exit: os.Exit,
	}

	err := Modifiers(mods).Apply(root, &o)
	if err == nil && o.env != nil {
		err = PopulateFromEnv(root, o.argv, o.env)
	}
	if o.printer != nil {
		LogFlags(root, (logger.Printer)(o.printer))
	}

	// Cobra expects argv without argv[0], without the path of the command.
	argv := o.argv
	if len(argv) >= 1 {
		argv = argv[1:]
	}
	root.SetArgs(argv)

	if err == nil {
		err = root.Execute()
	}
	if err == nil {
		return
	}

	cmd, _, nerr := root.Find(argv)
	if nerr != nil {
		cmd = root
	}
	for _, eh := range o.ehandlers {
		err = eh(err)
	}

	var ue *kflags.UsageError
	if errors.As(err, &ue) {
		root.Println(cmd.UsageString())
	}
	exit := 1
	var se *kflags.StatusError
	if errors.As(err, &se) {
		exit = se.Code
	}

	root.Printf("ERROR: %s\n", err)
	o.exit(exit)
}
