package kcobra

import (
	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// PFlag adapts a pflag.Flag to the kflags.Flag interface.
type PFlag struct {
	*pflag.Flag
}

func (pf *PFlag) Name() string {
	return pf.Flag.Name
}

// Set changes the value of the flag, and makes it the default shown in the help screen.
func (pf *PFlag) Set(value string) error {
	if err := pf.Flag.Value.Set(value); err != nil {
		return err
	}
	pf.Flag.DefValue = value
	return nil
}

// PopulateFromEnv walks the flags of the command that would run given args,
// and of all its parents, and sets their defaults from the environment.
//
// args is expected to include argv[0]. Flags already changed are left alone.
func PopulateFromEnv(root *cobra.Command, args []string, env *kflags.EnvAugmenter) error {
	if len(args) >= 1 {
		args = args[1:]
	}
	target, _, _ := root.Find(args)
	if target == nil {
		target = root
	}

	// Flags() of a command only includes the persistent flags of the parents
	// once cobra merged them, which depends on args. Walk each command instead.
	errs := []error{}
	seen := map[string]struct{}{}
	visit := func(flag *pflag.Flag) {
		if _, found := seen[flag.Name]; found || flag.Changed {
			return
		}
		seen[flag.Name] = struct{}{}

		if _, err := env.VisitFlag(&PFlag{flag}); err != nil {
			errs = append(errs, err)
		}
	}
	for cmd := target; cmd != nil; cmd = cmd.Parent() {
		cmd.LocalFlags().VisitAll(visit)
		cmd.PersistentFlags().VisitAll(visit)
	}
	return multierror.New(errs)
}
