//go:build unix

package main

import (
	"github.com/enfabrica/sdrand/lib/kflags"
	"github.com/enfabrica/sdrand/lib/kflags/kcobra"
	"github.com/enfabrica/sdrand/sdrand/commands"
)

func main() {
	root := commands.NewRoot()
	kcobra.Run(root.Command, kcobra.WithEnv(kflags.NewEnvAugmenter(kflags.WithPrefixes("sdrand"))))
}
