package kflags

import (
	"flag"
)

// GoFlagSet wraps a flag.FlagSet from the go standard library to implement FlagSet.
//
// For example, to use the default "flag" library FlagSet:
//
//	var set kflags.FlagSet
//	set = &kflags.GoFlagSet{FlagSet: flag.CommandLine}
type GoFlagSet struct {
	*flag.FlagSet
}

var _ FlagSet = &GoFlagSet{}
