// Package kflags provides an abstraction over the golang flag and the
// spf13/pflag libraries, so components can register their flags without
// knowing which one the final binary uses.
//
// The convention followed by all sdrand components is:
//
//	type Flags struct { ... }
//	func DefaultFlags() *Flags
//	func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags
//
// followed by a FromFlags(flags) modifier accepted by the component constructor.
package kflags

import (
	"fmt"
	"time"
)

// FlagSet interface provides an abstraction over a cobra or golang flag set.
//
// Use GoFlagSet to wrap a flag.FlagSet, and kcobra.FlagSet to wrap a pflag.FlagSet.
type FlagSet interface {
	BoolVar(p *bool, name string, value bool, usage string)
	DurationVar(p *time.Duration, name string, value time.Duration, usage string)
	StringVar(p *string, name string, value string, usage string)
	IntVar(p *int, name string, value int, usage string)
}

// Consumer is any object that can take flags, and provides a common method
// to register flags.
type Consumer interface {
	Register(fs FlagSet, prefix string)
}

// Wrap errors in a StatusError to indicate a different exit value to be
// returned if the error causes the program to exit.
type StatusError struct {
	error
	Code int
}

func (se *StatusError) Unwrap() error {
	return se.error
}

func NewStatusError(code int, err error) *StatusError {
	return &StatusError{error: err, Code: code}
}

func NewStatusErrorf(code int, f string, args ...interface{}) *StatusError {
	return &StatusError{error: fmt.Errorf(f, args...), Code: code}
}

// Wrap errors in an UsageError to indicate that the problem has been caused
// by incorrect flags by the user, and as such, the help screen should be printed.
type UsageError struct {
	error
}

func (ue *UsageError) Unwrap() error {
	return ue.error
}

func NewUsageError(err error) *UsageError {
	return &UsageError{error: err}
}

func NewUsageErrorf(f string, args ...interface{}) *UsageError {
	return &UsageError{error: fmt.Errorf(f, args...)}
}

// Printer is a function capable of printing Printf like strings.
type Printer func(format string, v ...interface{})
