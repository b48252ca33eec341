// Package multierror combines multiple errors into one.
//
// Typical use is shutting down a component that owns multiple resources,
// where each release can fail independently:
//
//	return multierror.Wrap(process.Kill(), stream.Close())
package multierror

import (
	"strings"
)

const Separator = "\n "

// MultiError is an error carrying a list of errors.
//
// errors.Is and errors.As match against any of the errors in the list.
type MultiError []error

var (
	_ error                         = MultiError{}
	_ interface{ Unwrap() []error } = MultiError{}
)

// New creates an error from a list of errors, ignoring nil ones.
//
// Returns nil if no error is left, the error itself if only one is left,
// and a MultiError otherwise.
func New(errs []error) error {
	var filtered MultiError
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}

	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	}
	return filtered
}

// Wrap is a convenience form of New.
func Wrap(errs ...error) error {
	return New(errs)
}

func (multi MultiError) Unwrap() []error {
	return multi
}

func (multi MultiError) Error() string {
	messages := make([]string, 0, len(multi))
	for _, err := range multi {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, Separator)
}
