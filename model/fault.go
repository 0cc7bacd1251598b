package model

import (
	"errors"
	"fmt"
)

// FatalError marks an invariant violation that indicates a bug or feed
// corruption rather than an ordinary operational failure. Callers must not
// attempt to recover from it: it is meant to propagate all the way up to
// main, which logs it at the crit level and terminates the process.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

func Fatalf(format string, args ...any) error {
	return &FatalError{err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
