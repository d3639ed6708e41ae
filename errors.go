package hydrodb

import "fmt"

// ValidationError reports a malformed or out-of-domain argument. It is
// always raised before any store access and is never worth retrying.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ConstraintError reports a metadata value that has no row in its
// reference table. It carries the offending field and value and is
// propagated to callers unwrapped.
type ConstraintError struct {
	Field string
	Value string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("could not find %s with value %s", e.Field, e.Value)
}

// StoreError wraps a failure from the underlying database with a
// human-readable context message.
type StoreError struct {
	msg string
	err error
}

func (e *StoreError) Error() string { return e.msg + ": " + e.err.Error() }

func (e *StoreError) Unwrap() error { return e.err }
