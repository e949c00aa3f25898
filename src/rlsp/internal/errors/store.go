package errors

import (
	stderr "errors"
	"fmt"
)

// CorruptedStoreError reports that a persisted document could not be read or parsed.
// Callers treat it as an empty document.
type CorruptedStoreError struct {
	Path string
	Err  error
}

// Error is an implementation of the error interface.
func (c *CorruptedStoreError) Error() string {
	return fmt.Sprintf("persisted state %q is unreadable: %s", c.Path, c.Err)
}

// Unwrap returns the underlying read or parse error.
func (c *CorruptedStoreError) Unwrap() error {
	return c.Err
}

// IsCorruptedStore reports whether a CorruptedStoreError is part of the error chain.
func IsCorruptedStore(e error) bool {
	var c *CorruptedStoreError
	return stderr.As(e, &c)
}

// UnknownBackendError reports a backend name without a matching definition.
type UnknownBackendError struct {
	Name string
}

// Error is an implementation of the error interface.
func (u *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend %q", u.Name)
}
