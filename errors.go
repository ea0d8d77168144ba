// errors.go - descriptive errors for the vfs composition core
//
// (c) 2024- Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package vfs

import (
	"errors"
	"fmt"
)

// isAny returns true if the target error 'err' matches
// any in the list 'errs'; and returns false otherwise
func isAny(err error, errs ...error) bool {
	for _, e := range errs {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Error kinds raised by the composition core. A leaf filesystem may
// return these directly; a composer wraps them in an OpError together
// with the path that triggered the failure.
var (
	ErrNotFound          = errors.New("vfs: not found")
	ErrDirectoryNotFound = errors.New("vfs: directory not found")
	ErrUnauthorized      = errors.New("vfs: unauthorized")
	ErrNotSupported      = errors.New("vfs: not supported")
	ErrReadOnly          = errors.New("vfs: read-only filesystem")
	ErrExists            = errors.New("vfs: already exists")
	ErrInvalidArgument   = errors.New("vfs: invalid argument")
	ErrInvalidState      = errors.New("vfs: invalid state")
	ErrCyclicComposition = errors.New("vfs: cyclic filesystem composition")
)

// OpError represents an error raised by a composer for a specific
// operation and path. It wraps the underlying error kind so callers can
// continue to use errors.Is against the sentinel errors above.
type OpError struct {
	Op   string
	Path string
	Err  error
}

// Error returns a string representation of OpError
func (e *OpError) Error() string {
	return fmt.Sprintf("vfs: %s '%s': %s", e.Op, e.Path, e.Err.Error())
}

// Unwrap returns the underlying wrapped error
func (e *OpError) Unwrap() error {
	return e.Err
}

var _ error = &OpError{}

// opErr builds a consistent OpError for a given path string.
func opErr(op, path string, err error) error {
	return &OpError{Op: op, Path: path, Err: err}
}

// IsNotFound returns true if err is, or wraps, ErrNotFound or
// ErrDirectoryNotFound.
func IsNotFound(err error) bool {
	return isAny(err, ErrNotFound, ErrDirectoryNotFound)
}
