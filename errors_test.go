package vfs

import (
	"errors"
	"testing"
)

func TestOpErrorUnwrap(t *testing.T) {
	assert := newAsserter(t)

	err := opErr("stat", "/a/b", ErrNotFound)
	assert(errors.Is(err, ErrNotFound), "OpError must unwrap to its wrapped sentinel")
	assert(!errors.Is(err, ErrExists), "OpError must not match an unrelated sentinel")

	var oe *OpError
	assert(errors.As(err, &oe), "errors.As must recover the *OpError")
	assert(oe.Op == "stat" && oe.Path == "/a/b", "OpError must retain its op/path")
}

func TestIsNotFound(t *testing.T) {
	assert := newAsserter(t)

	assert(IsNotFound(ErrNotFound), "ErrNotFound must be reported as not-found")
	assert(IsNotFound(ErrDirectoryNotFound), "ErrDirectoryNotFound must be reported as not-found")
	assert(IsNotFound(opErr("open", "/x", ErrNotFound)), "a wrapping OpError must still report as not-found")
	assert(!IsNotFound(ErrExists), "ErrExists must not be reported as not-found")
}
