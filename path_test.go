package vfs

import (
	"fmt"
	"runtime"
	"testing"
)

func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}
		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}
		s := fmt.Sprintf(msg, args...)
		t.Fatalf("\n%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

func TestPathNullAndRoot(t *testing.T) {
	assert := newAsserter(t)

	assert(Null.IsNull(), "Null must be null")
	assert(!Null.IsRoot(), "Null must not be root")
	assert(Root.IsRoot(), "Root must be root")
	assert(!Root.IsNull(), "Root must not be null")
	assert(NewPath("").IsNull(), "empty string must yield null")
	assert(NewPath("/").IsRoot(), "\"/\" must yield root")
}

func TestPathJoin(t *testing.T) {
	assert := newAsserter(t)

	cases := []struct {
		a, b, want string
	}{
		{"/a", "b", "/a/b"},
		{"/a/", "b", "/a/b"},
		{"/a", "/b", "/a/b"},
		{"/", "a", "/a"},
		{"/a", "", "/a"},
	}
	for _, c := range cases {
		got := NewPath(c.a).Join(NewPath(c.b))
		assert(got.String() == c.want, "Join(%q, %q) = %q, want %q", c.a, c.b, got.String(), c.want)
	}

	assert(Null.Join(NewPath("/x")).Equal(NewPath("/x")), "Join on a null receiver must yield the argument")
	assert(NewPath("/x").Join(Null).Equal(NewPath("/x")), "Join with a null argument must yield the receiver")
}

func TestPathIsInDirectory(t *testing.T) {
	assert := newAsserter(t)

	assert(NewPath("/a").IsInDirectory(Root, false), "/a is a direct child of /")
	assert(!NewPath("/a/b").IsInDirectory(Root, false), "/a/b is not a direct child of /")
	assert(NewPath("/a/b/c").IsInDirectory(Root, true), "/a/b/c is a descendant of / recursively")
	assert(NewPath("/a/b").IsInDirectory(NewPath("/a"), false), "/a/b is a direct child of /a")
	assert(!NewPath("/a").IsInDirectory(NewPath("/a"), true), "a path is never inside itself")
	assert(!NewPath("/ab").IsInDirectory(NewPath("/a"), true), "/ab must not match the prefix /a")
}

func TestPathNameDirSegments(t *testing.T) {
	assert := newAsserter(t)

	assert(NewPath("/a/b/c").Name() == "c", "Name of /a/b/c must be c")
	assert(NewPath("/a/b/c").Dir().Equal(NewPath("/a/b")), "Dir of /a/b/c must be /a/b")
	assert(NewPath("/a").Dir().Equal(Root), "Dir of /a must be /")
	assert(NewPath("/a/b/c").FirstSegment() == "a", "FirstSegment of /a/b/c must be a")
	assert(NewPath("/a/b").ToRelative().String() == "a/b", "ToRelative of /a/b must be a/b")
	assert(NewPath("a/b").ToAbsolute().String() == "/a/b", "ToAbsolute of a/b must be /a/b")
}
