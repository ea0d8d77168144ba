package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"testing"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/vfstest"
)

// readAll opens p read-only on any vfs.FileSystem and reads it to
// completion - vfstest.ReadFile only accepts a concrete *MemFS, and
// these tests need to read back through the Aggregate itself.
func readAll(t *testing.T, fs vfs.FileSystem, p vfs.Path) []byte {
	t.Helper()
	f, err := fs.OpenFile(context.Background(), p, vfs.OpenExisting, vfs.AccessRead, vfs.ShareRead)
	if err != nil {
		t.Fatalf("open %s: %s", p, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read %s: %s", p, err)
	}
	return data
}

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

func mustWrite(t *testing.T, fs *vfstest.MemFS, p string, data string) {
	t.Helper()
	if err := vfstest.WriteFile(fs, vfs.NewPath(p), []byte(data)); err != nil {
		t.Fatalf("write %s: %s", p, err)
	}
}

func TestShadowing(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	lo := vfstest.New()
	hi := vfstest.New()
	mustWrite(t, lo, "/a.txt", "lo")
	mustWrite(t, hi, "/a.txt", "hi")
	mustWrite(t, lo, "/only-lo.txt", "lo-only")

	a, err := New(nil, lo, hi)
	assert(err == nil, "New: %s", err)

	data := readAll(t, a, vfs.NewPath("/a.txt"))
	assert(string(data) == "hi", "expected top of stack to win, got %q", data)

	ok, err := a.FileExists(ctx, vfs.NewPath("/only-lo.txt"))
	assert(err == nil && ok, "only-lo.txt should resolve through to the lower layer")
}

func TestFallbackBelowStack(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	fallback := vfstest.New()
	stack0 := vfstest.New()
	mustWrite(t, fallback, "/x.txt", "fallback")

	a, err := New(fallback, stack0)
	assert(err == nil, "New: %s", err)

	ok, err := a.FileExists(ctx, vfs.NewPath("/x.txt"))
	assert(err == nil && ok, "fallback file should be visible: %s", err)

	ok, err = a.FileExists(ctx, vfs.NewPath("/nope.txt"))
	assert(err == nil && !ok, "nonexistent file must resolve to false, not an error")
}

func TestReadOnlyGuards(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	leaf := vfstest.New()
	a, err := New(nil, leaf)
	assert(err == nil, "New: %s", err)

	err = a.CreateDirectory(ctx, vfs.NewPath("/d"))
	assert(errors.Is(err, vfs.ErrReadOnly), "create-directory should be rejected, got %v", err)

	err = a.DeleteFile(ctx, vfs.NewPath("/a.txt"))
	assert(errors.Is(err, vfs.ErrReadOnly), "delete-file should be rejected, got %v", err)

	_, err = a.OpenFile(ctx, vfs.NewPath("/a.txt"), vfs.Create, vfs.AccessWrite, vfs.ShareNone)
	assert(errors.Is(err, vfs.ErrReadOnly), "write-mode open should be rejected, got %v", err)
}

func TestGetAttributesForcesReadOnly(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	leaf := vfstest.New()
	mustWrite(t, leaf, "/a.txt", "x")

	a, err := New(nil, leaf)
	assert(err == nil, "New: %s", err)

	attr, err := a.GetAttributes(ctx, vfs.NewPath("/a.txt"))
	assert(err == nil, "get-attributes: %s", err)
	assert(attr&vfs.AttrReadOnly != 0, "Aggregate must force the read-only bit on")
}

func TestEnumerateDedupAndOrder(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	lo := vfstest.New()
	hi := vfstest.New()
	mustWrite(t, lo, "/dir/b.txt", "lo-b")
	mustWrite(t, lo, "/dir/a.txt", "lo-a")
	mustWrite(t, hi, "/dir/a.txt", "hi-a")
	mustWrite(t, hi, "/dir/c.txt", "hi-c")

	a, err := New(nil, lo, hi)
	assert(err == nil, "New: %s", err)

	seq, err := a.EnumeratePaths(ctx, vfs.NewPath("/dir"), "*", false, vfs.TargetFile)
	assert(err == nil, "enumerate-paths: %s", err)

	var got []string
	for p := range seq {
		got = append(got, p.String())
	}
	want := []string{"/dir/a.txt", "/dir/b.txt", "/dir/c.txt"}
	assert(len(got) == len(want), "expected %d entries, got %d: %v", len(want), len(got), got)
	for i := range want {
		assert(got[i] == want[i], "entry %d: expected %q, got %q", i, want[i], got[i])
	}

	data := readAll(t, a, vfs.NewPath("/dir/a.txt"))
	assert(string(data) == "hi-a", "shadowed entry's content should come from the winning layer, got %q", data)
}

func TestEnumeratePatternFilters(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	leaf := vfstest.New()
	mustWrite(t, leaf, "/dir/a.txt", "1")
	mustWrite(t, leaf, "/dir/b.log", "2")

	a, err := New(nil, leaf)
	assert(err == nil, "New: %s", err)

	seq, err := a.EnumeratePaths(ctx, vfs.NewPath("/dir"), "*.txt", false, vfs.TargetFile)
	assert(err == nil, "enumerate-paths: %s", err)

	var got []string
	for p := range seq {
		got = append(got, p.String())
	}
	assert(len(got) == 1 && got[0] == "/dir/a.txt", "pattern should filter to just a.txt, got %v", got)
}

func TestNestedAggregateShortCircuit(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	innerLeaf := vfstest.New()
	mustWrite(t, innerLeaf, "/shared.txt", "inner")
	inner, err := New(nil, innerLeaf)
	assert(err == nil, "New inner: %s", err)

	outerLeaf := vfstest.New()
	mustWrite(t, outerLeaf, "/shared.txt", "outer-lower")
	mustWrite(t, outerLeaf, "/only-outer.txt", "outer-only")

	outer, err := New(nil, outerLeaf, inner)
	assert(err == nil, "New outer: %s", err)

	ok, err := outer.FileExists(ctx, vfs.NewPath("/shared.txt"))
	assert(err == nil && ok, "shared.txt should resolve via the nested aggregate: %s", err)

	data := readAll(t, outer, vfs.NewPath("/shared.txt"))
	assert(string(data) == "inner", "nested Aggregate should win even though it shadows outer's lower layer, got %q", data)

	// only-outer.txt lives in outerLeaf, which sits BELOW the nested
	// Aggregate in priority - with short-circuit enabled, the nested
	// Aggregate's "not found" answer must win outright.
	ok, err = outer.FileExists(ctx, vfs.NewPath("/only-outer.txt"))
	assert(err == nil && !ok, "short-circuit must not fall through to outer's lower layers, got ok=%v err=%v", ok, err)

	outer.ShortCircuitNestedAggregate = false
	ok, err = outer.FileExists(ctx, vfs.NewPath("/only-outer.txt"))
	assert(err == nil && ok, "with short-circuit disabled, only-outer.txt should resolve via fallthrough")
}

func TestCyclicCompositionRejected(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	a, err := New(nil, vfstest.New())
	assert(err == nil, "New: %s", err)

	_, err = a.resolve(ctx, vfs.NewPath("/x"), vfs.TargetBoth, map[vfs.FileSystem]struct{}{a: {}})
	assert(errors.Is(err, vfs.ErrCyclicComposition), "expected cyclic-composition error, got %v", err)
}

func TestAddRemoveFilesystem(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	base := vfstest.New()
	mustWrite(t, base, "/a.txt", "base")

	a, err := New(nil, base)
	assert(err == nil, "New: %s", err)

	overlay := vfstest.New()
	mustWrite(t, overlay, "/a.txt", "overlay")

	err = a.AddFilesystem(ctx, overlay)
	assert(err == nil, "AddFilesystem: %s", err)

	data := readAll(t, a, vfs.NewPath("/a.txt"))
	assert(string(data) == "overlay", "newly added overlay should shadow, got %q", data)

	a.RemoveFilesystem(overlay)
	data = readAll(t, a, vfs.NewPath("/a.txt"))
	assert(string(data) == "base", "after removal, base layer should be visible again, got %q", data)
}

func TestDuplicateAndSelfRejected(t *testing.T) {
	assert := newAsserter(t)

	leaf := vfstest.New()
	a, err := New(nil, leaf, leaf)
	assert(a == nil && errors.Is(err, vfs.ErrInvalidArgument), "duplicate layer should be rejected, got a=%v err=%v", a, err)

	a, err = New(nil, leaf)
	assert(err == nil, "New: %s", err)
	err = a.AddFilesystem(context.Background(), nil)
	assert(errors.Is(err, vfs.ErrInvalidArgument), "nil layer should be rejected, got %v", err)

	err = a.AddFilesystem(context.Background(), a)
	assert(errors.Is(err, vfs.ErrInvalidArgument), "adding an Aggregate to itself should be rejected, got %v", err)
}
