package sub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"testing"
	"time"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/vfstest"
	"github.com/opencoff/go-vfs/watch"
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

func mustWrite(t *testing.T, fs *vfstest.MemFS, p string, data string) {
	t.Helper()
	if err := vfstest.WriteFile(fs, vfs.NewPath(p), []byte(data)); err != nil {
		t.Fatalf("write %s: %s", p, err)
	}
}

func TestNewFailsOnMissingSubpath(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	delegate := vfstest.New()
	_, err := New(ctx, delegate, vfs.NewPath("/nowhere"))
	assert(errors.Is(err, vfs.ErrDirectoryNotFound), "expected DirectoryNotFound, got %v", err)
}

func TestToFromInnerRoundTrip(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	delegate := vfstest.New()
	assert(vfstest.MkdirAll(delegate, vfs.NewPath("/home/alice")) == nil, "mkdir")
	mustWrite(t, delegate, "/home/alice/note.txt", "hi")

	s, err := New(ctx, delegate, vfs.NewPath("/home/alice"))
	assert(err == nil, "New: %s", err)

	inner, err := s.ToInner(vfs.NewPath("/note.txt"))
	assert(err == nil && inner.String() == "/home/alice/note.txt", "ToInner mismatch: %v %v", inner, err)

	outer, err := s.FromInner(vfs.NewPath("/home/alice/note.txt"))
	assert(err == nil && outer.String() == "/note.txt", "FromInner mismatch: %v %v", outer, err)

	root, err := s.FromInner(vfs.NewPath("/home/alice"))
	assert(err == nil && root.Equal(vfs.Root), "FromInner of the subpath itself must yield Root, got %v %v", root, err)

	data := readAll(t, s, vfs.NewPath("/note.txt"))
	assert(string(data) == "hi", "expected content read through the view, got %q", data)
}

func TestFromInnerRejectsOutsideContainment(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	delegate := vfstest.New()
	assert(vfstest.MkdirAll(delegate, vfs.NewPath("/home/alice")) == nil, "mkdir")

	s, err := New(ctx, delegate, vfs.NewPath("/home/alice"))
	assert(err == nil, "New: %s", err)

	_, err = s.FromInner(vfs.NewPath("/home/bob/secret.txt"))
	assert(errors.Is(err, vfs.ErrInvalidState), "path outside subpath must be rejected as a contract violation, got %v", err)

	_, err = s.FromInner(vfs.NewPath("/home/alicecustom/x.txt"))
	assert(errors.Is(err, vfs.ErrInvalidState), "sibling path sharing a prefix (not a real descendant) must still be rejected, got %v", err)
}

func TestEnumerateTranslatesPaths(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	delegate := vfstest.New()
	mustWrite(t, delegate, "/home/alice/a.txt", "a")
	mustWrite(t, delegate, "/home/alice/b.txt", "b")
	mustWrite(t, delegate, "/home/elsewhere.txt", "nope")

	s, err := New(ctx, delegate, vfs.NewPath("/home/alice"))
	assert(err == nil, "New: %s", err)

	seq, err := s.EnumeratePaths(ctx, vfs.Root, "*", false, vfs.TargetFile)
	assert(err == nil, "enumerate-paths: %s", err)

	var got []string
	for p := range seq {
		got = append(got, p.String())
	}
	want := []string{"/a.txt", "/b.txt"}
	assert(len(got) == len(want), "expected %v, got %v", want, got)
	for i := range want {
		assert(got[i] == want[i], "entry %d: expected %q, got %q", i, want[i], got[i])
	}
}

func TestWatchRewritesEventPaths(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	delegate := vfstest.New()
	assert(vfstest.MkdirAll(delegate, vfs.NewPath("/home/alice")) == nil, "mkdir")

	s, err := New(ctx, delegate, vfs.NewPath("/home/alice"))
	assert(err == nil, "New: %s", err)

	w, err := s.Watch(ctx, vfs.Root)
	assert(err == nil, "watch: %s", err)
	defer w.Close()

	cw, ok := w.(watch.Watcher)
	assert(ok, "Sub.Watch must return a watch.Watcher")

	assert(vfstest.WriteFile(delegate, vfs.NewPath("/home/alice/new.txt"), []byte("x")) == nil, "write through delegate")

	select {
	case ev := <-cw.Created():
		assert(ev.FullPath.String() == "/new.txt", "event path must be rewritten into the view's namespace, got %q", ev.FullPath)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a created event")
	}
}
