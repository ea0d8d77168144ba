package mount

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

func TestLongestPrefixRouting(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	a := vfstest.New()
	b := vfstest.New()
	mustWrite(t, a, "/x.txt", "a")
	mustWrite(t, b, "/x.txt", "b")

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/mnt"), a) == nil, "mount /mnt")
	assert(m.Mount(ctx, vfs.NewPath("/mnt/deep"), b) == nil, "mount /mnt/deep")

	data := readAll(t, m, vfs.NewPath("/mnt/deep/x.txt"))
	assert(string(data) == "b", "longest prefix should win, got %q", data)

	data = readAll(t, m, vfs.NewPath("/mnt/x.txt"))
	assert(string(data) == "a", "shorter prefix should serve its own subtree, got %q", data)
}

func TestFallbackRouting(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	fallback := vfstest.New()
	mustWrite(t, fallback, "/free.txt", "fallback")
	mnt := vfstest.New()

	m := New(fallback)
	assert(m.Mount(ctx, vfs.NewPath("/mnt"), mnt) == nil, "mount /mnt")

	ok, err := m.FileExists(ctx, vfs.NewPath("/free.txt"))
	assert(err == nil && ok, "unmounted path should route to fallback: %v %v", ok, err)
}

func TestVirtualDirectories(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/a/b/c"), vfstest.New()) == nil, "mount")

	ok, err := m.DirectoryExists(ctx, vfs.NewPath("/a"))
	assert(err == nil && ok, "ancestor of a mount must be a virtual directory: %v %v", ok, err)

	ok, err = m.DirectoryExists(ctx, vfs.NewPath("/a/b"))
	assert(err == nil && ok, "deeper ancestor must also be virtual: %v %v", ok, err)

	ok, err = m.DirectoryExists(ctx, vfs.NewPath("/nowhere"))
	assert(err == nil && !ok, "unrelated path must not exist: %v %v", ok, err)
}

func TestCreateDirectoryOnMountRootUnauthorized(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/mnt"), vfstest.New()) == nil, "mount")

	err := m.CreateDirectory(ctx, vfs.NewPath("/mnt"))
	assert(errors.Is(err, vfs.ErrUnauthorized), "create-directory on mount root must be Unauthorized, got %v", err)

	err = m.CreateDirectory(ctx, vfs.NewPath("/mnt/sub"))
	assert(err == nil, "create-directory below a mount should be delegated: %v", err)
}

func TestDeleteDirectoryOnMountRootUnauthorized(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/mnt"), vfstest.New()) == nil, "mount")

	err := m.DeleteDirectory(ctx, vfs.NewPath("/mnt"), true)
	assert(errors.Is(err, vfs.ErrUnauthorized), "delete-directory on mount root must be Unauthorized, got %v", err)

	err = m.DeleteDirectory(ctx, vfs.NewPath("/nowhere"), true)
	assert(errors.Is(err, vfs.ErrDirectoryNotFound), "delete-directory on an unowned path must be DirectoryNotFound, got %v", err)
}

func TestMoveDirectoryCrossMountRejected(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	a := vfstest.New()
	assert(a.CreateDirectory(ctx, vfs.NewPath("/src")) == nil, "mkdir")
	b := vfstest.New()

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/a"), a) == nil, "mount a")
	assert(m.Mount(ctx, vfs.NewPath("/b"), b) == nil, "mount b")

	err := m.MoveDirectory(ctx, vfs.NewPath("/a/src"), vfs.NewPath("/b/dst"))
	assert(errors.Is(err, vfs.ErrNotSupported), "cross-mount move-directory must be NotSupported, got %v", err)
}

func TestCopyFileCrossMount(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	a := vfstest.New()
	mustWrite(t, a, "/src.txt", "payload")
	b := vfstest.New()

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/a"), a) == nil, "mount a")
	assert(m.Mount(ctx, vfs.NewPath("/b"), b) == nil, "mount b")

	err := m.CopyFile(ctx, vfs.NewPath("/a/src.txt"), vfs.NewPath("/b/dst.txt"), false)
	assert(err == nil, "cross-mount copy-file: %v", err)

	data := readAll(t, m, vfs.NewPath("/b/dst.txt"))
	assert(string(data) == "payload", "copied content mismatch, got %q", data)
}

func TestMoveFileCrossMountAndPrechecks(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	a := vfstest.New()
	mustWrite(t, a, "/src.txt", "payload")
	b := vfstest.New()
	mustWrite(t, b, "/dst.txt", "already-there")

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/a"), a) == nil, "mount a")
	assert(m.Mount(ctx, vfs.NewPath("/b"), b) == nil, "mount b")

	err := m.MoveFile(ctx, vfs.NewPath("/a/src.txt"), vfs.NewPath("/b/dst.txt"))
	assert(errors.Is(err, vfs.ErrExists), "move-file onto an existing destination must fail with ErrExists, got %v", err)

	err = m.MoveFile(ctx, vfs.NewPath("/a/src.txt"), vfs.NewPath("/b/fresh.txt"))
	assert(err == nil, "cross-mount move-file: %v", err)

	ok, _ := a.FileExists(ctx, vfs.NewPath("/src.txt"))
	assert(!ok, "source should be gone after move")
	data := readAll(t, m, vfs.NewPath("/b/fresh.txt"))
	assert(string(data) == "payload", "moved content mismatch, got %q", data)
}

func TestEnumerateMergesMountsAndVirtualDirs(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	fallback := vfstest.New()
	mustWrite(t, fallback, "/readme.txt", "root-level")

	docs := vfstest.New()
	mustWrite(t, docs, "/a.txt", "docs-a")
	deep := vfstest.New()
	mustWrite(t, deep, "/x.txt", "deep-x")

	m := New(fallback)
	assert(m.Mount(ctx, vfs.NewPath("/docs"), docs) == nil, "mount docs")
	assert(m.Mount(ctx, vfs.NewPath("/docs/archive/deep"), deep) == nil, "mount deep")

	seq, err := m.EnumeratePaths(ctx, vfs.Root, "*", false, vfs.TargetBoth)
	assert(err == nil, "enumerate-paths root: %v", err)

	var got []string
	for p := range seq {
		got = append(got, p.String())
	}
	want := []string{"/docs", "/readme.txt"}
	assert(len(got) == len(want), "expected %v, got %v", want, got)
	for i := range want {
		assert(got[i] == want[i], "entry %d: expected %q, got %q", i, want[i], got[i])
	}

	seq, err = m.EnumeratePaths(ctx, vfs.NewPath("/docs/archive"), "*", false, vfs.TargetDirectory)
	assert(err == nil, "enumerate-paths virtual level: %v", err)
	got = nil
	for p := range seq {
		got = append(got, p.String())
	}
	assert(len(got) == 1 && got[0] == "/docs/archive/deep", "expected the synthesized ancestor segment, got %v", got)
}

func TestEnumerateRecursiveAcrossMounts(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	docs := vfstest.New()
	mustWrite(t, docs, "/a.txt", "docs-a")
	deep := vfstest.New()
	mustWrite(t, deep, "/x.txt", "deep-x")

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/docs"), docs) == nil, "mount docs")
	assert(m.Mount(ctx, vfs.NewPath("/docs/archive/deep"), deep) == nil, "mount deep")

	seq, err := m.EnumeratePaths(ctx, vfs.Root, "*", true, vfs.TargetFile)
	assert(err == nil, "recursive enumerate: %v", err)

	var got []string
	for p := range seq {
		got = append(got, p.String())
	}
	want := []string{"/docs/a.txt", "/docs/archive/deep/x.txt"}
	assert(len(got) == len(want), "expected %v, got %v", want, got)
	for i := range want {
		assert(got[i] == want[i], "entry %d: expected %q, got %q", i, want[i], got[i])
	}
}

func TestEnumerateMissingRootFails(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/docs"), vfstest.New()) == nil, "mount docs")

	_, err := m.EnumeratePaths(ctx, vfs.NewPath("/nowhere"), "*", false, vfs.TargetBoth)
	assert(errors.Is(err, vfs.ErrDirectoryNotFound), "enumerate on an unowned root must fail, got %v", err)
}

func TestUnmountDetachesWatcher(t *testing.T) {
	assert := newAsserter(t)
	ctx := context.Background()

	docs := vfstest.New()
	mustWrite(t, docs, "/a.txt", "x")

	m := New(nil)
	assert(m.Mount(ctx, vfs.NewPath("/docs"), docs) == nil, "mount docs")

	w, err := m.Watch(ctx, vfs.Root)
	assert(err == nil, "watch: %v", err)
	defer w.Close()

	_, err = m.Unmount(vfs.NewPath("/docs"))
	assert(err == nil, "unmount: %v", err)

	_, err = m.Unmount(vfs.NewPath("/docs"))
	assert(errors.Is(err, vfs.ErrNotFound), "unmounting twice should fail, got %v", err)
}
