// memfs.go - in-memory leaf filesystem used to drive composer tests
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

// Package vfstest provides an in-memory vfs.FileSystem leaf and a
// handful of tree-seeding helpers, so aggregate/mount/sub and
// cmd/vfsharness can exercise composition without touching a real
// directory tree. It plays the role the teacher's cmp/testsuite
// fileutils.go played for go-fio - building small trees to drive tests
// against - retargeted from real files to an in-memory map.
package vfstest

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/watch"
)

type node struct {
	name     string
	isDir    bool
	data     []byte
	mode     vfs.Attributes
	ctime    time.Time
	atime    time.Time
	mtime    time.Time
	children map[string]*node
}

func newDirNode(name string, now time.Time) *node {
	return &node{name: name, isDir: true, children: make(map[string]*node), ctime: now, atime: now, mtime: now}
}

func newFileNode(name string, now time.Time) *node {
	return &node{name: name, isDir: false, ctime: now, atime: now, mtime: now}
}

// MemFS is a minimal, fully in-memory vfs.FileSystem leaf. It is not
// optimized for anything - the point is deterministic, dependency-free
// test fixtures.
type MemFS struct {
	mu   sync.RWMutex
	root *node

	watchMu  sync.Mutex
	watchers []*watch.Basic
}

var _ vfs.FileSystem = (*MemFS)(nil)

// New creates an empty MemFS with just the root directory.
func New() *MemFS {
	now := time.Now()
	return &MemFS{root: newDirNode("/", now)}
}

func splitSegs(p vfs.Path) []string {
	s := strings.Trim(p.String(), "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

func (m *MemFS) lookupLocked(p vfs.Path) (*node, bool) {
	if p.IsNull() {
		return nil, false
	}
	if p.IsRoot() {
		return m.root, true
	}
	cur := m.root
	for _, s := range splitSegs(p) {
		if !cur.isDir {
			return nil, false
		}
		next, ok := cur.children[s]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func notFound(op string, p vfs.Path) error {
	return &vfs.OpError{Op: op, Path: p.String(), Err: vfs.ErrNotFound}
}

func dirNotFound(op string, p vfs.Path) error {
	return &vfs.OpError{Op: op, Path: p.String(), Err: vfs.ErrDirectoryNotFound}
}

func alreadyExists(op string, p vfs.Path) error {
	return &vfs.OpError{Op: op, Path: p.String(), Err: vfs.ErrExists}
}

// CreateDirectory creates p and any missing intermediate directories
// (mkdir -p semantics). Returns ErrExists if p names an existing file.
func (m *MemFS) CreateDirectory(ctx context.Context, p vfs.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IsNull() {
		return vfs.ErrInvalidArgument
	}
	if p.IsRoot() {
		return nil
	}

	now := time.Now()
	cur := m.root
	segs := splitSegs(p)
	for i, s := range segs {
		next, ok := cur.children[s]
		if !ok {
			nd := newDirNode(s, now)
			cur.children[s] = nd
			cur = nd
			continue
		}
		if !next.isDir {
			if i == len(segs)-1 {
				return alreadyExists("create-directory", p)
			}
			return dirNotFound("create-directory", p)
		}
		cur = next
	}
	m.raiseLocked(watch.Created, p, vfs.Null)
	return nil
}

func (m *MemFS) DirectoryExists(ctx context.Context, p vfs.Path) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.lookupLocked(p)
	return ok && n.isDir, nil
}

func (m *MemFS) MoveDirectory(ctx context.Context, src, dst vfs.Path) error {
	return m.moveNode("move-directory", src, dst, true)
}

func (m *MemFS) DeleteDirectory(ctx context.Context, p vfs.Path, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.lookupLocked(p.Dir())
	if !ok || !parent.isDir {
		return dirNotFound("delete-directory", p)
	}
	n, ok := parent.children[p.Name()]
	if !ok || !n.isDir {
		return dirNotFound("delete-directory", p)
	}
	if len(n.children) > 0 && !recursive {
		return &vfs.OpError{Op: "delete-directory", Path: p.String(), Err: vfs.ErrInvalidState}
	}
	delete(parent.children, p.Name())
	m.raiseLocked(watch.Deleted, p, vfs.Null)
	return nil
}

func (m *MemFS) FileExists(ctx context.Context, p vfs.Path) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.lookupLocked(p)
	return ok && !n.isDir, nil
}

func (m *MemFS) GetFileLength(ctx context.Context, p vfs.Path) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.lookupLocked(p)
	if !ok || n.isDir {
		return 0, notFound("get-file-length", p)
	}
	return int64(len(n.data)), nil
}

// OpenFile implements spec.md's Win32-flavored open dispositions against
// the in-memory tree. Share bits are accepted but not enforced - MemFS
// has no concurrent-open contention to arbitrate.
func (m *MemFS) OpenFile(ctx context.Context, p vfs.Path, mode vfs.OpenMode, access vfs.FileAccess, share vfs.FileShare) (io.ReadWriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.lookupLocked(p.Dir())
	if !ok || !parent.isDir {
		return nil, dirNotFound("open-file", p)
	}
	name := p.Name()
	n, exists := parent.children[name]

	switch mode {
	case vfs.OpenExisting:
		if !exists || n.isDir {
			return nil, notFound("open-file", p)
		}
	case vfs.CreateNew:
		if exists {
			return nil, alreadyExists("open-file", p)
		}
		n = newFileNode(name, time.Now())
		parent.children[name] = n
		m.raiseLocked(watch.Created, p, vfs.Null)
	case vfs.Create:
		if !exists {
			n = newFileNode(name, time.Now())
			parent.children[name] = n
			m.raiseLocked(watch.Created, p, vfs.Null)
		} else if n.isDir {
			return nil, &vfs.OpError{Op: "open-file", Path: p.String(), Err: vfs.ErrInvalidState}
		} else {
			n.data = nil
		}
	case vfs.Truncate:
		if !exists || n.isDir {
			return nil, notFound("open-file", p)
		}
		n.data = nil
	case vfs.OpenOrCreate:
		if !exists {
			n = newFileNode(name, time.Now())
			parent.children[name] = n
			m.raiseLocked(watch.Created, p, vfs.Null)
		} else if n.isDir {
			return nil, &vfs.OpError{Op: "open-file", Path: p.String(), Err: vfs.ErrInvalidState}
		}
	case vfs.Append:
		if !exists {
			n = newFileNode(name, time.Now())
			parent.children[name] = n
			m.raiseLocked(watch.Created, p, vfs.Null)
		} else if n.isDir {
			return nil, &vfs.OpError{Op: "open-file", Path: p.String(), Err: vfs.ErrInvalidState}
		}
	default:
		return nil, vfs.ErrInvalidArgument
	}

	f := &memFile{fs: m, n: n, access: access, path: p}
	if mode == vfs.Append {
		f.pos = int64(len(n.data))
	}
	return f, nil
}

func (m *MemFS) CopyFile(ctx context.Context, src, dst vfs.Path, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sn, ok := m.lookupLocked(src)
	if !ok || sn.isDir {
		return notFound("copy-file", src)
	}
	parent, ok := m.lookupLocked(dst.Dir())
	if !ok || !parent.isDir {
		return dirNotFound("copy-file", dst)
	}
	if existing, exists := parent.children[dst.Name()]; exists {
		if existing.isDir {
			return &vfs.OpError{Op: "copy-file", Path: dst.String(), Err: vfs.ErrInvalidState}
		}
		if !overwrite {
			return alreadyExists("copy-file", dst)
		}
	}
	now := time.Now()
	dn := &node{name: dst.Name(), isDir: false, data: append([]byte(nil), sn.data...), mode: sn.mode, ctime: now, atime: now, mtime: now}
	parent.children[dst.Name()] = dn
	m.raiseLocked(watch.Created, dst, vfs.Null)
	return nil
}

func (m *MemFS) MoveFile(ctx context.Context, src, dst vfs.Path) error {
	return m.moveNode("move-file", src, dst, false)
}

func (m *MemFS) moveNode(op string, src, dst vfs.Path, wantDir bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	srcParent, ok := m.lookupLocked(src.Dir())
	if !ok || !srcParent.isDir {
		return dirNotFound(op, src)
	}
	n, ok := srcParent.children[src.Name()]
	if !ok || n.isDir != wantDir {
		return notFound(op, src)
	}
	dstParent, ok := m.lookupLocked(dst.Dir())
	if !ok || !dstParent.isDir {
		return dirNotFound(op, dst)
	}
	if _, exists := dstParent.children[dst.Name()]; exists {
		return alreadyExists(op, dst)
	}
	delete(srcParent.children, src.Name())
	n.name = dst.Name()
	dstParent.children[dst.Name()] = n
	m.raiseLocked(watch.Renamed, dst, src)
	return nil
}

// ReplaceFile implements spec.md's replace-file(src,dst,backup?): dst is
// moved aside to backup (if non-null) before src takes its place.
func (m *MemFS) ReplaceFile(ctx context.Context, src, dst, backup vfs.Path, ignoreMetadataErrors bool) error {
	if !backup.IsNull() {
		if err := m.MoveFile(ctx, dst, backup); err != nil && !vfs.IsNotFound(err) {
			return err
		}
	} else {
		_ = m.DeleteFile(ctx, dst)
	}
	return m.MoveFile(ctx, src, dst)
}

func (m *MemFS) DeleteFile(ctx context.Context, p vfs.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.lookupLocked(p.Dir())
	if !ok || !parent.isDir {
		return dirNotFound("delete-file", p)
	}
	n, ok := parent.children[p.Name()]
	if !ok || n.isDir {
		return notFound("delete-file", p)
	}
	delete(parent.children, p.Name())
	m.raiseLocked(watch.Deleted, p, vfs.Null)
	return nil
}

func (m *MemFS) GetAttributes(ctx context.Context, p vfs.Path) (vfs.Attributes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.lookupLocked(p)
	if !ok {
		return 0, notFound("get-attributes", p)
	}
	attr := n.mode
	if n.isDir {
		attr |= vfs.AttrDirectory
	}
	return attr, nil
}

func (m *MemFS) SetAttributes(ctx context.Context, p vfs.Path, attr vfs.Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.lookupLocked(p)
	if !ok {
		return notFound("set-attributes", p)
	}
	n.mode = attr
	m.raiseLocked(watch.Changed, p, vfs.Null)
	return nil
}

func (m *MemFS) GetCreationTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return m.timeField(p, func(n *node) time.Time { return n.ctime })
}

func (m *MemFS) SetCreationTime(ctx context.Context, p vfs.Path, t time.Time) error {
	return m.setTimeField(p, func(n *node) { n.ctime = t })
}

func (m *MemFS) GetLastAccessTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return m.timeField(p, func(n *node) time.Time { return n.atime })
}

func (m *MemFS) SetLastAccessTime(ctx context.Context, p vfs.Path, t time.Time) error {
	return m.setTimeField(p, func(n *node) { n.atime = t })
}

func (m *MemFS) GetLastWriteTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return m.timeField(p, func(n *node) time.Time { return n.mtime })
}

func (m *MemFS) SetLastWriteTime(ctx context.Context, p vfs.Path, t time.Time) error {
	return m.setTimeField(p, func(n *node) { n.mtime = t })
}

func (m *MemFS) timeField(p vfs.Path, get func(*node) time.Time) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.lookupLocked(p)
	if !ok {
		return time.Time{}, notFound("get-time", p)
	}
	return get(n), nil
}

func (m *MemFS) setTimeField(p vfs.Path, set func(*node)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.lookupLocked(p)
	if !ok {
		return notFound("set-time", p)
	}
	set(n)
	return nil
}

func (m *MemFS) EnumeratePaths(ctx context.Context, root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget) (vfs.PathSeq, error) {
	entries, err := m.collect(root, pattern, recursive, target, nil)
	if err != nil {
		return nil, err
	}
	return func(yield func(vfs.Path) bool) {
		for _, e := range entries {
			if !yield(e.Path) {
				return
			}
		}
	}, nil
}

func (m *MemFS) EnumerateItems(ctx context.Context, root vfs.Path, recursive bool, filter func(vfs.Entry) bool) (vfs.EntrySeq, error) {
	entries, err := m.collect(root, "*", recursive, vfs.TargetBoth, filter)
	if err != nil {
		return nil, err
	}
	return func(yield func(vfs.Entry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}, nil
}

func (m *MemFS) collect(root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget, filter func(vfs.Entry) bool) ([]vfs.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.lookupLocked(root)
	if !ok || !n.isDir {
		return nil, dirNotFound("enumerate", root)
	}

	matchAll := pattern == "" || pattern == "*"
	var out []vfs.Entry
	var walk func(dir vfs.Path, dn *node)
	walk = func(dir vfs.Path, dn *node) {
		names := make([]string, 0, len(dn.children))
		for name := range dn.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := dn.children[name]
			p := dir.Join(vfs.NewPath(name))
			if !matchAll {
				if ok, _ := doublestar.Match(pattern, name); !ok {
					if child.isDir && recursive {
						walk(p, child)
					}
					continue
				}
			}
			if target != vfs.TargetBoth {
				if target == vfs.TargetDirectory && !child.isDir {
					if recursive {
						continue
					}
					continue
				}
				if target == vfs.TargetFile && child.isDir {
					if recursive {
						walk(p, child)
					}
					continue
				}
			}
			e := vfs.Entry{
				Path:           p,
				Size:           int64(len(child.data)),
				Mode:           child.mode,
				IsDir:          child.isDir,
				CreationTime:   child.ctime,
				LastAccessTime: child.atime,
				LastWriteTime:  child.mtime,
			}
			if filter == nil || filter(e) {
				out = append(out, e)
			}
			if child.isDir && recursive {
				walk(p, child)
			}
		}
	}
	walk(root, n)

	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Path.String(), out[j].Path.String()
		li, lj := strings.ToLower(si), strings.ToLower(sj)
		if li != lj {
			return li < lj
		}
		return si < sj
	})
	return out, nil
}

func (m *MemFS) CanWatch(p vfs.Path) bool { return true }

func (m *MemFS) Watch(ctx context.Context, p vfs.Path) (vfs.Watcher, error) {
	b := watch.NewBasic(m, p, true, 16)
	m.watchMu.Lock()
	m.watchers = append(m.watchers, b)
	m.watchMu.Unlock()
	return b, nil
}

func (m *MemFS) raiseLocked(kind watch.Kind, full, old vfs.Path) {
	m.watchMu.Lock()
	ws := append([]*watch.Basic(nil), m.watchers...)
	m.watchMu.Unlock()
	ev := watch.Event{FS: m, Kind: kind, FullPath: full, OldFullPath: old}
	for _, w := range ws {
		w.Raise(ev)
	}
}

// ConvertToHostString/ConvertFromHostString are identity conversions:
// MemFS has no host filesystem underneath it, so its own path string
// doubles as its "host" representation.
func (m *MemFS) ConvertToHostString(p vfs.Path) (string, error) {
	return p.String(), nil
}

func (m *MemFS) ConvertFromHostString(s string) (vfs.Path, error) {
	return vfs.NewPath(s), nil
}
