// mount.go - longest-prefix router with virtual directory synthesis
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

// Package mount implements spec.md §4.2: route each path to the
// filesystem registered against its longest matching prefix, falling
// back to a default filesystem when nothing matches, and synthesizing
// the ancestor path segments of every mount prefix as virtual
// directories.
package mount

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/watch"
)

type mountEntry struct {
	prefix vfs.Path
	fs     vfs.FileSystem
}

// Mount is a prefix router over N mounted filesystems plus an optional
// fallback. Per spec.md §5, the mount table and the live-watcher list
// are each guarded by their own lock; whenever both are needed, the
// mount lock is always acquired first.
type Mount struct {
	mu       sync.RWMutex
	table    []mountEntry
	fallback vfs.FileSystem
	owned    bool

	watchMu   sync.Mutex
	watchers  map[*watch.Aggregating]vfs.Path
	disposing bool

	log vfs.Logger
}

var _ vfs.FileSystem = (*Mount)(nil)

// New creates an empty Mount with the given fallback (nil is allowed:
// paths with no owning mount then fail rather than delegate anywhere).
func New(fallback vfs.FileSystem) *Mount {
	return &Mount{fallback: fallback, watchers: make(map[*watch.Aggregating]vfs.Path)}
}

// WithOwnership marks m so Close also disposes every mounted filesystem
// and the fallback (spec.md §5 "Resource lifecycle").
func WithOwnership(m *Mount) *Mount {
	m.mu.Lock()
	m.owned = true
	m.mu.Unlock()
	return m
}

// WithLogger attaches log, so mount/unmount are reported through it;
// watcher attach/detach is not logged. A nil log (the default) keeps m
// silent.
func WithLogger(m *Mount, log vfs.Logger) *Mount {
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
	return m
}

func (m *Mount) snapshot() []mountEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]mountEntry, len(m.table))
	copy(out, m.table)
	return out
}

func sortTable(t []mountEntry) {
	sort.Slice(t, func(i, j int) bool {
		li, lj := len(t[i].prefix.String()), len(t[j].prefix.String())
		if li != lj {
			return li > lj
		}
		return t[i].prefix.String() < t[j].prefix.String()
	})
}

func (m *Mount) validatePrefix(prefix vfs.Path) error {
	if prefix.IsNull() || prefix.IsRoot() {
		return vfs.ErrInvalidArgument
	}
	for _, e := range m.table {
		if e.prefix.Equal(prefix) {
			return vfs.ErrExists
		}
	}
	return nil
}

// Mount registers fs at prefix (spec.md §3's mount table invariants:
// "/" and the null path may never be a key, and keys are unique).
func (m *Mount) Mount(ctx context.Context, prefix vfs.Path, fs vfs.FileSystem) error {
	if fs == nil {
		return vfs.ErrInvalidArgument
	}

	m.mu.Lock()
	if err := m.validatePrefix(prefix); err != nil {
		m.mu.Unlock()
		return err
	}
	m.table = append(m.table, mountEntry{prefix: prefix, fs: fs})
	sortTable(m.table)
	m.mu.Unlock()

	if m.log != nil {
		m.log.Debug("mount: mounted filesystem at %s", prefix)
	}

	m.rewireAdd(ctx, prefix, fs)
	return nil
}

// Unmount removes the mount registered at prefix and detaches its child
// watcher from every live aggregating watcher. Returns the filesystem
// that was mounted there.
func (m *Mount) Unmount(prefix vfs.Path) (vfs.FileSystem, error) {
	m.mu.Lock()
	idx := -1
	for i, e := range m.table {
		if e.prefix.Equal(prefix) {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, &vfs.OpError{Op: "unmount", Path: prefix.String(), Err: vfs.ErrNotFound}
	}
	fs := m.table[idx].fs
	m.table = append(m.table[:idx], m.table[idx+1:]...)
	m.mu.Unlock()

	m.watchMu.Lock()
	for w := range m.watchers {
		w.RemoveFrom(fs)
	}
	m.watchMu.Unlock()

	if m.log != nil {
		m.log.Debug("mount: unmounted filesystem at %s", prefix)
	}
	return fs, nil
}

// Close tears down m: every live watcher is disposed, and if m was
// constructed via WithOwnership, every mounted filesystem and the
// fallback are closed too (spec.md §5).
func (m *Mount) Close() error {
	m.watchMu.Lock()
	m.disposing = true
	ws := make([]*watch.Aggregating, 0, len(m.watchers))
	for w := range m.watchers {
		ws = append(ws, w)
	}
	m.watchMu.Unlock()

	for _, w := range ws {
		w.Close()
	}

	m.watchMu.Lock()
	m.watchers = make(map[*watch.Aggregating]vfs.Path)
	m.watchMu.Unlock()

	m.mu.Lock()
	owned := m.owned
	table := m.table
	fallback := m.fallback
	m.mu.Unlock()

	if !owned {
		return nil
	}
	var first error
	for _, e := range table {
		if c, ok := e.fs.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	if c, ok := fallback.(io.Closer); ok {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// splitMount returns the routed remainder of p once the mount prefix k
// is stripped, and whether p is inside (or exactly at) k. Unlike
// vfs.Path's private removePrefix, p == k yields Root (the mounted
// filesystem's own root), not Null - spec.md §4.2 routes operations on
// the mount point itself to R = "/".
func splitMount(k, p vfs.Path) (vfs.Path, bool) {
	ks := strings.TrimSuffix(k.String(), "/")
	ps := p.String()
	if ps == ks {
		return vfs.Root, true
	}
	if strings.HasPrefix(ps, ks+"/") {
		return vfs.NewPath(ps[len(ks):]), true
	}
	return vfs.Null, false
}

// route implements spec.md §4.2's longest-prefix lookup: the table is
// kept sorted descending-length-then-ordinal, so the first match is the
// longest prefix. matched is false when no mount owns p - fs is then
// the fallback (possibly nil) and routed is p, unchanged.
func (m *Mount) route(p vfs.Path) (fs vfs.FileSystem, routed vfs.Path, prefix vfs.Path, matched bool) {
	for _, e := range m.snapshot() {
		if r, ok := splitMount(e.prefix, p); ok {
			return e.fs, r, e.prefix, true
		}
	}
	return m.fallback, p, vfs.Null, false
}

// isStrictPrefixOfMount reports whether p is a (possibly indirect)
// ancestor of some registered mount prefix - the synthetic "virtual
// directory" condition of spec.md §4.2.
func (m *Mount) isStrictPrefixOfMount(p vfs.Path) bool {
	for _, e := range m.snapshot() {
		if e.prefix.IsInDirectory(p, true) {
			return true
		}
	}
	return false
}

func notFoundOp(op string, p vfs.Path) error {
	return &vfs.OpError{Op: op, Path: p.String(), Err: vfs.ErrNotFound}
}

func dirNotFoundOp(op string, p vfs.Path) error {
	return &vfs.OpError{Op: op, Path: p.String(), Err: vfs.ErrDirectoryNotFound}
}

func unauthorized(op string, p vfs.Path) error {
	return &vfs.OpError{Op: op, Path: p.String(), Err: vfs.ErrUnauthorized}
}

// --- FileSystem: directories ---

func (m *Mount) CreateDirectory(ctx context.Context, p vfs.Path) error {
	fs, routed, _, matched := m.route(p)
	if matched && routed.IsRoot() {
		return unauthorized("create-directory", p)
	}
	if fs == nil {
		return dirNotFoundOp("create-directory", p)
	}
	return fs.CreateDirectory(ctx, routed)
}

// DirectoryExists additionally honors spec.md §4.2's fallback case: the
// literal text of "Virtual directories" only names mount-routed and
// virtual directories, but enumeration (§4.2 step 2) already consults
// fallback.directory-exists(D) - treating the two inconsistently would
// make DirectoryExists and EnumeratePaths disagree about the same path,
// so the fallback is checked here too.
func (m *Mount) DirectoryExists(ctx context.Context, p vfs.Path) (bool, error) {
	if p.IsRoot() {
		return true, nil
	}
	fs, routed, _, matched := m.route(p)
	if matched {
		ok, err := fs.DirectoryExists(ctx, routed)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	} else if fs != nil {
		ok, err := fs.DirectoryExists(ctx, routed)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	if m.isStrictPrefixOfMount(p) {
		return true, nil
	}
	return false, nil
}

func (m *Mount) MoveDirectory(ctx context.Context, src, dst vfs.Path) error {
	sfs, sroute, _, smatched := m.route(src)
	dfs, droute, _, dmatched := m.route(dst)
	if sfs == nil || dfs == nil {
		return dirNotFoundOp("move-directory", src)
	}
	if sfs != dfs {
		return &vfs.OpError{Op: "move-directory", Path: src.String(), Err: vfs.ErrNotSupported}
	}
	if (smatched && sroute.IsRoot()) || (dmatched && droute.IsRoot()) {
		return unauthorized("move-directory", src)
	}
	return sfs.MoveDirectory(ctx, sroute, droute)
}

func (m *Mount) DeleteDirectory(ctx context.Context, p vfs.Path, recursive bool) error {
	fs, routed, _, matched := m.route(p)
	if matched && routed.IsRoot() {
		return unauthorized("delete-directory", p)
	}
	if fs == nil {
		return dirNotFoundOp("delete-directory", p)
	}
	return fs.DeleteDirectory(ctx, routed, recursive)
}

// --- FileSystem: files ---

func (m *Mount) FileExists(ctx context.Context, p vfs.Path) (bool, error) {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return false, nil
	}
	return fs.FileExists(ctx, routed)
}

func (m *Mount) GetFileLength(ctx context.Context, p vfs.Path) (int64, error) {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return 0, notFoundOp("get-file-length", p)
	}
	return fs.GetFileLength(ctx, routed)
}

func (m *Mount) OpenFile(ctx context.Context, p vfs.Path, mode vfs.OpenMode, access vfs.FileAccess, share vfs.FileShare) (io.ReadWriteCloser, error) {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return nil, dirNotFoundOp("open-file", p)
	}
	return fs.OpenFile(ctx, routed, mode, access, share)
}

func (m *Mount) CopyFile(ctx context.Context, src, dst vfs.Path, overwrite bool) error {
	sfs, sroute, _, _ := m.route(src)
	dfs, droute, _, _ := m.route(dst)
	if sfs == nil {
		return notFoundOp("copy-file", src)
	}
	if dfs == nil {
		return dirNotFoundOp("copy-file", dst)
	}
	if sfs == dfs {
		return sfs.CopyFile(ctx, sroute, droute, overwrite)
	}
	return vfs.CopyFileCross(ctx, sfs, dfs, sroute, droute, overwrite)
}

// MoveFile implements spec.md §4.2's pre-checks before delegating or
// falling back to a cross-filesystem move.
func (m *Mount) MoveFile(ctx context.Context, src, dst vfs.Path) error {
	sfs, sroute, _, _ := m.route(src)
	if sfs == nil {
		return notFoundOp("move-file", src)
	}
	exists, err := sfs.FileExists(ctx, sroute)
	if err != nil {
		return err
	}
	if !exists {
		return notFoundOp("move-file", src)
	}

	dfs, droute, _, _ := m.route(dst)
	if dfs == nil {
		return dirNotFoundOp("move-file", dst)
	}
	dirOK, err := dfs.DirectoryExists(ctx, droute.Dir())
	if err != nil {
		return err
	}
	if !dirOK {
		return dirNotFoundOp("move-file", dst)
	}
	dstExists, err := dfs.FileExists(ctx, droute)
	if err != nil {
		return err
	}
	if dstExists {
		return &vfs.OpError{Op: "move-file", Path: dst.String(), Err: vfs.ErrExists}
	}

	if sfs == dfs {
		return sfs.MoveFile(ctx, sroute, droute)
	}
	return vfs.MoveFileCross(ctx, sfs, dfs, sroute, droute)
}

func (m *Mount) ReplaceFile(ctx context.Context, src, dst, backup vfs.Path, ignoreMetadataErrors bool) error {
	sfs, _, _, _ := m.route(src)
	dfs, _, _, _ := m.route(dst)
	if sfs == nil || dfs == nil || sfs != dfs {
		return &vfs.OpError{Op: "replace-file", Path: dst.String(), Err: vfs.ErrNotSupported}
	}
	if !backup.IsNull() {
		bfs, _, _, _ := m.route(backup)
		if bfs != sfs {
			return &vfs.OpError{Op: "replace-file", Path: backup.String(), Err: vfs.ErrNotSupported}
		}
	}

	_, sroute, _, _ := m.route(src)
	_, droute, _, _ := m.route(dst)
	broute := vfs.Null
	if !backup.IsNull() {
		_, broute, _, _ = m.route(backup)
	}
	return sfs.ReplaceFile(ctx, sroute, droute, broute, ignoreMetadataErrors)
}

func (m *Mount) DeleteFile(ctx context.Context, p vfs.Path) error {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return notFoundOp("delete-file", p)
	}
	return fs.DeleteFile(ctx, routed)
}

// --- FileSystem: metadata ---

func (m *Mount) GetAttributes(ctx context.Context, p vfs.Path) (vfs.Attributes, error) {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		if m.isStrictPrefixOfMount(p) {
			return vfs.AttrDirectory | vfs.AttrReadOnly, nil
		}
		return 0, notFoundOp("get-attributes", p)
	}
	return fs.GetAttributes(ctx, routed)
}

func (m *Mount) SetAttributes(ctx context.Context, p vfs.Path, attr vfs.Attributes) error {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return notFoundOp("set-attributes", p)
	}
	return fs.SetAttributes(ctx, routed, attr)
}

func (m *Mount) GetCreationTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return m.timeOf(ctx, p, (vfs.FileSystem).GetCreationTime)
}

func (m *Mount) SetCreationTime(ctx context.Context, p vfs.Path, t time.Time) error {
	return m.setTime(ctx, p, t, (vfs.FileSystem).SetCreationTime)
}

func (m *Mount) GetLastAccessTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return m.timeOf(ctx, p, (vfs.FileSystem).GetLastAccessTime)
}

func (m *Mount) SetLastAccessTime(ctx context.Context, p vfs.Path, t time.Time) error {
	return m.setTime(ctx, p, t, (vfs.FileSystem).SetLastAccessTime)
}

func (m *Mount) GetLastWriteTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return m.timeOf(ctx, p, (vfs.FileSystem).GetLastWriteTime)
}

func (m *Mount) SetLastWriteTime(ctx context.Context, p vfs.Path, t time.Time) error {
	return m.setTime(ctx, p, t, (vfs.FileSystem).SetLastWriteTime)
}

func (m *Mount) timeOf(ctx context.Context, p vfs.Path, get func(vfs.FileSystem, context.Context, vfs.Path) (time.Time, error)) (time.Time, error) {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return time.Time{}, nil
	}
	return get(fs, ctx, routed)
}

func (m *Mount) setTime(ctx context.Context, p vfs.Path, t time.Time, set func(vfs.FileSystem, context.Context, vfs.Path, time.Time) error) error {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return notFoundOp("set-time", p)
	}
	return set(fs, ctx, routed, t)
}

// ConvertToHostString routes p to its owning mount and asks it for a
// host string - unlike Aggregate, a Mount path is never ambiguous (it
// routes to exactly one filesystem), so this is well defined.
func (m *Mount) ConvertToHostString(p vfs.Path) (string, error) {
	fs, routed, _, _ := m.route(p)
	if fs == nil {
		return "", notFoundOp("convert-to-host-string", p)
	}
	return fs.ConvertToHostString(routed)
}

// ConvertFromHostString has no mount to attribute s to, so it is not
// supported (same reasoning as Aggregate's).
func (m *Mount) ConvertFromHostString(s string) (vfs.Path, error) {
	return vfs.Null, &vfs.OpError{Op: "convert-from-host-string", Path: s, Err: vfs.ErrNotSupported}
}
