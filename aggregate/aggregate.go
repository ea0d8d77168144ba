// aggregate.go - readonly ordered overlay composer
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

// Package aggregate implements spec.md §4.1: a readonly overlay that
// merges N underlying filesystems, where later stack entries shadow
// earlier ones, plus an optional fallback consulted below index 0.
package aggregate

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

// Aggregate is a readonly overlay over an ordered stack of filesystems.
// Index 0 is lowest priority; the last index is highest priority; the
// fallback sits below index 0. Lookup order is therefore: top of stack
// -> ... -> index 0 -> fallback.
type Aggregate struct {
	mu       sync.RWMutex
	stack    []vfs.FileSystem
	fallback vfs.FileSystem

	// owned controls spec.md §5's "Resource lifecycle": when true,
	// Close disposes the stack and fallback too, not just this
	// Aggregate's own watchers. Set via WithOwnership.
	owned bool

	// ShortCircuitNestedAggregate preserves spec.md §9's documented,
	// deliberately counterintuitive behavior: when resolution reaches a
	// nested Aggregate, that nested Aggregate's answer is returned
	// immediately - lower layers of *this* Aggregate are never
	// consulted, even if the nested Aggregate reports "not found".
	// Default true. Set false to fall through instead (a deviation from
	// the documented source behavior - see SPEC_FULL.md §7).
	ShortCircuitNestedAggregate bool

	watchMu   sync.Mutex
	watchers  map[*watch.Aggregating]vfs.Path
	disposing bool

	log vfs.Logger
}

// New creates an Aggregate over the given stack (lowest priority first)
// with an optional fallback. Passing the Aggregate itself, or any
// filesystem twice, is rejected with vfs.ErrInvalidArgument (spec.md §3
// invariants).
func New(fallback vfs.FileSystem, stack ...vfs.FileSystem) (*Aggregate, error) {
	a := &Aggregate{
		ShortCircuitNestedAggregate: true,
		watchers:                    make(map[*watch.Aggregating]vfs.Path),
	}
	a.fallback = fallback
	for _, fs := range stack {
		if err := a.validateAdd(fs); err != nil {
			return nil, err
		}
		a.stack = append(a.stack, fs)
	}
	return a, nil
}

// WithOwnership marks a, so Close also disposes its stack and fallback
// (spec.md §5 "Resource lifecycle"). Returns a for chaining.
func WithOwnership(a *Aggregate) *Aggregate {
	a.mu.Lock()
	a.owned = true
	a.mu.Unlock()
	return a
}

// WithLogger attaches log, so AddFilesystem and RemoveFilesystem are
// reported through it; Clear, SetFilesystems and watcher attach/detach
// are not logged. A nil log (the default) keeps the Aggregate silent.
func WithLogger(a *Aggregate, log vfs.Logger) *Aggregate {
	a.mu.Lock()
	a.log = log
	a.mu.Unlock()
	return a
}

// Close tears down a: every live watcher is disposed (with the
// is-disposing flag set first, so their own un-registration callbacks
// don't fight with this iteration - spec.md §9 "Live-watcher
// registry"), and if a was constructed with WithOwnership, every
// stacked filesystem and the fallback are closed too.
func (a *Aggregate) Close() error {
	a.watchMu.Lock()
	a.disposing = true
	watchers := make([]*watch.Aggregating, 0, len(a.watchers))
	for w := range a.watchers {
		watchers = append(watchers, w)
	}
	a.watchMu.Unlock()

	for _, w := range watchers {
		w.Close()
	}

	a.watchMu.Lock()
	a.watchers = make(map[*watch.Aggregating]vfs.Path)
	a.watchMu.Unlock()

	a.mu.Lock()
	owned := a.owned
	stack := a.stack
	fallback := a.fallback
	a.mu.Unlock()

	if !owned {
		return nil
	}

	var first error
	for _, fs := range stack {
		if c, ok := fs.(io.Closer); ok {
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

// AsAggregate satisfies vfs.TryAsAggregate, letting an outer Aggregate
// detect this is a nested Aggregate without a type switch (spec.md §9
// "expose it as a capability query").
func (a *Aggregate) AsAggregate() (vfs.FileSystem, bool) {
	return a, true
}

func (a *Aggregate) validateAdd(fs vfs.FileSystem) error {
	if fs == nil {
		return vfs.ErrInvalidArgument
	}
	if fs == vfs.FileSystem(a) {
		return vfs.ErrInvalidArgument
	}
	for _, existing := range a.stack {
		if existing == fs {
			return vfs.ErrInvalidArgument
		}
	}
	return nil
}

// AddFilesystem pushes fs onto the top (highest priority) of the stack
// and splices a matching child watcher into every live Aggregating
// watcher whose path fs can serve (spec.md §4.4 "Dynamic rewiring").
func (a *Aggregate) AddFilesystem(ctx context.Context, fs vfs.FileSystem) error {
	a.mu.Lock()
	if err := a.validateAdd(fs); err != nil {
		a.mu.Unlock()
		return err
	}
	a.stack = append(a.stack, fs)
	a.mu.Unlock()

	if a.log != nil {
		a.log.Debug("aggregate: added filesystem to top of stack")
	}

	a.rewireAdd(ctx, fs)
	return nil
}

// RemoveFilesystem removes fs from the stack (if present) and detaches
// its child watcher from every live Aggregating watcher.
func (a *Aggregate) RemoveFilesystem(fs vfs.FileSystem) {
	a.mu.Lock()
	out := a.stack[:0]
	for _, e := range a.stack {
		if e != fs {
			out = append(out, e)
		}
	}
	a.stack = out
	a.mu.Unlock()

	a.watchMu.Lock()
	for w := range a.watchers {
		w.RemoveFrom(fs)
	}
	a.watchMu.Unlock()

	if a.log != nil {
		a.log.Debug("aggregate: removed filesystem from stack")
	}
}

// Clear empties the stack and detaches every stack-layer child watcher
// from every live Aggregating watcher, leaving the fallback (if any)
// attached.
func (a *Aggregate) Clear() {
	a.mu.Lock()
	old := a.stack
	a.stack = nil
	a.mu.Unlock()

	a.watchMu.Lock()
	for w := range a.watchers {
		for _, fs := range old {
			w.RemoveFrom(fs)
		}
	}
	a.watchMu.Unlock()
}

// SetFilesystems atomically replaces the stack and rewires every live
// watcher accordingly.
func (a *Aggregate) SetFilesystems(ctx context.Context, stack ...vfs.FileSystem) error {
	tmp := &Aggregate{}
	for _, fs := range stack {
		if err := tmp.validateAdd(fs); err != nil {
			return err
		}
		tmp.stack = append(tmp.stack, fs)
	}

	a.mu.Lock()
	old := a.stack
	a.stack = tmp.stack
	a.mu.Unlock()

	a.watchMu.Lock()
	for w := range a.watchers {
		for _, fs := range old {
			w.RemoveFrom(fs)
		}
	}
	a.watchMu.Unlock()

	for _, fs := range tmp.stack {
		a.rewireAdd(ctx, fs)
	}
	return nil
}

func (a *Aggregate) rewireAdd(ctx context.Context, fs vfs.FileSystem) {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	for w, root := range a.watchers {
		if w.Disposing() {
			continue
		}
		if !fs.CanWatch(root) {
			continue
		}
		child, err := fs.Watch(ctx, root)
		if err != nil {
			continue
		}
		cw, ok := child.(watch.Watcher)
		if !ok {
			child.Close()
			continue
		}
		w.Add(fs, watch.NewWrapping(cw, watch.IdentityConvert, 0))
	}
}

// layers returns the candidate layers from highest to lowest priority:
// top-of-stack downward, then fallback.
func (a *Aggregate) layers() []vfs.FileSystem {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]vfs.FileSystem, 0, len(a.stack)+1)
	for i := len(a.stack) - 1; i >= 0; i-- {
		out = append(out, a.stack[i])
	}
	if a.fallback != nil {
		out = append(out, a.fallback)
	}
	return out
}

type resolution struct {
	fs     vfs.FileSystem
	path   vfs.Path
	isFile bool
}

// resolve answers "does P exist and where?" per spec.md §4.1, honoring
// the nested-Aggregate short-circuit and guarding against composition
// cycles (spec.md §9).
func (a *Aggregate) resolve(ctx context.Context, p vfs.Path, want vfs.EnumerateTarget, visited map[vfs.FileSystem]struct{}) (*resolution, error) {
	if visited == nil {
		visited = make(map[vfs.FileSystem]struct{})
	}
	if _, ok := visited[a]; ok {
		return nil, vfs.ErrCyclicComposition
	}
	visited[a] = struct{}{}

	for _, layer := range a.layers() {
		if nested, ok := asAggregate(layer); ok {
			if _, seen := visited[nested]; seen {
				return nil, vfs.ErrCyclicComposition
			}
			if agg, ok := nested.(*Aggregate); ok && a.ShortCircuitNestedAggregate {
				r, err := agg.resolve(ctx, p, want, visited)
				if err != nil {
					return nil, err
				}
				// Deliberate: return immediately, even on a nil
				// (not-found) result - lower layers of THIS
				// aggregate are never consulted. See
				// SPEC_FULL.md §4/§9.
				if r != nil {
					r.fs = agg
				}
				return r, nil
			}
		}

		if want&vfs.TargetDirectory != 0 {
			if ok, err := layer.DirectoryExists(ctx, p); err == nil && ok {
				return &resolution{fs: layer, path: p, isFile: false}, nil
			}
		}
		if want&vfs.TargetFile != 0 {
			if ok, err := layer.FileExists(ctx, p); err == nil && ok {
				return &resolution{fs: layer, path: p, isFile: true}, nil
			}
		}
	}
	return nil, nil
}

func asAggregate(fs vfs.FileSystem) (vfs.FileSystem, bool) {
	if t, ok := fs.(vfs.TryAsAggregate); ok {
		return t.AsAggregate()
	}
	return nil, false
}

// --- FileSystem interface: readonly guards ---

func (a *Aggregate) CreateDirectory(context.Context, vfs.Path) error { return vfs.ErrReadOnly }

func (a *Aggregate) DirectoryExists(ctx context.Context, p vfs.Path) (bool, error) {
	r, err := a.resolve(ctx, p, vfs.TargetDirectory, nil)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

func (a *Aggregate) MoveDirectory(context.Context, vfs.Path, vfs.Path) error { return vfs.ErrReadOnly }

func (a *Aggregate) DeleteDirectory(context.Context, vfs.Path, bool) error { return vfs.ErrReadOnly }

func (a *Aggregate) FileExists(ctx context.Context, p vfs.Path) (bool, error) {
	r, err := a.resolve(ctx, p, vfs.TargetFile, nil)
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

func (a *Aggregate) GetFileLength(ctx context.Context, p vfs.Path) (int64, error) {
	r, err := a.resolve(ctx, p, vfs.TargetFile, nil)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, &vfs.OpError{Op: "get-file-length", Path: p.String(), Err: vfs.ErrNotFound}
	}
	return r.fs.GetFileLength(ctx, r.path)
}

func (a *Aggregate) OpenFile(ctx context.Context, p vfs.Path, mode vfs.OpenMode, access vfs.FileAccess, share vfs.FileShare) (io.ReadWriteCloser, error) {
	if mode != vfs.OpenExisting || access.IsWrite() {
		return nil, vfs.ErrReadOnly
	}
	r, err := a.resolve(ctx, p, vfs.TargetFile, nil)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &vfs.OpError{Op: "open-file", Path: p.String(), Err: vfs.ErrNotFound}
	}
	return r.fs.OpenFile(ctx, r.path, mode, access, share)
}

func (a *Aggregate) CopyFile(context.Context, vfs.Path, vfs.Path, bool) error { return vfs.ErrReadOnly }
func (a *Aggregate) MoveFile(context.Context, vfs.Path, vfs.Path) error       { return vfs.ErrReadOnly }
func (a *Aggregate) ReplaceFile(context.Context, vfs.Path, vfs.Path, vfs.Path, bool) error {
	return vfs.ErrReadOnly
}
func (a *Aggregate) DeleteFile(context.Context, vfs.Path) error { return vfs.ErrReadOnly }

func (a *Aggregate) GetAttributes(ctx context.Context, p vfs.Path) (vfs.Attributes, error) {
	r, err := a.resolve(ctx, p, vfs.TargetBoth, nil)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, &vfs.OpError{Op: "get-attributes", Path: p.String(), Err: vfs.ErrNotFound}
	}
	attr, err := r.fs.GetAttributes(ctx, r.path)
	if err != nil {
		return 0, err
	}
	return attr | vfs.AttrReadOnly, nil
}

func (a *Aggregate) SetAttributes(context.Context, vfs.Path, vfs.Attributes) error {
	return vfs.ErrReadOnly
}

func (a *Aggregate) GetCreationTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return a.timeOf(ctx, p, (vfs.FileSystem).GetCreationTime)
}

func (a *Aggregate) SetCreationTime(context.Context, vfs.Path, time.Time) error { return vfs.ErrReadOnly }

func (a *Aggregate) GetLastAccessTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return a.timeOf(ctx, p, (vfs.FileSystem).GetLastAccessTime)
}

func (a *Aggregate) SetLastAccessTime(context.Context, vfs.Path, time.Time) error {
	return vfs.ErrReadOnly
}

func (a *Aggregate) GetLastWriteTime(ctx context.Context, p vfs.Path) (time.Time, error) {
	return a.timeOf(ctx, p, (vfs.FileSystem).GetLastWriteTime)
}

func (a *Aggregate) SetLastWriteTime(context.Context, vfs.Path, time.Time) error {
	return vfs.ErrReadOnly
}

// timeOf resolves p and fetches one of the three time fields, defaulting
// to the epoch if no layer owns p (spec.md §4.1 "Times default to epoch
// if no layer owns P").
func (a *Aggregate) timeOf(ctx context.Context, p vfs.Path, get func(vfs.FileSystem, context.Context, vfs.Path) (time.Time, error)) (time.Time, error) {
	r, err := a.resolve(ctx, p, vfs.TargetBoth, nil)
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, nil
	}
	return get(r.fs, ctx, r.path)
}

func (a *Aggregate) ConvertToHostString(p vfs.Path) (string, error) {
	return "", &vfs.OpError{Op: "convert-to-host-string", Path: p.String(), Err: vfs.ErrNotSupported}
}

func (a *Aggregate) ConvertFromHostString(s string) (vfs.Path, error) {
	return vfs.Null, &vfs.OpError{Op: "convert-from-host-string", Path: s, Err: vfs.ErrNotSupported}
}

func (a *Aggregate) CanWatch(p vfs.Path) bool {
	for _, layer := range a.layers() {
		if layer.CanWatch(p) {
			return true
		}
	}
	return false
}

// Watch creates an aggregating watcher bound to p and attaches a
// forwarded child watcher for every layer (fallback then stack, per
// spec.md §4.1) that can watch p. The aggregating watcher is retained so
// later AddFilesystem/RemoveFilesystem/Clear/SetFilesystems can splice
// child watchers in/out (spec.md §4.4).
func (a *Aggregate) Watch(ctx context.Context, p vfs.Path) (vfs.Watcher, error) {
	var agg *watch.Aggregating
	onDisposed := func() {
		a.watchMu.Lock()
		// a composer tearing down (Close) already owns this
		// iteration over a.watchers - don't disturb it.
		if !a.disposing {
			delete(a.watchers, agg)
		}
		a.watchMu.Unlock()
	}
	agg = watch.NewAggregating(p, 16, onDisposed)

	a.watchMu.Lock()
	a.watchers[agg] = p
	a.watchMu.Unlock()

	layers := a.layers()
	// spec.md orders layers "top of stack -> ... -> fallback" for
	// resolution, but watcher attachment is explicitly "For each child
	// layer (fallback then stack)" - reverse back to construction order.
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		if !layer.CanWatch(p) {
			continue
		}
		child, err := layer.Watch(ctx, p)
		if err != nil {
			continue
		}
		cw, ok := child.(watch.Watcher)
		if !ok {
			child.Close()
			continue
		}
		agg.Add(layer, watch.NewWrapping(cw, watch.IdentityConvert, 0))
	}

	return agg, nil
}

// --- Enumeration ---

// EnumeratePaths implements spec.md §4.1's enumeration algorithm:
// candidate layers in [fallback?, stack...] order, walked highest to
// lowest priority, merged into a case-sensitive ordered de-dup set.
func (a *Aggregate) EnumeratePaths(ctx context.Context, root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget) (vfs.PathSeq, error) {
	entries, err := a.enumerate(ctx, root, pattern, recursive, target, nil)
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

// EnumerateItems is like EnumeratePaths but returns richer Entry values,
// filtered by the caller-supplied predicate, de-duplicated with an
// unordered set where the first observation wins (spec.md §4.1).
func (a *Aggregate) EnumerateItems(ctx context.Context, root vfs.Path, recursive bool, filter func(vfs.Entry) bool) (vfs.EntrySeq, error) {
	entries, err := a.enumerate(ctx, root, "*", recursive, vfs.TargetBoth, filter)
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

func (a *Aggregate) enumerate(ctx context.Context, root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget, filter func(vfs.Entry) bool) ([]vfs.Entry, error) {
	layers := a.layers()

	matchAll := pattern == "" || pattern == "*"

	seen := make(map[string]struct{})
	var out []vfs.Entry

	for _, layer := range layers {
		ok, err := layer.DirectoryExists(ctx, root)
		if err != nil || !ok {
			// a layer that doesn't contain root simply contributes
			// nothing (spec.md §7's one swallowed error).
			continue
		}

		items, err := layer.EnumerateItems(ctx, root, recursive, filter)
		if err != nil {
			continue
		}
		for e := range items {
			key := e.Path.String()
			if _, dup := seen[key]; dup {
				continue
			}
			if !matchAll {
				matched, merr := doublestar.Match(pattern, e.Path.Name())
				if merr != nil || !matched {
					continue
				}
			}
			if target != vfs.TargetBoth {
				isDir := e.IsDir
				if target == vfs.TargetDirectory && !isDir {
					continue
				}
				if target == vfs.TargetFile && isDir {
					continue
				}
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}

	// spec.md §5 "Suspension and ordering": deterministic sorted order,
	// case-insensitive ordinal.
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
