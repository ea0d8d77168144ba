// watch.go - aggregating watcher over every reachable mount + fallback
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

package mount

import (
	"context"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/watch"
)

// reachable reports whether a watch rooted at p can see any change
// under mount prefix: either they're the same path, one contains the
// other, or p is the global root (spec.md §4.2 "Watcher").
func reachable(prefix, p vfs.Path) bool {
	if p.IsRoot() || p.Equal(prefix) {
		return true
	}
	return prefix.IsInDirectory(p, true) || p.IsInDirectory(prefix, true)
}

// localRootFor computes the path to hand to the mounted filesystem's own
// Watch: if p routes inside the mount, that's the routed remainder;
// otherwise (p is an ancestor of the mount, or the global root) the
// whole mount is in view, so watch its root.
func localRootFor(prefix, p vfs.Path) vfs.Path {
	if r, ok := splitMount(prefix, p); ok {
		return r
	}
	return vfs.Root
}

func (m *Mount) CanWatch(p vfs.Path) bool {
	for _, e := range m.snapshot() {
		if reachable(e.prefix, p) && e.fs.CanWatch(localRootFor(e.prefix, p)) {
			return true
		}
	}
	if fs, routed, _, matched := m.route(p); !matched && fs != nil {
		if fs.CanWatch(routed) {
			return true
		}
	}
	return m.isStrictPrefixOfMount(p)
}

// Watch builds an aggregating watcher rooted at p: every mount reachable
// from p gets a wrapping child watcher that rewrites its event paths
// back into the merged namespace by prepending the mount's prefix, and
// the fallback (if it owns any part of the namespace p can see) is
// attached with an identity conversion, since the fallback already
// lives directly in the merged namespace. The aggregating watcher is
// retained so Mount/Unmount can splice children in and out later
// (spec.md §4.4 "Dynamic rewiring").
func (m *Mount) Watch(ctx context.Context, p vfs.Path) (vfs.Watcher, error) {
	var agg *watch.Aggregating
	onDisposed := func() {
		m.watchMu.Lock()
		if !m.disposing {
			delete(m.watchers, agg)
		}
		m.watchMu.Unlock()
	}
	agg = watch.NewAggregating(p, 16, onDisposed)

	m.watchMu.Lock()
	m.watchers[agg] = p
	m.watchMu.Unlock()

	for _, e := range m.snapshot() {
		m.attachMount(ctx, agg, e, p)
	}

	if fs, routed, _, matched := m.route(p); !matched && fs != nil && fs.CanWatch(routed) {
		if child, err := fs.Watch(ctx, routed); err == nil {
			if cw, ok := child.(watch.Watcher); ok {
				agg.Add(fs, watch.NewWrapping(cw, watch.IdentityConvert, 0))
			} else {
				child.Close()
			}
		}
	}

	return agg, nil
}

// attachMount attaches e's child watcher to agg if e is reachable from
// watchRoot, rewriting its event paths by prepending e.prefix.
func (m *Mount) attachMount(ctx context.Context, agg *watch.Aggregating, e mountEntry, watchRoot vfs.Path) {
	if !reachable(e.prefix, watchRoot) {
		return
	}
	local := localRootFor(e.prefix, watchRoot)
	if !e.fs.CanWatch(local) {
		return
	}
	child, err := e.fs.Watch(ctx, local)
	if err != nil {
		return
	}
	cw, ok := child.(watch.Watcher)
	if !ok {
		child.Close()
		return
	}
	prefix := e.prefix
	convert := func(inner vfs.Path) (vfs.Path, bool) {
		return prefix.Join(inner.ToRelative()), true
	}
	agg.Add(e.fs, watch.NewWrapping(cw, convert, 0))
}

// rewireAdd splices a new mount's child watcher into every live
// aggregating watcher it is reachable from (spec.md §4.4).
func (m *Mount) rewireAdd(ctx context.Context, prefix vfs.Path, fs vfs.FileSystem) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for w, root := range m.watchers {
		if w.Disposing() {
			continue
		}
		m.attachMount(ctx, w, mountEntry{prefix: prefix, fs: fs}, root)
	}
}
