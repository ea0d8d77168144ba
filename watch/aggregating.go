// aggregating.go - aggregating watcher: fan-in over N child watchers
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

package watch

import (
	"sync"
	"sync/atomic"

	"github.com/opencoff/go-vfs"
	"github.com/puzpuzpuz/xsync/v3"
)

// childEntry tracks one attached child watcher and the filesystem it
// came from, so remove-from(filesystem) (spec.md §4.4) can find it
// again when a composer unmounts or drops a stack layer.
type childEntry struct {
	fs   vfs.FileSystem
	w    Watcher
	stop chan struct{}
	wg   sync.WaitGroup
}

// Aggregating multiplexes any number of child watchers into a single
// subscription: any event on any child propagates to Aggregating's own
// five channels exactly once. Composers retain a strong reference to
// every Aggregating they hand out (spec.md §5/§9 "Live-watcher
// registry") so they can splice children in and out as the underlying
// stack/mount-table changes.
type Aggregating struct {
	root    vfs.Path
	enabled atomic.Bool

	children *xsync.MapOf[uint64, *childEntry]
	nextID   atomic.Uint64

	created chan Event
	changed chan Event
	deleted chan Event
	renamed chan Event
	errors  chan Event

	stop       chan struct{}
	closeOnce  sync.Once
	disposing  atomic.Bool
	onDisposed func()
}

var _ Watcher = (*Aggregating)(nil)

// NewAggregating creates an aggregating watcher bound to watch-root root.
// onDisposed, if non-nil, is called once when Close runs - composers use
// it to unregister the watcher from their live-watcher list, unless the
// composer itself is tearing down (spec.md §9 "is-disposing" flag).
func NewAggregating(root vfs.Path, bufsz int, onDisposed func()) *Aggregating {
	a := &Aggregating{
		root:       root,
		children:   xsync.NewMapOf[uint64, *childEntry](),
		created:    make(chan Event, bufsz),
		changed:    make(chan Event, bufsz),
		deleted:    make(chan Event, bufsz),
		renamed:    make(chan Event, bufsz),
		errors:     make(chan Event, bufsz),
		stop:       make(chan struct{}),
		onDisposed: onDisposed,
	}
	a.enabled.Store(true)
	return a
}

// Add attaches a child watcher backed by filesystem fs. Returns an id
// that can be used to identify this specific attachment (unused by
// RemoveFrom, which matches by filesystem, but handy for tests).
func (a *Aggregating) Add(fs vfs.FileSystem, w Watcher) uint64 {
	id := a.nextID.Add(1)
	ce := &childEntry{fs: fs, w: w, stop: make(chan struct{})}
	a.children.Store(id, ce)

	ce.wg.Add(5)
	go a.pump(ce, w.Created(), a.created)
	go a.pump(ce, w.Changed(), a.changed)
	go a.pump(ce, w.Deleted(), a.deleted)
	go a.pump(ce, w.Renamed(), a.renamed)
	go a.pump(ce, w.Errors(), a.errors)

	return id
}

func (a *Aggregating) pump(ce *childEntry, in <-chan Event, out chan Event) {
	defer ce.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case <-ce.stop:
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if !a.Enabled() {
				continue
			}
			select {
			case out <- ev:
			case <-a.stop:
				return
			case <-ce.stop:
				return
			}
		}
	}
}

// RemoveFrom detaches and closes every child watcher whose underlying
// filesystem equals fs (spec.md §4.4's "remove-from(filesystem)").
func (a *Aggregating) RemoveFrom(fs vfs.FileSystem) {
	var toClose []*childEntry
	a.children.Range(func(id uint64, ce *childEntry) bool {
		if ce.fs == fs {
			toClose = append(toClose, ce)
			a.children.Delete(id)
		}
		return true
	})
	for _, ce := range toClose {
		close(ce.stop)
		ce.w.Close()
		ce.wg.Wait()
	}
}

// Clear detaches every child watcher. If newFallback is non-nil it is
// attached afterward, mirroring spec.md §4.4's clear(new-fallback?).
func (a *Aggregating) Clear(newFallback vfs.FileSystem, fallbackWatcher Watcher) {
	var all []*childEntry
	a.children.Range(func(id uint64, ce *childEntry) bool {
		all = append(all, ce)
		a.children.Delete(id)
		return true
	})
	for _, ce := range all {
		close(ce.stop)
		ce.w.Close()
		ce.wg.Wait()
	}
	if newFallback != nil && fallbackWatcher != nil {
		a.Add(newFallback, fallbackWatcher)
	}
}

func (a *Aggregating) Filter() string             { return defaultFilter }
func (a *Aggregating) SetFilter(string)           {}
func (a *Aggregating) IncludeSubdirectories() bool { return true }
func (a *Aggregating) Enable(on bool)             { a.enabled.Store(on) }
func (a *Aggregating) Enabled() bool              { return a.enabled.Load() }
func (a *Aggregating) Created() <-chan Event       { return a.created }
func (a *Aggregating) Changed() <-chan Event       { return a.changed }
func (a *Aggregating) Deleted() <-chan Event       { return a.deleted }
func (a *Aggregating) Renamed() <-chan Event       { return a.renamed }
func (a *Aggregating) Errors() <-chan Event        { return a.errors }

// Close disposes every child watcher. Per spec.md §9, the disposing flag
// is set first, so composers that check Disposing() stop splicing new
// children into a watcher mid-teardown. Close leaves the children in
// the map; a later RemoveFrom still finds them and closes them again,
// which is harmless since child Close is idempotent.
func (a *Aggregating) Close() error {
	a.closeOnce.Do(func() {
		a.disposing.Store(true)
		close(a.stop)
		a.children.Range(func(id uint64, ce *childEntry) bool {
			ce.w.Close()
			ce.wg.Wait()
			return true
		})
		if a.onDisposed != nil {
			a.onDisposed()
		}
	})
	return nil
}

// Disposing reports whether Close has begun - composers check this
// before trying to splice a watcher that's mid-teardown.
func (a *Aggregating) Disposing() bool {
	return a.disposing.Load()
}
