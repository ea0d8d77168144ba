// base.go - the basic watcher: filter + subscriber fan-out
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
)

// Basic is the foundational watcher: it holds a compiled filter and
// raises events to its own channels only when the composite gate
// (enable && filter-matches(name) && path-in-watch-root) passes.
type Basic struct {
	fs     vfs.FileSystem
	root   vfs.Path
	subdir bool

	glob         string
	notifyFilter NotifyFilter
	enabled      atomic.Bool

	created chan Event
	changed chan Event
	deleted chan Event
	renamed chan Event
	errors  chan Event

	closeOnce sync.Once
	closed    chan struct{}
}

var _ Watcher = (*Basic)(nil)

// NewBasic creates a watcher rooted at 'root'. bufsz sizes each event
// channel; 0 means unbuffered.
func NewBasic(fs vfs.FileSystem, root vfs.Path, includeSubdirectories bool, bufsz int) *Basic {
	b := &Basic{
		fs:           fs,
		root:         root,
		subdir:       includeSubdirectories,
		glob:         defaultFilter,
		notifyFilter: DefaultNotifyFilter,
		created:      make(chan Event, bufsz),
		changed:      make(chan Event, bufsz),
		deleted:      make(chan Event, bufsz),
		renamed:      make(chan Event, bufsz),
		errors:       make(chan Event, bufsz),
		closed:       make(chan struct{}),
	}
	b.enabled.Store(true)
	return b
}

func (b *Basic) Filter() string { return b.glob }

func (b *Basic) SetFilter(glob string) {
	b.glob = normalizeFilter(glob)
}

func (b *Basic) IncludeSubdirectories() bool { return b.subdir }

func (b *Basic) NotifyFilter() NotifyFilter { return b.notifyFilter }

func (b *Basic) SetNotifyFilter(f NotifyFilter) { b.notifyFilter = f }

func (b *Basic) Enable(on bool) { b.enabled.Store(on) }

func (b *Basic) Enabled() bool { return b.enabled.Load() }

func (b *Basic) Created() <-chan Event { return b.created }
func (b *Basic) Changed() <-chan Event { return b.changed }
func (b *Basic) Deleted() <-chan Event { return b.deleted }
func (b *Basic) Renamed() <-chan Event { return b.renamed }
func (b *Basic) Errors() <-chan Event  { return b.errors }

// gate implements spec.md §4.4's composite raise condition.
func (b *Basic) gate(full vfs.Path) bool {
	if !b.Enabled() {
		return false
	}
	if !filterMatches(b.glob, full) {
		return false
	}
	return pathInWatchRoot(b.root, full, b.subdir)
}

// Raise delivers ev to the matching channel if the gate passes. Error
// events bypass the filter/path gate but still respect Enabled(), per
// spec.md §4.4 ("Error events pass through unfiltered but still gated
// by enable").
func (b *Basic) Raise(ev Event) {
	select {
	case <-b.closed:
		return
	default:
	}

	if ev.Kind == Error {
		if !b.Enabled() {
			return
		}
		b.send(b.errors, ev)
		return
	}

	if !b.gate(ev.FullPath) {
		return
	}

	switch ev.Kind {
	case Created:
		b.send(b.created, ev)
	case Changed:
		b.send(b.changed, ev)
	case Deleted:
		b.send(b.deleted, ev)
	case Renamed:
		b.send(b.renamed, ev)
	}
}

func (b *Basic) send(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	case <-b.closed:
	}
}

// Close releases resources exactly once; a second call is a no-op, per
// spec.md §4.4 ("Finalization must release resources once and only
// once").
func (b *Basic) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
	})
	return nil
}
