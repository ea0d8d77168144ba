// wrap.go - wrapping child watcher: forwards + translates paths
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

// Convert translates a child watcher's path into the composed
// namespace. It returns ok == false when the path cannot be
// represented (e.g. outside the composed view), in which case the
// event carrying it is dropped.
type Convert func(p vfs.Path) (out vfs.Path, ok bool)

// Wrapping forwards events from a child Watcher to its own
// subscribers, translating paths with an overridable Convert. Rename
// events require both the new and old path to translate successfully;
// if either fails, the rename is dropped (spec.md §4.4).
type Wrapping struct {
	child     Watcher
	translate Convert

	enabled atomic.Bool

	created chan Event
	changed chan Event
	deleted chan Event
	renamed chan Event
	errors  chan Event

	wg        sync.WaitGroup
	stop      chan struct{}
	closeOnce sync.Once
}

var _ Watcher = (*Wrapping)(nil)

// IdentityConvert is the Convert used when a composer's namespace
// matches its child's 1:1 (e.g. Aggregate, whose layers already share
// the composed path space).
func IdentityConvert(p vfs.Path) (vfs.Path, bool) { return p, true }

// NewWrapping wraps child, translating every event's path(s) via
// convert. The returned Wrapping owns child: Close on the Wrapping also
// closes child.
func NewWrapping(child Watcher, convert Convert, bufsz int) *Wrapping {
	w := &Wrapping{
		child:     child,
		translate: convert,
		created:   make(chan Event, bufsz),
		changed:   make(chan Event, bufsz),
		deleted:   make(chan Event, bufsz),
		renamed:   make(chan Event, bufsz),
		errors:    make(chan Event, bufsz),
		stop:      make(chan struct{}),
	}
	w.enabled.Store(true)

	w.wg.Add(5)
	go w.pump(child.Created(), w.created, false)
	go w.pump(child.Changed(), w.changed, false)
	go w.pump(child.Deleted(), w.deleted, false)
	go w.pumpRename()
	go w.pumpErrors()

	return w
}

func (w *Wrapping) pump(in <-chan Event, out chan Event, _ bool) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if !w.Enabled() {
				continue
			}
			np, ok := w.translate(ev.FullPath)
			if !ok {
				continue
			}
			ev.FullPath = np
			w.deliver(out, ev)
		}
	}
}

func (w *Wrapping) pumpRename() {
	defer w.wg.Done()
	in := w.child.Renamed()
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			if !w.Enabled() {
				continue
			}
			np, ok := w.translate(ev.FullPath)
			if !ok {
				continue
			}
			old, ok := w.translate(ev.OldFullPath)
			if !ok {
				continue
			}
			ev.FullPath = np
			ev.OldFullPath = old
			w.deliver(w.renamed, ev)
		}
	}
}

func (w *Wrapping) pumpErrors() {
	defer w.wg.Done()
	in := w.child.Errors()
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			// errors pass through unfiltered, still gated by enable.
			if !w.Enabled() {
				continue
			}
			w.deliver(w.errors, ev)
		}
	}
}

func (w *Wrapping) deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	case <-w.stop:
	}
}

func (w *Wrapping) Filter() string                { return w.child.Filter() }
func (w *Wrapping) SetFilter(glob string)          { w.child.SetFilter(glob) }
func (w *Wrapping) IncludeSubdirectories() bool    { return w.child.IncludeSubdirectories() }
func (w *Wrapping) Enable(on bool)                 { w.enabled.Store(on) }
func (w *Wrapping) Enabled() bool                  { return w.enabled.Load() }
func (w *Wrapping) Created() <-chan Event          { return w.created }
func (w *Wrapping) Changed() <-chan Event          { return w.changed }
func (w *Wrapping) Deleted() <-chan Event          { return w.deleted }
func (w *Wrapping) Renamed() <-chan Event          { return w.renamed }
func (w *Wrapping) Errors() <-chan Event           { return w.errors }

// Underlying returns the wrapped child watcher, e.g. so a composer can
// compare it against a filesystem for remove-from semantics.
func (w *Wrapping) Underlying() Watcher { return w.child }

func (w *Wrapping) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		err = w.child.Close()
		w.wg.Wait()
	})
	return err
}
