// watch.go - watcher primitives: kinds, events, notify filter
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

// Package watch implements the change-notification fan-in that couples
// Aggregate and Mount (spec.md §4.4): a basic watcher with a glob
// filter, a wrapping watcher that translates child events into a
// composed namespace, and an aggregating watcher that multiplexes many
// children into one subscription.
package watch

import (
	"fmt"

	"github.com/opencoff/go-vfs"
)

// Kind identifies the sort of change an Event describes.
type Kind int

const (
	Created Kind = iota
	Changed
	Deleted
	Renamed
	Error
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "Created"
	case Changed:
		return "Changed"
	case Deleted:
		return "Deleted"
	case Renamed:
		return "Renamed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// NotifyFilter is a bitmask of attribute changes a watcher cares about.
type NotifyFilter uint

const (
	NotifyFileName NotifyFilter = 1 << iota
	NotifyDirName
	NotifyLastWrite
	NotifySize

	// DefaultNotifyFilter is the "union commonly expected" default
	// spec.md §6 calls for.
	DefaultNotifyFilter = NotifyFileName | NotifyDirName | NotifyLastWrite | NotifySize
)

// Event carries one change notification. OldFullPath is only set for
// Kind == Renamed.
type Event struct {
	FS          vfs.FileSystem
	Kind        Kind
	FullPath    vfs.Path
	OldFullPath vfs.Path
	Err         error
}

func (e Event) String() string {
	if e.Kind == Renamed {
		return fmt.Sprintf("%s: %s -> %s", e.Kind, e.OldFullPath, e.FullPath)
	}
	if e.Kind == Error {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.FullPath)
}

// Watcher is the full surface a watch implementation offers: the
// minimal vfs.Watcher lifecycle plus the five event streams spec.md §4.4
// specifies. It is returned by every composer's Watch(), and consumers
// type-assert down to it (or to a narrower interface of their own) when
// they need the event channels rather than just lifecycle control.
type Watcher interface {
	vfs.Watcher

	Filter() string
	SetFilter(glob string)
	IncludeSubdirectories() bool

	Created() <-chan Event
	Changed() <-chan Event
	Deleted() <-chan Event
	Renamed() <-chan Event
	Errors() <-chan Event
}
