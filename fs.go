// fs.go - the uniform filesystem capability all composers implement
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

package vfs

import (
	"context"
	"io"
	"time"
)

// EnumerateTarget selects which kind of path an enumeration returns.
// Modeled after the teacher's walk.go Type bitmask - a small set of
// bit-flags with a lookup-map based String().
type EnumerateTarget uint

const (
	TargetFile EnumerateTarget = 1 << iota
	TargetDirectory
	TargetBoth = TargetFile | TargetDirectory
)

var targetNames = map[EnumerateTarget]string{
	TargetFile:      "File",
	TargetDirectory: "Directory",
}

// String renders the bitmask as a human readable "File|Directory" form.
func (t EnumerateTarget) String() string {
	if t == TargetBoth {
		return "File|Directory"
	}
	return targetNames[t]
}

// OpenMode mirrors the common set of file-open dispositions.
type OpenMode int

const (
	OpenExisting OpenMode = iota
	Create
	CreateNew
	Append
	Truncate
	OpenOrCreate
)

// FileAccess is a bitmask of requested access rights.
type FileAccess uint

const (
	AccessRead FileAccess = 1 << iota
	AccessWrite
)

// FileShare is a bitmask of what concurrent access a caller permits
// other openers.
type FileShare uint

const (
	ShareNone FileShare = 0
	ShareRead FileShare = 1 << iota
	ShareWrite
	ShareDelete
)

// IsWrite returns true if the access bitmask requests write access.
func (a FileAccess) IsWrite() bool {
	return a&AccessWrite != 0
}

// Attributes is a generic, backend-agnostic bag of file attribute bits.
// Leaves decide how these map onto their native attribute model; the
// composition core never interprets them beyond forwarding and, for
// Aggregate, forcing the read-only bit on.
type Attributes uint32

const (
	AttrReadOnly Attributes = 1 << iota
	AttrHidden
	AttrSystem
	AttrDirectory
	AttrArchive
)

// Entry describes one filesystem object's metadata, as returned by
// GetAttributes and by the richer Enumerate forms. Field layout follows
// the teacher's info.go (Info), stripped of the device/inode/xattr
// fields that only make sense for a leaf talking to a real OS - those
// belong to the leaf, not to a composer forwarding paths.
type Entry struct {
	Path  Path
	Size  int64
	Mode  Attributes
	IsDir bool

	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
}

// Clone makes a deep copy of e (Entry has no reference fields today, but
// the method is kept for parity with the teacher's Info.Clone and to
// remain safe if Entry grows one).
func (e Entry) Clone() Entry {
	return e
}

// Watcher is implemented by vfs/watch; declared here (rather than
// imported) to avoid a dependency cycle, since every composer in this
// module returns one from Watch.
type Watcher interface {
	io.Closer
	Enable(bool)
	Enabled() bool
}

// FileSystem is the single polymorphic surface every composer
// (Aggregate, Mount, Sub) and every leaf implements. All blocking calls
// take a context.Context, per this module's ambient conventions; leaves
// are expected to respect cancellation on a best-effort basis.
type FileSystem interface {
	// Directory operations
	CreateDirectory(ctx context.Context, p Path) error
	DirectoryExists(ctx context.Context, p Path) (bool, error)
	MoveDirectory(ctx context.Context, src, dst Path) error
	DeleteDirectory(ctx context.Context, p Path, recursive bool) error

	// File operations
	FileExists(ctx context.Context, p Path) (bool, error)
	GetFileLength(ctx context.Context, p Path) (int64, error)
	OpenFile(ctx context.Context, p Path, mode OpenMode, access FileAccess, share FileShare) (io.ReadWriteCloser, error)
	CopyFile(ctx context.Context, src, dst Path, overwrite bool) error
	MoveFile(ctx context.Context, src, dst Path) error
	ReplaceFile(ctx context.Context, src, dst Path, backup Path, ignoreMetadataErrors bool) error
	DeleteFile(ctx context.Context, p Path) error

	// Metadata
	GetAttributes(ctx context.Context, p Path) (Attributes, error)
	SetAttributes(ctx context.Context, p Path, attr Attributes) error
	GetCreationTime(ctx context.Context, p Path) (time.Time, error)
	SetCreationTime(ctx context.Context, p Path, t time.Time) error
	GetLastAccessTime(ctx context.Context, p Path) (time.Time, error)
	SetLastAccessTime(ctx context.Context, p Path, t time.Time) error
	GetLastWriteTime(ctx context.Context, p Path) (time.Time, error)
	SetLastWriteTime(ctx context.Context, p Path, t time.Time) error

	// Enumeration
	EnumeratePaths(ctx context.Context, root Path, pattern string, recursive bool, target EnumerateTarget) (PathSeq, error)
	EnumerateItems(ctx context.Context, root Path, recursive bool, filter func(Entry) bool) (EntrySeq, error)

	// Watching
	CanWatch(p Path) bool
	Watch(ctx context.Context, p Path) (Watcher, error)

	// Path bridging
	ConvertToHostString(p Path) (string, error)
	ConvertFromHostString(s string) (Path, error)
}

// PathSeq is a lazy, finite sequence of paths - the Go 1.23 iterator
// shape, so callers can `for p := range seq`.
type PathSeq = func(yield func(Path) bool)

// EntrySeq is a lazy, finite sequence of Entry values.
type EntrySeq = func(yield func(Entry) bool)

// TryAsAggregate is the runtime capability query spec.md's design notes
// call for, to let Aggregate detect nested Aggregate layers without an
// RTTI-style type switch living inside every composer. A FileSystem that
// wants to participate in the nested-Aggregate short-circuit (spec.md
// §4.1) implements this optional interface.
type TryAsAggregate interface {
	AsAggregate() (agg FileSystem, ok bool)
}
