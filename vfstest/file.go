// file.go - in-memory file handle returned by MemFS.OpenFile
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

package vfstest

import (
	"io"
	"time"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/watch"
)

// memFile is a cursor into a node's byte slice. Reads and writes both
// take the owning MemFS's lock, so concurrent handles on the same node
// never tear.
type memFile struct {
	fs     *MemFS
	n      *node
	path   vfs.Path
	pos    int64
	access vfs.FileAccess
	closed bool
}

var _ io.ReadWriteCloser = (*memFile)(nil)

func (f *memFile) Read(p []byte) (int, error) {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()

	if f.closed {
		return 0, io.ErrClosedPipe
	}
	if f.pos >= int64(len(f.n.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.n.data[f.pos:])
	f.pos += int64(n)
	f.n.atime = time.Now()
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if !f.access.IsWrite() {
		return 0, vfs.ErrReadOnly
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.closed {
		return 0, io.ErrClosedPipe
	}

	end := f.pos + int64(len(p))
	if end > int64(len(f.n.data)) {
		grown := make([]byte, end)
		copy(grown, f.n.data)
		f.n.data = grown
	}
	copy(f.n.data[f.pos:end], p)
	f.pos = end
	f.n.mtime = time.Now()

	f.fs.raiseLocked(watch.Changed, f.path, vfs.Null)
	return len(p), nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}
