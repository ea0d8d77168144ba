// helpers.go - tree-seeding helpers for tests
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
	"context"
	"io"

	"github.com/opencoff/go-vfs"
)

// WriteFile creates (or truncates) p and writes data to it, creating any
// missing parent directories first - mirrors the teacher's mkfile, but
// against an in-memory tree instead of a real one.
func WriteFile(fs *MemFS, p vfs.Path, data []byte) error {
	ctx := context.Background()
	if !p.Dir().IsRoot() {
		if err := fs.CreateDirectory(ctx, p.Dir()); err != nil {
			return err
		}
	}
	f, err := fs.OpenFile(ctx, p, vfs.Create, vfs.AccessWrite, vfs.ShareNone)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// ReadFile opens p and reads it to completion.
func ReadFile(fs *MemFS, p vfs.Path) ([]byte, error) {
	ctx := context.Background()
	f, err := fs.OpenFile(ctx, p, vfs.OpenExisting, vfs.AccessRead, vfs.ShareRead)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// MkdirAll creates p and any missing intermediate directories.
func MkdirAll(fs *MemFS, p vfs.Path) error {
	return fs.CreateDirectory(context.Background(), p)
}
