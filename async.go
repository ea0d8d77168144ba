// async.go - thin async wrapper over the synchronous FileSystem surface
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

import "context"

// AsyncResult carries the outcome of an operation run via AsyncFileSystem.
type AsyncResult[T any] struct {
	Value T
	Err   error
}

// AsyncFileSystem wraps a FileSystem so each call returns immediately
// with a channel of its eventual result. Per spec.md §5, this adds no
// new concurrency guarantees beyond what the synchronous FileSystem
// already provides - it is a convenience for callers who don't want to
// manage their own goroutine per call, modeled on the
// submit-then-harvest shape of the teacher's WorkPool.
type AsyncFileSystem struct {
	fs FileSystem
}

// Async wraps fs for one-call-per-goroutine async use.
func Async(fs FileSystem) AsyncFileSystem {
	return AsyncFileSystem{fs: fs}
}

// DirectoryExists runs FileSystem.DirectoryExists in its own goroutine.
func (a AsyncFileSystem) DirectoryExists(ctx context.Context, p Path) <-chan AsyncResult[bool] {
	out := make(chan AsyncResult[bool], 1)
	go func() {
		ok, err := a.fs.DirectoryExists(ctx, p)
		out <- AsyncResult[bool]{Value: ok, Err: err}
		close(out)
	}()
	return out
}

// FileExists runs FileSystem.FileExists in its own goroutine.
func (a AsyncFileSystem) FileExists(ctx context.Context, p Path) <-chan AsyncResult[bool] {
	out := make(chan AsyncResult[bool], 1)
	go func() {
		ok, err := a.fs.FileExists(ctx, p)
		out <- AsyncResult[bool]{Value: ok, Err: err}
		close(out)
	}()
	return out
}

// CopyFile runs FileSystem.CopyFile in its own goroutine.
func (a AsyncFileSystem) CopyFile(ctx context.Context, src, dst Path, overwrite bool) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- a.fs.CopyFile(ctx, src, dst, overwrite)
		close(out)
	}()
	return out
}

// DeleteFile runs FileSystem.DeleteFile in its own goroutine.
func (a AsyncFileSystem) DeleteFile(ctx context.Context, p Path) <-chan error {
	out := make(chan error, 1)
	go func() {
		out <- a.fs.DeleteFile(ctx, p)
		close(out)
	}()
	return out
}
