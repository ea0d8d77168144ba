// delegate.go - pass-through base that forwards through a translation pair
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

// Translator rewrites a path into and out of the inner filesystem's
// namespace. Sub is the only implementation in this module (prefix the
// subpath / strip the subpath); Aggregate and Mount do their own
// per-call routing and do not implement it.
type Translator interface {
	ToInner(p Path) (Path, error)
	FromInner(p Path) (Path, error)
}

// Delegate owns exactly one inner FileSystem and forwards every
// operation through ToInner/FromInner. Sub embeds and specializes it
// rather than re-implementing the full FileSystem surface from scratch;
// Aggregate and Mount do not embed it and implement every FileSystem
// method themselves.
type Delegate struct {
	Inner Translator
	FS    FileSystem

	// Owned indicates whether Close (if the embedder exposes one)
	// should also tear down FS. See spec.md §5 "Resource lifecycle".
	Owned bool
}

// NewDelegate wraps fs with translator t.
func NewDelegate(fs FileSystem, t Translator) Delegate {
	return Delegate{Inner: t, FS: fs}
}

func (d *Delegate) in(p Path) (Path, error) {
	return d.Inner.ToInner(p)
}

func (d *Delegate) out(p Path) (Path, error) {
	return d.Inner.FromInner(p)
}

func (d *Delegate) CreateDirectory(ctx context.Context, p Path) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.CreateDirectory(ctx, ip)
}

func (d *Delegate) DirectoryExists(ctx context.Context, p Path) (bool, error) {
	ip, err := d.in(p)
	if err != nil {
		return false, err
	}
	return d.FS.DirectoryExists(ctx, ip)
}

func (d *Delegate) MoveDirectory(ctx context.Context, src, dst Path) error {
	isrc, err := d.in(src)
	if err != nil {
		return err
	}
	idst, err := d.in(dst)
	if err != nil {
		return err
	}
	return d.FS.MoveDirectory(ctx, isrc, idst)
}

func (d *Delegate) DeleteDirectory(ctx context.Context, p Path, recursive bool) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.DeleteDirectory(ctx, ip, recursive)
}

func (d *Delegate) FileExists(ctx context.Context, p Path) (bool, error) {
	ip, err := d.in(p)
	if err != nil {
		return false, err
	}
	return d.FS.FileExists(ctx, ip)
}

func (d *Delegate) GetFileLength(ctx context.Context, p Path) (int64, error) {
	ip, err := d.in(p)
	if err != nil {
		return 0, err
	}
	return d.FS.GetFileLength(ctx, ip)
}

func (d *Delegate) OpenFile(ctx context.Context, p Path, mode OpenMode, access FileAccess, share FileShare) (io.ReadWriteCloser, error) {
	ip, err := d.in(p)
	if err != nil {
		return nil, err
	}
	return d.FS.OpenFile(ctx, ip, mode, access, share)
}

func (d *Delegate) CopyFile(ctx context.Context, src, dst Path, overwrite bool) error {
	isrc, err := d.in(src)
	if err != nil {
		return err
	}
	idst, err := d.in(dst)
	if err != nil {
		return err
	}
	return d.FS.CopyFile(ctx, isrc, idst, overwrite)
}

func (d *Delegate) MoveFile(ctx context.Context, src, dst Path) error {
	isrc, err := d.in(src)
	if err != nil {
		return err
	}
	idst, err := d.in(dst)
	if err != nil {
		return err
	}
	return d.FS.MoveFile(ctx, isrc, idst)
}

func (d *Delegate) ReplaceFile(ctx context.Context, src, dst, backup Path, ignoreMetadataErrors bool) error {
	isrc, err := d.in(src)
	if err != nil {
		return err
	}
	idst, err := d.in(dst)
	if err != nil {
		return err
	}
	ibackup := Null
	if !backup.IsNull() {
		if ibackup, err = d.in(backup); err != nil {
			return err
		}
	}
	return d.FS.ReplaceFile(ctx, isrc, idst, ibackup, ignoreMetadataErrors)
}

func (d *Delegate) DeleteFile(ctx context.Context, p Path) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.DeleteFile(ctx, ip)
}

func (d *Delegate) GetAttributes(ctx context.Context, p Path) (Attributes, error) {
	ip, err := d.in(p)
	if err != nil {
		return 0, err
	}
	return d.FS.GetAttributes(ctx, ip)
}

func (d *Delegate) SetAttributes(ctx context.Context, p Path, attr Attributes) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.SetAttributes(ctx, ip, attr)
}

func (d *Delegate) GetCreationTime(ctx context.Context, p Path) (time.Time, error) {
	ip, err := d.in(p)
	if err != nil {
		return time.Time{}, err
	}
	return d.FS.GetCreationTime(ctx, ip)
}

func (d *Delegate) SetCreationTime(ctx context.Context, p Path, t time.Time) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.SetCreationTime(ctx, ip, t)
}

func (d *Delegate) GetLastAccessTime(ctx context.Context, p Path) (time.Time, error) {
	ip, err := d.in(p)
	if err != nil {
		return time.Time{}, err
	}
	return d.FS.GetLastAccessTime(ctx, ip)
}

func (d *Delegate) SetLastAccessTime(ctx context.Context, p Path, t time.Time) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.SetLastAccessTime(ctx, ip, t)
}

func (d *Delegate) GetLastWriteTime(ctx context.Context, p Path) (time.Time, error) {
	ip, err := d.in(p)
	if err != nil {
		return time.Time{}, err
	}
	return d.FS.GetLastWriteTime(ctx, ip)
}

func (d *Delegate) SetLastWriteTime(ctx context.Context, p Path, t time.Time) error {
	ip, err := d.in(p)
	if err != nil {
		return err
	}
	return d.FS.SetLastWriteTime(ctx, ip, t)
}

func (d *Delegate) CanWatch(p Path) bool {
	ip, err := d.in(p)
	if err != nil {
		return false
	}
	return d.FS.CanWatch(ip)
}

func (d *Delegate) ConvertToHostString(p Path) (string, error) {
	ip, err := d.in(p)
	if err != nil {
		return "", err
	}
	return d.FS.ConvertToHostString(ip)
}

func (d *Delegate) ConvertFromHostString(s string) (Path, error) {
	p, err := d.FS.ConvertFromHostString(s)
	if err != nil {
		return Null, err
	}
	return d.out(p)
}
