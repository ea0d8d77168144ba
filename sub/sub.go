// sub.go - chroot view: expose {delegate}/subpath as a root
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

// Package sub implements spec.md §4.3: a view of {delegate}/subpath as
// if it were the root of its own filesystem.
package sub

import (
	"context"
	"strings"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/watch"
)

// Sub is a chroot-style view. It is stateless beyond subpath (spec.md
// §5), so unlike Aggregate and Mount it needs no mutex of its own - the
// embedded vfs.Delegate already forwards every simple operation.
type Sub struct {
	vfs.Delegate

	subpath vfs.Path
}

var _ vfs.FileSystem = (*Sub)(nil)

// New creates a Sub rooted at delegate/subpath. Per spec.md §4.3,
// construction fails with ErrDirectoryNotFound if subpath does not
// exist as a directory in delegate.
func New(ctx context.Context, delegate vfs.FileSystem, subpath vfs.Path) (*Sub, error) {
	if delegate == nil || subpath.IsNull() {
		return nil, vfs.ErrInvalidArgument
	}
	ok, err := delegate.DirectoryExists(ctx, subpath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &vfs.OpError{Op: "sub-new", Path: subpath.String(), Err: vfs.ErrDirectoryNotFound}
	}

	s := &Sub{subpath: subpath}
	s.Delegate = vfs.NewDelegate(delegate, s)
	return s, nil
}

// Subpath returns the subtree root this view exposes.
func (s *Sub) Subpath() vfs.Path { return s.subpath }

// ToInner implements vfs.Translator: convert-to-delegate(P) = subpath /
// (P as relative).
func (s *Sub) ToInner(p vfs.Path) (vfs.Path, error) {
	return s.subpath.Join(p.ToRelative()), nil
}

// FromInner implements vfs.Translator: convert-from-delegate(P)
// requires P to start with subpath + "/" (or equal subpath itself, for
// the view's own root); anything else is a contract violation by the
// delegate.
func (s *Sub) FromInner(p vfs.Path) (vfs.Path, error) {
	if p.Equal(s.subpath) {
		return vfs.Root, nil
	}
	prefix := strings.TrimSuffix(s.subpath.String(), "/") + "/"
	ps := p.String()
	if !strings.HasPrefix(ps, prefix) {
		return vfs.Null, &vfs.OpError{Op: "sub-from-inner", Path: p.String(), Err: vfs.ErrInvalidState}
	}
	return vfs.NewPath("/" + ps[len(prefix):]), nil
}

func (s *Sub) EnumeratePaths(ctx context.Context, root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget) (vfs.PathSeq, error) {
	ip, err := s.ToInner(root)
	if err != nil {
		return nil, err
	}
	inner, err := s.Delegate.FS.EnumeratePaths(ctx, ip, pattern, recursive, target)
	if err != nil {
		return nil, err
	}
	return func(yield func(vfs.Path) bool) {
		for p := range inner {
			op, err := s.FromInner(p)
			if err != nil {
				continue
			}
			if !yield(op) {
				return
			}
		}
	}, nil
}

func (s *Sub) EnumerateItems(ctx context.Context, root vfs.Path, recursive bool, filter func(vfs.Entry) bool) (vfs.EntrySeq, error) {
	ip, err := s.ToInner(root)
	if err != nil {
		return nil, err
	}
	inner, err := s.Delegate.FS.EnumerateItems(ctx, ip, recursive, filter)
	if err != nil {
		return nil, err
	}
	return func(yield func(vfs.Entry) bool) {
		for e := range inner {
			op, err := s.FromInner(e.Path)
			if err != nil {
				continue
			}
			e.Path = op
			if !yield(e) {
				return
			}
		}
	}, nil
}

// Watch attaches a wrapping watcher that rewrites event paths from the
// delegate's namespace back into this view's (spec.md §4.4).
func (s *Sub) Watch(ctx context.Context, p vfs.Path) (vfs.Watcher, error) {
	ip, err := s.ToInner(p)
	if err != nil {
		return nil, err
	}
	child, err := s.Delegate.FS.Watch(ctx, ip)
	if err != nil {
		return nil, err
	}
	cw, ok := child.(watch.Watcher)
	if !ok {
		return child, nil
	}
	convert := func(p vfs.Path) (vfs.Path, bool) {
		op, err := s.FromInner(p)
		return op, err == nil
	}
	return watch.NewWrapping(cw, convert, 0), nil
}
