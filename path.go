// path.go - absolute/relative unix-style path value
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

import "strings"

// Path is a canonicalized Unix-style path. It has three distinguished
// states: the zero value is "null" (unset, distinct from root), "/" is
// root, and everything else is a "normal" path. Composers never
// normalize "." or ".." segments - that is a leaf concern.
type Path struct {
	p string
}

// NewPath wraps a raw path string 'p'. An empty string yields the null
// Path; "/" yields the root Path.
func NewPath(p string) Path {
	return Path{p: p}
}

// Root is the "/" path.
var Root = Path{p: "/"}

// Null is the unset Path, distinct from Root.
var Null = Path{}

// IsNull returns true if this Path is unset.
func (p Path) IsNull() bool {
	return len(p.p) == 0
}

// IsRoot returns true if this Path is exactly "/".
func (p Path) IsRoot() bool {
	return p.p == "/"
}

// IsAbsolute returns true if this Path begins with "/".
func (p Path) IsAbsolute() bool {
	return !p.IsNull() && p.p[0] == '/'
}

// String returns the raw path string; the null Path renders as "".
func (p Path) String() string {
	return p.p
}

// trimmed returns the path string with any trailing "/" removed (but
// never strips the lone "/" of root).
func (p Path) trimmed() string {
	if p.p == "/" || len(p.p) == 0 {
		return p.p
	}
	return strings.TrimSuffix(p.p, "/")
}

// Join concatenates p and rel, inserting exactly one "/" - mirroring the
// teacher's walk.go preference for string concatenation over
// filepath.Join, which would "clean" the path and remove meaningful
// leading segments.
func (p Path) Join(rel Path) Path {
	if rel.IsNull() {
		return p
	}
	if p.IsNull() {
		return rel
	}

	a := p.trimmed()
	b := strings.TrimPrefix(rel.p, "/")
	if len(b) == 0 {
		return NewPath(a)
	}
	if a == "" {
		a = "/"
	}
	if a == "/" {
		return NewPath("/" + b)
	}
	return NewPath(a + "/" + b)
}

// IsInDirectory returns true if p is inside parent. When recursive is
// false, p must be a direct child of parent; when true, any descendant
// qualifies. parent == p is never "inside" itself.
func (p Path) IsInDirectory(parent Path, recursive bool) bool {
	rem := p.removePrefix(parent)
	if rem.IsNull() {
		return false
	}
	if !recursive {
		return rem.segmentCount() == 1
	}
	return true
}

// removePrefix returns the remainder of p after stripping the prefix
//'dir', as an absolute Path rooted at "/". It returns Null if p is not
// inside dir (or p == dir).
func (p Path) removePrefix(dir Path) Path {
	if dir.IsNull() || p.IsNull() {
		return Null
	}
	if dir.IsRoot() {
		if p.IsRoot() {
			return Null
		}
		return p
	}

	ds := dir.trimmed()
	ps := p.p
	if ps == ds {
		return Null
	}
	if !strings.HasPrefix(ps, ds+"/") {
		return Null
	}
	rest := ps[len(ds):]
	return NewPath(rest)
}

// ToRelative strips the leading "/" (if any), returning a path with no
// leading separator. The root path becomes "".
func (p Path) ToRelative() Path {
	return NewPath(strings.TrimPrefix(p.p, "/"))
}

// ToAbsolute ensures the path begins with "/".
func (p Path) ToAbsolute() Path {
	if p.IsNull() || p.IsAbsolute() {
		return p
	}
	return NewPath("/" + p.p)
}

// FirstSegment returns the first path segment of a (relative or
// absolute) path, e.g. "/a/b/c" -> "a".
func (p Path) FirstSegment() string {
	s := strings.TrimPrefix(p.p, "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return s
}

// Name returns the last path segment (the leaf/basename).
func (p Path) Name() string {
	s := p.trimmed()
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Dir returns the parent directory of p.
func (p Path) Dir() Path {
	s := p.trimmed()
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return Root
	}
	return NewPath(s[:i])
}

// Equal returns true if p and q refer to the same path string.
func (p Path) Equal(q Path) bool {
	return p.p == q.p
}

func (p Path) segmentCount() int {
	s := strings.Trim(p.p, "/")
	if len(s) == 0 {
		return 0
	}
	return strings.Count(s, "/") + 1
}
