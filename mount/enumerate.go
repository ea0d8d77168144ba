// enumerate.go - breadth-first enumeration across mounts (spec.md §4.2)
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

package mount

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/opencoff/go-vfs"
)

// searchLocation is one place a queued directory D might contribute
// entries from: either a concrete subtree of a mounted (or fallback)
// filesystem, or a virtual location synthesizing the next segment of a
// mount prefix that lies below D.
type searchLocation struct {
	virtual bool
	fs      vfs.FileSystem
	local   vfs.Path // concrete: the path to query on fs
	segment string   // virtual: the synthesized child name
}

// searchLocations implements spec.md §4.2 step 2 for one queued
// directory dir.
func (m *Mount) searchLocations(ctx context.Context, dir vfs.Path) ([]searchLocation, bool, error) {
	var locs []searchLocation
	matchedMount := false

	for _, e := range m.snapshot() {
		if e.prefix.IsInDirectory(dir, true) {
			// dir is a strict prefix of e.prefix: e.prefix is below dir.
			seg := nextSegmentBelow(dir, e.prefix)
			locs = append(locs, searchLocation{virtual: true, segment: seg})
			continue
		}
		if r, ok := splitMount(e.prefix, dir); ok {
			matchedMount = true
			ok2, err := e.fs.DirectoryExists(ctx, r)
			if err != nil {
				return nil, false, err
			}
			if ok2 {
				locs = append(locs, searchLocation{fs: e.fs, local: r})
			}
		}
	}

	if !matchedMount && m.fallback != nil {
		ok, err := m.fallback.DirectoryExists(ctx, dir)
		if err != nil {
			return nil, false, err
		}
		if ok {
			locs = append(locs, searchLocation{fs: m.fallback, local: dir})
		}
	}
	return locs, matchedMount, nil
}

// nextSegmentBelow returns the first path component of k once dir's
// prefix is stripped, e.g. nextSegmentBelow("/a", "/a/b/c") == "b".
func nextSegmentBelow(dir, k vfs.Path) string {
	ds := strings.TrimSuffix(dir.String(), "/")
	rest := strings.TrimPrefix(strings.TrimPrefix(k.String(), ds), "/")
	return vfs.NewPath(rest).FirstSegment()
}

func (m *Mount) enumerate(ctx context.Context, root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget, filter func(vfs.Entry) bool) ([]vfs.Entry, error) {
	matchAll := pattern == "" || pattern == "*"
	seen := make(map[string]struct{})
	var out []vfs.Entry

	queue := []vfs.Path{root}
	level := 0
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		locs, _, err := m.searchLocations(ctx, dir)
		if err != nil {
			return nil, err
		}
		if len(locs) == 0 {
			if level == 0 && !dir.IsRoot() {
				return nil, dirNotFoundOp("enumerate-paths", dir)
			}
			level++
			continue
		}

		// Fast path (spec.md §4.2 step 4 last bullet): a single
		// concrete, non-virtual location, recursive request -
		// delegate wholesale instead of walking level by level.
		if recursive && len(locs) == 1 && !locs[0].virtual {
			loc := locs[0]
			sub, err := loc.fs.EnumerateItems(ctx, loc.local, true, nil)
			if err == nil {
				m.mergeSubtree(sub, dir, loc.local, matchAll, pattern, target, filter, seen, &out)
				level++
				continue
			}
		}

		var childDirs []vfs.Path
		for _, loc := range locs {
			if loc.virtual {
				name := loc.segment
				if name == "" {
					continue
				}
				p := dir.Join(vfs.NewPath(name))
				// A virtual directory is always a traversal
				// candidate, even when pattern/target would
				// exclude it from the emitted results -
				// otherwise a file-only or non-matching query
				// could never reach files below it.
				if recursive {
					childDirs = append(childDirs, p)
				}
				if !matchAll {
					ok, merr := doublestar.Match(pattern, name)
					if merr != nil || !ok {
						continue
					}
				}
				if target == vfs.TargetFile {
					continue
				}
				key := p.String()
				if _, dup := seen[key]; dup {
					continue
				}
				e := vfs.Entry{Path: p, IsDir: true, Mode: vfs.AttrDirectory}
				if filter != nil && !filter(e) {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, e)
				continue
			}

			items, err := loc.fs.EnumerateItems(ctx, loc.local, false, nil)
			if err != nil {
				continue
			}
			for e := range items {
				name := e.Path.Name()
				gp := dir.Join(vfs.NewPath(name))
				if e.IsDir && recursive {
					childDirs = append(childDirs, gp)
				}
				if !matchAll {
					ok, merr := doublestar.Match(pattern, name)
					if merr != nil || !ok {
						continue
					}
				}
				if target != vfs.TargetBoth {
					if target == vfs.TargetDirectory && !e.IsDir {
						continue
					}
					if target == vfs.TargetFile && e.IsDir {
						continue
					}
				}
				key := gp.String()
				if _, dup := seen[key]; dup {
					continue
				}
				ee := e
				ee.Path = gp
				if filter != nil && !filter(ee) {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, ee)
			}
		}

		if recursive {
			queue = append(queue, childDirs...)
		}
		level++
	}

	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Path.String(), out[j].Path.String()
		li, lj := strings.ToLower(si), strings.ToLower(sj)
		if li != lj {
			return li < lj
		}
		return si < sj
	})
	return out, nil
}

// mergeSubtree folds the fast-path recursive enumeration of a single
// concrete location into out, prefix-rewriting every entry's path back
// into the global namespace rooted at dir. local is the location's own
// path on its filesystem; it is stripped from each entry before the
// remainder is joined onto dir.
func (m *Mount) mergeSubtree(sub vfs.EntrySeq, dir, local vfs.Path, matchAll bool, pattern string, target vfs.EnumerateTarget, filter func(vfs.Entry) bool, seen map[string]struct{}, out *[]vfs.Entry) {
	for e := range sub {
		rel, inside := splitMount(local, e.Path)
		if !inside {
			continue
		}
		name := e.Path.Name()
		if !matchAll {
			ok, merr := doublestar.Match(pattern, name)
			if merr != nil || !ok {
				continue
			}
		}
		if target != vfs.TargetBoth {
			if target == vfs.TargetDirectory && !e.IsDir {
				continue
			}
			if target == vfs.TargetFile && e.IsDir {
				continue
			}
		}
		gp := dir.Join(rel)
		key := gp.String()
		if _, dup := seen[key]; dup {
			continue
		}
		ee := e
		ee.Path = gp
		if filter != nil && !filter(ee) {
			continue
		}
		seen[key] = struct{}{}
		*out = append(*out, ee)
	}
}

func (m *Mount) EnumeratePaths(ctx context.Context, root vfs.Path, pattern string, recursive bool, target vfs.EnumerateTarget) (vfs.PathSeq, error) {
	entries, err := m.enumerate(ctx, root, pattern, recursive, target, nil)
	if err != nil {
		return nil, err
	}
	return func(yield func(vfs.Path) bool) {
		for _, e := range entries {
			if !yield(e.Path) {
				return
			}
		}
	}, nil
}

func (m *Mount) EnumerateItems(ctx context.Context, root vfs.Path, recursive bool, filter func(vfs.Entry) bool) (vfs.EntrySeq, error) {
	entries, err := m.enumerate(ctx, root, "*", recursive, vfs.TargetBoth, filter)
	if err != nil {
		return nil, err
	}
	return func(yield func(vfs.Entry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}, nil
}
