// verbs.go -- the vfsharness DSL verb set
//
// Grounded on the teacher's testsuite/cmd_mkfile.go and cmd_expect.go:
// same two-shape split (one command builds a tree, another asserts a
// diff-like set), same key="a b c" argument style parsed with Split
// (split.go), but retargeted from real directories + cmp.DirTree to
// vfstest.MemFS trees, the three composers, and the Watcher surface.

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/opencoff/go-vfs"
	"github.com/opencoff/go-vfs/aggregate"
	"github.com/opencoff/go-vfs/mount"
	"github.com/opencoff/go-vfs/sub"
	"github.com/opencoff/go-vfs/vfstest"
	"github.com/opencoff/go-vfs/watch"
)

// RunVerb dispatches one DSL line (verb + its remaining arguments).
func RunVerb(env *Env, verb string, args []string) error {
	switch verb {
	case "mkfs":
		return runMkfs(env, args)
	case "mount":
		return runMount(env, args)
	case "agg":
		return runAgg(env, args)
	case "sub":
		return runSub(env, args)
	case "watch":
		return runWatch(env, args)
	case "list":
		return runList(env, args)
	case "expect":
		return runExpect(env, args)
	default:
		return fmt.Errorf("unknown verb %q", verb)
	}
}

// kv parses the "key=value..." trailing arguments of a verb (the same
// shape Split expects) into a map, joining the values of each key with
// single spaces (so text="a b" stays one string); a repeated key keeps
// its last occurrence. That covers the flags (size=, text=, pattern=,
// recursive=, target=, fallback=) every verb below uses.
func kv(args []string) (map[string]string, error) {
	m := make(map[string]string)
	for _, a := range args {
		key, vals, err := Split(a)
		if err != nil {
			return nil, err
		}
		m[key] = strings.Join(vals, " ")
	}
	return m, nil
}

// --- mkfs ---------------------------------------------------------------

func runMkfs(env *Env, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: mkfs new|dir|file <name> [path] [opts...]")
	}
	kind, rest := args[0], args[1:]
	switch kind {
	case "new":
		name := rest[0]
		env.put(name, vfstest.New())
		return nil

	case "dir":
		if len(rest) < 2 {
			return fmt.Errorf("usage: mkfs dir <name> <path>")
		}
		fs, err := env.get(rest[0])
		if err != nil {
			return err
		}
		return fs.CreateDirectory(context.Background(), vfs.NewPath(rest[1]))

	case "file":
		if len(rest) < 2 {
			return fmt.Errorf("usage: mkfs file <name> <path> [size=N] [text=...]")
		}
		fs, err := env.get(rest[0])
		if err != nil {
			return err
		}
		mfs, ok := fs.(*vfstest.MemFS)
		if !ok {
			return fmt.Errorf("%s: not a leaf filesystem (mkfs file only targets vfstest.MemFS)", rest[0])
		}
		opts, err := kv(rest[2:])
		if err != nil {
			return err
		}
		var data []byte
		if text, ok := opts["text"]; ok {
			data = []byte(text)
		} else {
			sz := SizeValue(1024)
			if s, ok := opts["size"]; ok {
				if err := sz.Set(s); err != nil {
					return fmt.Errorf("size=%s: %w", s, err)
				}
			}
			data = make([]byte, sz.Value())
			for i := range data {
				data[i] = byte(rand.IntN(256))
			}
		}
		return vfstest.WriteFile(mfs, vfs.NewPath(rest[1]), data)

	default:
		return fmt.Errorf("mkfs: unknown subcommand %q", kind)
	}
}

// --- mount ---------------------------------------------------------------

func runMount(env *Env, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: mount new|add <name> ...")
	}
	verb, rest := args[0], args[1:]
	switch verb {
	case "new":
		name := rest[0]
		opts, err := kv(rest[1:])
		if err != nil {
			return err
		}
		var fallback vfs.FileSystem
		if fbName, ok := opts["fallback"]; ok {
			fallback, err = env.get(fbName)
			if err != nil {
				return err
			}
		}
		m := mount.New(fallback)
		mount.WithLogger(m, env.vfsLogger())
		env.put(name, m)
		env.addCloser(func() { m.Close() })
		return nil

	case "add":
		if len(rest) < 3 {
			return fmt.Errorf("usage: mount add <name> <prefix> <fsobj>")
		}
		obj, err := env.get(rest[0])
		if err != nil {
			return err
		}
		m, ok := obj.(*mount.Mount)
		if !ok {
			return fmt.Errorf("%s: not a mount.Mount", rest[0])
		}
		inner, err := env.get(rest[2])
		if err != nil {
			return err
		}
		return m.Mount(context.Background(), vfs.NewPath(rest[1]), inner)

	default:
		return fmt.Errorf("mount: unknown subcommand %q", verb)
	}
}

// --- agg -------------------------------------------------------------

func runAgg(env *Env, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: agg new|push <name> ...")
	}
	verb, rest := args[0], args[1:]
	switch verb {
	case "new":
		name := rest[0]
		opts, err := kv(rest[1:])
		if err != nil {
			return err
		}
		var fallback vfs.FileSystem
		if fbName, ok := opts["fallback"]; ok {
			fallback, err = env.get(fbName)
			if err != nil {
				return err
			}
		}
		a, err := aggregate.New(fallback)
		if err != nil {
			return err
		}
		aggregate.WithLogger(a, env.vfsLogger())
		env.put(name, a)
		env.addCloser(func() { a.Close() })
		return nil

	case "push":
		if len(rest) < 2 {
			return fmt.Errorf("usage: agg push <name> <fsobj>")
		}
		obj, err := env.get(rest[0])
		if err != nil {
			return err
		}
		a, ok := obj.(*aggregate.Aggregate)
		if !ok {
			return fmt.Errorf("%s: not an aggregate.Aggregate", rest[0])
		}
		inner, err := env.get(rest[1])
		if err != nil {
			return err
		}
		return a.AddFilesystem(context.Background(), inner)

	default:
		return fmt.Errorf("agg: unknown subcommand %q", verb)
	}
}

// --- sub -------------------------------------------------------------

func runSub(env *Env, args []string) error {
	if len(args) < 4 || args[0] != "new" {
		return fmt.Errorf("usage: sub new <name> <fsobj> <path>")
	}
	name, fsName, p := args[1], args[2], args[3]
	delegate, err := env.get(fsName)
	if err != nil {
		return err
	}
	s, err := sub.New(context.Background(), delegate, vfs.NewPath(p))
	if err != nil {
		return err
	}
	env.put(name, s)
	return nil
}

// --- watch -------------------------------------------------------------

// runWatch starts a watcher on <fsobj> rooted at <path> and spawns a
// goroutine that appends every delivered event's path into per-kind
// snapshots ("<name>.created", "<name>.changed", "<name>.deleted",
// "<name>.renamed"), which "expect" later asserts against.
func runWatch(env *Env, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: watch <name> <fsobj> <path>")
	}
	name, fsName, p := args[0], args[1], args[2]
	fs, err := env.get(fsName)
	if err != nil {
		return err
	}
	w, err := fs.Watch(context.Background(), vfs.NewPath(p))
	if err != nil {
		return err
	}
	cw, ok := w.(watch.Watcher)
	if !ok {
		w.Close()
		return fmt.Errorf("%s: Watch did not return a watch.Watcher", fsName)
	}
	env.addCloser(func() { cw.Close() })

	drain := func(kind string, ch <-chan watch.Event) {
		for ev := range ch {
			env.appendSnapshot(name+"."+kind, ev.FullPath.String())
		}
	}
	go drain("created", cw.Created())
	go drain("changed", cw.Changed())
	go drain("deleted", cw.Deleted())
	go drain("renamed", cw.Renamed())
	return nil
}

// --- list -------------------------------------------------------------

func runList(env *Env, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: list <name> <fsobj> <root> [pattern=*] [recursive=false] [target=both]")
	}
	name, fsName, root := args[0], args[1], args[2]
	fs, err := env.get(fsName)
	if err != nil {
		return err
	}
	opts, err := kv(args[3:])
	if err != nil {
		return err
	}
	pattern := "*"
	if v, ok := opts["pattern"]; ok {
		pattern = v
	}
	recursive := false
	if v, ok := opts["recursive"]; ok {
		recursive, err = strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("recursive=%s: %w", v, err)
		}
	}
	target := vfs.TargetBoth
	switch opts["target"] {
	case "file":
		target = vfs.TargetFile
	case "dir", "directory":
		target = vfs.TargetDirectory
	}

	seq, err := fs.EnumeratePaths(context.Background(), vfs.NewPath(root), pattern, recursive, target)
	if err != nil {
		return err
	}
	var got []string
	for p := range seq {
		got = append(got, p.String())
	}
	env.setSnapshot(name, got)
	return nil
}

// --- expect -------------------------------------------------------------

// runExpect checks each "snapshot=\"a b c\"" argument against the named
// snapshot ("list" result, or "<watch-name>.<kind>"), the same
// set-equality check the teacher's cmd_expect.go match() performs over
// its fixed ld/lf/rd/rf/cd/cf/diff/funny keys, generalized to whichever
// snapshot names the script has registered.
func runExpect(env *Env, args []string) error {
	for _, a := range args {
		key, want, err := Split(a)
		if err != nil {
			return err
		}
		have := env.waitSnapshot(key, len(want), 2*time.Second)
		if err := matchSet(key, want, have); err != nil {
			return err
		}
	}
	return nil
}

func matchSet(key string, want, have []string) error {
	if len(want) != len(have) {
		return fmt.Errorf("%s: expected %d entries %v, have %d %v", key, len(want), want, len(have), have)
	}
	h := make(map[string]bool, len(have))
	for _, s := range have {
		h[s] = true
	}
	for _, s := range want {
		if !h[s] {
			return fmt.Errorf("%s: expected to see %q, have %v", key, s, have)
		}
	}
	return nil
}
