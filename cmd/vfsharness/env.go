// env.go -- the runtime environment of one script run
//
// Grounded on the teacher's testsuite/run.go TestEnv: a per-run logger
// plus whatever state the script builds up. Retargeted from two real
// on-disk trees (lhs/rhs) + cmp.Tree diffing to a registry of
// in-memory vfs.FileSystem objects (leaves and composers alike, since
// every one of them implements the same vfs.FileSystem surface) plus
// named snapshots that "watch" and "list" populate and "expect" checks.

package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	logger "github.com/opencoff/go-logger"
	"github.com/opencoff/go-vfs"
)

// Env is the runtime state threaded through one script's verbs.
type Env struct {
	name string
	log  logger.Logger

	mu   sync.Mutex
	objs map[string]vfs.FileSystem

	snapMu    sync.Mutex
	snapshots map[string][]string

	closers []func()
}

// NewEnv builds the environment for one script run: a go-logger
// instance (per testsuite/run.go's makeEnv, stripped of the
// lhs/rhs/cmp.Tree machinery this module has no use for) and empty
// object/snapshot registries.
func NewEnv(name string, logStdout bool) (*Env, error) {
	dest := name + ".log"
	if logStdout {
		dest = "STDOUT"
	}
	log, err := logger.NewLogger(dest, logger.LOG_DEBUG, name,
		logger.Ldate|logger.Ltime|logger.Lmicroseconds)
	if err != nil {
		return nil, fmt.Errorf("%s: logfile: %w", name, err)
	}

	return &Env{
		name:      name,
		log:       log,
		objs:      make(map[string]vfs.FileSystem),
		snapshots: make(map[string][]string),
	}, nil
}

// Close tears down every watcher the script started and closes the
// log, in the spirit of RunTest's deferred cleanup.
func (e *Env) Close() {
	for _, c := range e.closers {
		c()
	}
	e.log.Close()
}

func (e *Env) addCloser(f func()) {
	e.closers = append(e.closers, f)
}

func (e *Env) put(name string, fs vfs.FileSystem) {
	e.mu.Lock()
	e.objs[name] = fs
	e.mu.Unlock()
}

func (e *Env) get(name string) (vfs.FileSystem, error) {
	e.mu.Lock()
	fs, ok := e.objs[name]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("undefined object %q", name)
	}
	return fs, nil
}

func (e *Env) setSnapshot(name string, vals []string) {
	sort.Strings(vals)
	e.snapMu.Lock()
	e.snapshots[name] = vals
	e.snapMu.Unlock()
}

func (e *Env) appendSnapshot(name, val string) {
	e.snapMu.Lock()
	e.snapshots[name] = append(e.snapshots[name], val)
	e.snapMu.Unlock()
}

func (e *Env) snapshot(name string) ([]string, bool) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	v, ok := e.snapshots[name]
	return v, ok
}

// waitSnapshot polls for name to accumulate at least wantLen entries,
// up to timeout, before returning whatever it has. Watch-driven
// snapshots are filled by a goroutine draining the watcher's channels,
// so "expect" right after a mutating verb must tolerate that delivery
// lag rather than read a snapshot that just hasn't caught up yet.
func (e *Env) waitSnapshot(name string, wantLen int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	for {
		v, _ := e.snapshot(name)
		if len(v) >= wantLen || time.Now().After(deadline) {
			out := make([]string, len(v))
			copy(out, v)
			sort.Strings(out)
			return out
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// vlogAdapter satisfies vfs.Logger over a concrete logger.Logger,
// rather than relying on the two interfaces being structurally
// identical - go-logger's Logger carries more methods than this
// module's composers need.
type vlogAdapter struct{ log logger.Logger }

func (v vlogAdapter) Debug(format string, a ...interface{}) { v.log.Debug(format, a...) }
func (v vlogAdapter) Info(format string, a ...interface{})  { v.log.Info(format, a...) }

func (e *Env) vfsLogger() vfs.Logger {
	return vlogAdapter{log: e.log}
}
