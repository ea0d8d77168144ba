// main.go -- vfsharness: a script-driven dev/test harness for the
// composition core (spec.md §8's testable properties, exercised
// end-to-end against in-memory trees instead of go test's unit cases).
//
// Ported from the teacher's testsuite/main.go: same pflag-based CLI
// shape, same serial-vs-parallel worker-pool execution of multiple
// scripts. Retargeted from real temp directories + cmp.DirTree
// diffing to vfstest.MemFS trees driven by the mkfs/mount/agg/sub/
// watch/list/expect DSL in verbs.go.

package main

import (
	"errors"
	"os"
	"path"
	"runtime"
	"sync"

	flag "github.com/opencoff/pflag"
)

var Z = path.Base(os.Args[0])

func main() {
	var help, serial, stdout bool
	var ncpu int

	fs := flag.NewFlagSet(Z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit [False]")
	fs.BoolVarP(&serial, "serial", "s", false, "Run scripts serially [False]")
	fs.BoolVarP(&stdout, "log-stdout", "", false, "Put log output to STDOUT [False]")
	fs.IntVarP(&ncpu, "concurrency", "c", runtime.NumCPU(), "Use upto `N` goroutines for parallel scripts")
	fs.SetOutput(os.Stdout)

	if err := fs.Parse(os.Args[1:]); err != nil {
		Die("%s", err)
	}
	if help {
		usage(fs)
	}

	args := fs.Args()
	if len(args) == 0 {
		Die("Usage: %s [options] script.vfs [script.vfs...]", Z)
	}

	var err error
	if serial {
		err = runSerial(args, stdout)
	} else {
		err = runParallel(args, stdout, ncpu)
	}
	if err != nil {
		Die("%s", err)
	}
}

func runOne(fn string, stdout bool) error {
	name := path.Base(fn)
	env, err := NewEnv(name, stdout)
	if err != nil {
		return err
	}
	defer env.Close()

	return RunScript(env, fn)
}

func runSerial(args []string, stdout bool) error {
	for _, fn := range args {
		if err := runOne(fn, stdout); err != nil {
			return err
		}
	}
	return nil
}

// runParallel mirrors the teacher's parallelize: a bounded pool of
// worker goroutines drains a work channel, harvesting errors on a
// second goroutine so producers never block on a full error channel.
func runParallel(args []string, stdout bool, ncpu int) error {
	if ncpu < 1 {
		ncpu = 1
	}

	ch := make(chan string, ncpu)
	ech := make(chan error, 1)

	var ewg, wg sync.WaitGroup
	var errs []error

	ewg.Add(1)
	go func() {
		for e := range ech {
			errs = append(errs, e)
		}
		ewg.Done()
	}()

	go func() {
		for _, fn := range args {
			ch <- fn
		}
		close(ch)
	}()

	wg.Add(ncpu)
	for i := 0; i < ncpu; i++ {
		go func() {
			defer wg.Done()
			for fn := range ch {
				if err := runOne(fn, stdout); err != nil {
					ech <- err
				}
			}
		}()
	}
	wg.Wait()
	close(ech)
	ewg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	os.Stdout.WriteString(usageStr)
	fs.PrintDefaults()
	os.Exit(1)
}

var usageStr = `vfsharness - script-driven harness for the go-vfs composition core.

Scripts are a small DSL, one verb per line:
  mkfs new <name>
  mkfs dir <name> <path>
  mkfs file <name> <path> [size=N] [text="..."]
  mount new <name> [fallback=<fsobj>]
  mount add <name> <prefix> <fsobj>
  agg new <name> [fallback=<fsobj>]
  agg push <name> <fsobj>
  sub new <name> <fsobj> <path>
  watch <name> <fsobj> <path>
  list <name> <fsobj> <root> [pattern=*] [recursive=false] [target=both]
  expect <snapshot>="want1 want2" [<snapshot2>="..."]

Usage: vfsharness [options] script.vfs [script.vfs...]

Options:
`
