// script.go -- tokenize and run a vfsharness DSL script
//
// A script is a text file, one verb invocation per line. Blank lines
// and lines starting with '#' are ignored. Each line is tokenized with
// the same shlex.Split the teacher's testsuite uses for "key=\"a b c\""
// arguments (split.go), so an argument can itself carry embedded
// spaces inside quotes.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/opencoff/shlex"
)

// RunScript reads fn line by line and runs each as a verb invocation
// against env, stopping at the first error.
func RunScript(env *Env, fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		toks, err := shlex.Split(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", fn, lineno, err)
		}
		if len(toks) == 0 {
			continue
		}

		env.log.Debug("%s:%d: %s", fn, lineno, line)
		if err := RunVerb(env, toks[0], toks[1:]); err != nil {
			return fmt.Errorf("%s:%d: %s: %w", fn, lineno, toks[0], err)
		}
	}
	return sc.Err()
}
