// split.go -- split a string of the form key="a b c" into a tuple of
// <key, [a, b, c]>
//
// Ported near-verbatim from the teacher's testsuite/split.go.

package main

import (
	"fmt"
	"strings"

	"github.com/opencoff/shlex"
)

// Split parses a string of the form key="a b c" and returns
// <key, []string{a, b, c}>.
func Split(s string) (string, []string, error) {
	i := strings.Index(s, "=")
	if i < 0 {
		return "", nil, fmt.Errorf("%s: missing separator '='", s)
	}

	key := strings.ToLower(s[:i])

	v := strings.TrimSpace(s[i+1:])
	if n := len(v); n >= 2 && v[0] == '"' && v[n-1] == '"' {
		v = v[1 : n-1]
	}
	val, err := shlex.Split(v)
	return key, val, err
}
