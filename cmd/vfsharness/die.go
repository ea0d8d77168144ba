// die.go -- fatal error reporting
//
// Grounded on the teacher's testsuite/panicf.go message-formatting
// idiom, but exits instead of panicking: vfsharness is a CLI, and a
// panic's stack trace is noise a script author doesn't want.

package main

import (
	"fmt"
	"os"
)

func Die(s string, v ...interface{}) {
	z := fmt.Sprintf("%s: %s", os.Args[0], s)
	m := fmt.Sprintf(z, v...)
	if n := len(m); n == 0 || m[n-1] != '\n' {
		m += "\n"
	}
	fmt.Fprint(os.Stderr, m)
	os.Exit(1)
}
