package main

import (
	"fmt"
	"runtime"
	"testing"
)

func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}
		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}
		s := fmt.Sprintf(msg, args...)
		t.Fatalf("\n%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

func TestBasicScript(t *testing.T) {
	assert := newAsserter(t)

	env, err := NewEnv("basic", true)
	assert(err == nil, "NewEnv: %s", err)
	defer env.Close()

	err = RunScript(env, "testdata/basic.vfs")
	assert(err == nil, "RunScript: %s", err)
}

func TestSplit(t *testing.T) {
	assert := newAsserter(t)

	key, vals, err := Split(`want="a.txt b.txt"`)
	assert(err == nil, "split: %s", err)
	assert(key == "want", "expected key 'want', got %q", key)
	assert(len(vals) == 2 && vals[0] == "a.txt" && vals[1] == "b.txt", "expected [a.txt b.txt], got %v", vals)

	_, _, err = Split("no-separator")
	assert(err != nil, "expected an error for a token with no '='")
}

func TestMatchSet(t *testing.T) {
	assert := newAsserter(t)

	assert(matchSet("k", []string{"a", "b"}, []string{"b", "a"}) == nil, "order must not matter")
	assert(matchSet("k", []string{"a"}, []string{"a", "b"}) != nil, "extra entries must fail")
	assert(matchSet("k", []string{"a", "b"}, []string{"a"}) != nil, "missing entries must fail")
}
