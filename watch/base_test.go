package watch

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/opencoff/go-vfs"
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

func recv(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev := <-ch:
		return ev, true
	case <-time.After(100 * time.Millisecond):
		return Event{}, false
	}
}

func TestBasicGateFilter(t *testing.T) {
	assert := newAsserter(t)

	b := NewBasic(nil, vfs.NewPath("/docs"), true, 4)
	defer b.Close()
	b.SetFilter("*.txt")

	b.Raise(Event{Kind: Created, FullPath: vfs.NewPath("/docs/a.txt")})
	ev, ok := recv(t, b.Created())
	assert(ok, "a matching .txt create under the watch root must be delivered")
	assert(ev.FullPath.String() == "/docs/a.txt", "delivered event must carry the raised path")

	b.Raise(Event{Kind: Created, FullPath: vfs.NewPath("/docs/a.bin")})
	_, ok = recv(t, b.Created())
	assert(!ok, "a non-matching extension must be filtered out")

	b.Raise(Event{Kind: Created, FullPath: vfs.NewPath("/other/a.txt")})
	_, ok = recv(t, b.Created())
	assert(!ok, "a path outside the watch root must be filtered out")
}

func TestBasicEnableGatesEverythingIncludingErrors(t *testing.T) {
	assert := newAsserter(t)

	b := NewBasic(nil, vfs.Root, true, 4)
	defer b.Close()
	b.Enable(false)
	assert(!b.Enabled(), "Enable(false) must be reflected by Enabled()")

	b.Raise(Event{Kind: Created, FullPath: vfs.NewPath("/a.txt")})
	_, ok := recv(t, b.Created())
	assert(!ok, "a disabled watcher must not raise Created events")

	b.Raise(Event{Kind: Error, Err: fmt.Errorf("boom")})
	_, ok = recv(t, b.Errors())
	assert(!ok, "a disabled watcher must not raise Error events either")

	b.Enable(true)
	b.Raise(Event{Kind: Error, Err: fmt.Errorf("boom")})
	ev, ok := recv(t, b.Errors())
	assert(ok, "an enabled watcher must raise Error events regardless of filter/root")
	assert(ev.Err != nil, "the Error event must carry its error")
}

func TestBasicCloseIsIdempotent(t *testing.T) {
	assert := newAsserter(t)

	b := NewBasic(nil, vfs.Root, true, 0)
	assert(b.Close() == nil, "first Close must succeed")
	assert(b.Close() == nil, "second Close must be a no-op, not a panic")

	done := make(chan struct{})
	go func() {
		b.Raise(Event{Kind: Created, FullPath: vfs.NewPath("/a.txt")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Raise on a closed watcher must not block forever")
	}
}
