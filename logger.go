package vfs

// Logger is the minimal structured-logging surface the composers accept
// for reporting topology changes (mount/unmount, stack add/remove).
// It is satisfied by *github.com/opencoff/go-logger.Logger
// without that package being a dependency of this one - only
// cmd/vfsharness imports go-logger concretely (SPEC_FULL.md §5).
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
}
