package monitoring

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logf is the package-level diagnostic logger. It defaults to logrus at info
// level but may be replaced by SetLogger. Tests or production code can
// redirect or mute it.
var Logf func(format string, v ...interface{}) = logrus.Infof

// Debugf is the verbose counterpart of Logf, used for per-sample detail such
// as skipped synchronizer lookups.
var Debugf func(format string, v ...interface{}) = logrus.Debugf

// SetLogger replaces Logf. Debugf keeps its sink, so per-sample detail does
// not reach f; use SetDebugLogger for that. Passing nil mutes both.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		Debugf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLogger replaces Debugf. Passing nil mutes it.
func SetDebugLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Debugf = f
}

// SetLevel parses a logrus level name ("debug", "info", "warn", ...) and
// applies it to the standard logrus logger.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	return nil
}
