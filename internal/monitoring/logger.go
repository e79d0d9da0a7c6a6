package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with a "warning:" prefix. Used for invariant
// violations that are reported but do not abort processing.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}

// ClipLogger returns a Logf-compatible function that prefixes every message
// with the clip source name, so concurrent clips stay distinguishable.
func ClipLogger(source string) func(format string, v ...interface{}) {
	prefix := fmt.Sprintf("[%s] ", source)
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
