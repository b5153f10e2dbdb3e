package monitoring

import (
	"io"
	"log"
	"os"
)

// Logf is the package-level logger for command glue (file loading, output
// paths, exit reasons). It defaults to a "[track] " prefixed logger on
// stderr and may be replaced by SetLogger or SetOutput.
var Logf func(format string, v ...interface{}) = log.New(os.Stderr, "[track] ", log.LstdFlags).Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetOutput points Logf at w with the standard prefix. Passing nil mutes it.
func SetOutput(w io.Writer) {
	if w == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(w, "[track] ", log.LstdFlags).Printf)
}
