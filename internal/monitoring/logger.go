// Package monitoring holds the process-wide diagnostic logger used by the
// decoder glue, the geometry builder and the sinks.
package monitoring

import "log"

// Logf is the diagnostic logger. It defaults to log.Printf; tests swap it out
// with SetLogger to capture or silence output.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives verbose per-packet lines. It is muted until SetVerbose(true).
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces Logf. A nil function installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose routes Debugf to the current Logf when on, and mutes it when off.
func SetVerbose(on bool) {
	if !on {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = func(format string, v ...interface{}) {
		Logf(format, v...)
	}
}
