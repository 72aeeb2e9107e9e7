// Package monitoring carries the diagnostic logger shared by the
// simulation packages. Stages log skipped bands, fit milestones and
// other non-fatal events here rather than writing to stdout directly.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced with SetLogger so tests and batch runs can
// redirect or mute simulation chatter.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Quiet mutes the package logger and returns a function that restores
// the previous logger. Intended for test setup:
//
//	defer monitoring.Quiet()()
func Quiet() func() {
	prev := Logf
	Logf = func(string, ...interface{}) {}
	return func() { Logf = prev }
}
