// Package obs provides the package-level structured logger shared by every
// stage of the race-frame pipeline and the replay engine.
package obs

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-level diagnostic logger. It defaults to a console
// writer but may be replaced wholesale by SetLogger. Tests or production
// code can redirect or silence it.
var Log zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetLogger replaces the package logger. Passing the zero value disables
// output entirely.
func SetLogger(l zerolog.Logger) {
	Log = l
}

// Disabled returns a logger that drops every event, for quiet test runs.
func Disabled() zerolog.Logger {
	return zerolog.Nop()
}
