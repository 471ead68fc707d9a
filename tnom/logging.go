package tnom

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide structured logger. Every long-lived
// component is handed a reference to it (or a sub-logger with extra
// fields) rather than reaching for a package-level global, mirroring
// how the rest of this package threads Config through instead of
// relying on process state.
func NewLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()
}
