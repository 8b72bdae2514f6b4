// Package logging builds the leveled loggers handed to every component.
package logging

import (
	"os"

	"github.com/jcgregorio/logger"
	"github.com/jcgregorio/slog"
)

// New returns a logger writing to stderr. Debug lines are only emitted when debug is set.
func New(debug bool) slog.Logger {
	return logger.NewFromOptions(&logger.Options{
		SyncWriter:   os.Stderr,
		IncludeDebug: debug,
	})
}

// Nop returns a logger that discards everything.
func Nop() slog.Logger {
	return logger.NewNopLogger()
}
