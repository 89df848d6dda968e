package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger that stamps trace and span ids on records
// logged with a traced context. Verbose loggers emit debug records.
func NewLogger(verbose bool) *slog.Logger {
	return newLogger(os.Stdout, verbose)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo

	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(withTraceIDs(handler))
}
