package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/tracelog"
)

// queryTracer logs every statement pgx runs. Query failures surface at Warn;
// everything else is Debug so it only shows in verbose mode.
func queryTracer(log *slog.Logger) *tracelog.TraceLog {
	return &tracelog.TraceLog{
		Logger:   tracelog.LoggerFunc(slogQueryLogger(log)),
		LogLevel: tracelog.LogLevelDebug,
	}
}

func slogQueryLogger(log *slog.Logger) func(context.Context, tracelog.LogLevel, string, map[string]any) {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]slog.Attr, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, slog.Any(k, v))
		}

		log.LogAttrs(ctx, slogLevel(level), "pgx: "+msg, attrs...)
	}
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelError, tracelog.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
