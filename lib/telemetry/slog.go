package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the process-wide slog handler: human-readable text
// for CLIs, JSON for anything feeding a log collector.
func InitSlog(pretty bool) {
	var handler slog.Handler
	if pretty {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	slog.SetDefault(slog.New(handler))
}
