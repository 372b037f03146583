package runtime

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger tagged with the service name. LOG_LEVEL
// accepts the slog level names (debug, info, warn, error); anything else
// falls back to info.
func NewLogger(service string) *slog.Logger {
	level := slog.LevelInfo
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(raw)); err == nil {
			level = parsed
		}
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", service)
}
