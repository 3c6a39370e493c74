package logging

import (
	"log/slog"
	"os"
)

// SetupLogger installs a text slog handler as the default logger. The level
// comes from LOG_LEVEL (debug/info/warn/error), defaulting to info.
func SetupLogger() error {
	level := slog.LevelInfo
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			slog.Error("Invalid LOG_LEVEL", "value", raw, "error", err)
			return err
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))
	return nil
}
