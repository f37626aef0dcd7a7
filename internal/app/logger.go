package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Deployments set LOG_FORMAT=json
// for log ingestion; the text handler is for local terminals.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "dairyops"))
}
