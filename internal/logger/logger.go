// Package logger configures the process-wide slog logger: a plain text
// handler for development and a sampled zap JSON core for production.
package logger

import "log/slog"

type Backend string

const (
	BackendStd Backend = "std" // text handler, dev
	BackendZap Backend = "zap" // JSON via slog-zap, prod
)

type Config struct {
	Service   string
	Version   string
	Env       string // dev|prod
	Backend   Backend
	Level     slog.Level
	Debug     bool
	AddSource bool
}

// Init installs the configured handler as the slog default.
func Init(cfg Config) {
	if cfg.Service == "" {
		cfg.Service = "game-server"
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Backend == "" {
		if cfg.Env == "dev" {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	})

	slog.SetDefault(slog.New(h))
}
