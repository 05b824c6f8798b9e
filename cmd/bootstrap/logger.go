package bootstrap

import (
	"log/slog"

	"billiard-hall/internal/pkg/config"
	"billiard-hall/internal/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

var LoggerModule = fx.Module("logger",
	fx.Provide(
		NewLogger,
	),
)

func NewLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log)
}

// NewFxLogger routes fx's own lifecycle events through the process logger.
func NewFxLogger(l *slog.Logger) fxevent.Logger {
	return &fxevent.SlogLogger{Logger: l}
}
