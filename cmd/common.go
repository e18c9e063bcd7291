package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shaharia-lab/cryptodash/internal/build"
	"github.com/shaharia-lab/cryptodash/internal/config"
	"github.com/shaharia-lab/cryptodash/internal/logger"
	"github.com/shaharia-lab/cryptodash/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// newLogger creates the component logger writing to <data>/logs/<component>.log.
func newLogger(cfg *config.AppConfig, component string) (*slog.Logger, io.Closer, error) {
	l, closer, err := logger.New(logger.Options{
		Dir:       cfg.LogDir(),
		Component: component,
		Level:     cfg.SlogLevel(),
		Format:    cfg.LogFormat,
		Stderr:    true,
		OTel:      cfg.OTLPEndpoint != "",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return l, closer, nil
}

func setupTelemetry(ctx context.Context, cfg *config.AppConfig, service string, l *slog.Logger) (telemetry.ShutdownFunc, error) {
	return telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    service,
		ServiceVersion: build.Version,
	}, l)
}

// shutdownTelemetry flushes pending spans and log records, bounded by a short timeout.
func shutdownTelemetry(shutdown telemetry.ShutdownFunc, l *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		l.Warn("flushing telemetry", "error", err)
	}
}

func loadFrontendConfig(cfg *config.AppConfig) (*config.FrontendConfig, error) {
	return config.LoadFrontendConfig(cfg.FrontendConfigFile, cfg.BackendURL)
}
