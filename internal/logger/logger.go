// Package logger provides structured slog loggers for the cryptodash
// processes. Each process writes to its own rotated file under the log
// directory and mirrors every record to stderr:
//
//	<logDir>/gateway.log   frontend gateway (bundle and rewrites)
//	<logDir>/backend.log   backend API service
//
// With OTel set, records are also handed to the global OpenTelemetry
// logger provider, which telemetry.Setup points at the OTLP collector.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// stderr is replaced in tests.
var stderr io.Writer = os.Stderr

// Options controls logger construction.
type Options struct {
	// Dir is the log directory. Empty disables the log file.
	Dir string
	// Component names the log file and is attached to every record.
	Component string
	Level     slog.Level
	// Format is "json" (default) or "text".
	Format string
	// Stderr mirrors records to standard error.
	Stderr bool
	// OTel bridges records to the global OpenTelemetry logger provider.
	OTel bool
}

// New creates a slog.Logger according to opts. The returned io.Closer
// releases the log file and must be called on shutdown.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("creating log directory %q: %w", opts.Dir, err)
		}
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, opts.Component+".log"),
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		writers = append(writers, lj)
		closer = lj
	}
	if opts.Stderr || len(writers) == 0 {
		writers = append(writers, stderr)
	}

	handler := newHandler(io.MultiWriter(writers...), opts.Format, opts.Level)
	if opts.OTel {
		handler = &fanout{
			level: opts.Level,
			handlers: []slog.Handler{
				handler,
				otelslog.NewHandler("github.com/shaharia-lab/cryptodash/" + opts.Component),
			},
		}
	}
	l := slog.New(handler)
	if opts.Component != "" {
		l = l.With("component", opts.Component)
	}
	return l, closer, nil
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
