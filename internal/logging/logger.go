// Package logging builds the zap loggers used across platesolve.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the level and sinks of the logger.
type Options struct {
	Level string // debug, info, warn, error; empty means info
	File  string // optional JSON log file, appended to
	Quiet bool   // drop the stderr sink, e.g. while a TUI owns the terminal
}

// New builds a production JSON logger. With Quiet set and no File, the
// logger discards everything.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if trimmed := strings.TrimSpace(opts.Level); trimmed != "" {
		parsed, err := zapcore.ParseLevel(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var outputs []string
	if !opts.Quiet {
		outputs = append(outputs, "stderr")
	}
	if file := strings.TrimSpace(opts.File); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		outputs = append(outputs, file)
	}
	if len(outputs) == 0 {
		return zap.NewNop(), nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	return cfg.Build()
}

// WithOperation enriches the logger with operation and run identifiers.
func WithOperation(logger *zap.Logger, operation, runID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	return logger.With(fields...)
}
