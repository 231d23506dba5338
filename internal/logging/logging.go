// Package logging builds the process-wide zap logger. The config
// surface (JSON vs console, level) and construction pattern follow the
// ambient logging setup used across the corpus: zap.NewProductionConfig
// for the machine-readable format, zap.NewDevelopmentConfig with a
// colored level encoder and short timestamps for local console use.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// New builds a *zap.Logger for the given format and level name (one of
// "debug", "info", "warn", "error"). An empty level defaults to "info".
func New(format Format, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
	}

	switch format {
	case FormatJSON, "":
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build()
	case FormatConsole:
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return cfg.Build()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
