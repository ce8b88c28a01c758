// Package logging builds the zap logger used across diskly.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	File   string // rotated log file; empty writes to the fallback writer

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig logs info and above as console text.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ParseLevel parses a level name.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New builds a logger. When cfg.File is empty entries go to fallback; a nil
// fallback discards them, which keeps the terminal clean for the interactive
// view. The returned closer flushes and closes any rotated file.
func New(cfg Config, fallback io.Writer) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		sink   zapcore.WriteSyncer
		closer io.Closer
	)
	switch {
	case cfg.File != "":
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		sink = zapcore.AddSync(rotated)
		closer = rotated
	case fallback == nil:
		return zap.NewNop(), func() error { return nil }, nil
	case fallback == os.Stderr || fallback == os.Stdout:
		sink = zapcore.Lock(fallback.(*os.File))
	default:
		sink = zapcore.AddSync(fallback)
	}

	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.New(zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level)),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return logger, func() error {
		_ = logger.Sync()
		if closer != nil {
			return closer.Close()
		}
		return nil
	}, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch format {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or console)", format)
	}
}
