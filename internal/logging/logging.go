// Package logging builds the process logger: a console writer on stderr
// plus an optional rotating JSON file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the "log" configuration section.
type Config struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	NoColor    bool   `mapstructure:"no_color"`
	// Quiet drops the console writer, keeping only the file.
	Quiet bool `mapstructure:"quiet"`
}

// New returns the root logger and a closer for the log file. An invalid
// level falls back to info.
func New(cfg Config, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + fmt.Sprintf("%d", line)
	}

	var writers []io.Writer
	if !cfg.Quiet && console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:           console,
			TimeFormat:    time.TimeOnly,
			NoColor:       cfg.NoColor,
			FieldsExclude: []string{"component"},
		})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
		closer = file
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("pid", fmt.Sprintf("%d", os.Getpid())).
		Logger()

	logger.Debug().
		Str("component", "logging").
		Str("level", level.String()).
		Str("log_file", cfg.File).
		Msg("logger initialized")
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
