// Package logger builds the process-wide slog.Logger.
//
// Terminals get colourised tint output, everything else JSON. When a log file is
// configured, output is duplicated into a size-rotated file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"dunning/internal/platform/config"
)

// New returns a structured logger for cfg along with a closer for the rotating file.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	level := ParseLevel(cfg.Level)

	var closer io.Closer = nopCloser{}
	var out io.Writer = os.Stdout
	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		closer = file
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if isatty.IsTerminal(os.Stdout.Fd()) {
			format = "tint"
		}
	}

	var handler slog.Handler
	switch format {
	case "tint":
		console := tint.NewHandler(out, &tint.Options{Level: level, TimeFormat: time.Kitchen})
		if file == nil {
			handler = console
		} else {
			handler = fanout{console, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})}
		}
	case "text":
		if file != nil {
			out = io.MultiWriter(out, file)
		}
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	default:
		if file != nil {
			out = io.MultiWriter(out, file)
		}
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler), closer
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
