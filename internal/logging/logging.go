package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Hasnainmunshi/diagnostic-management/internal/config"
)

// New builds the process logger. Dev gets a console writer, everything else JSON.
// When a log file is configured, output fans out to stdout and a rotating file.
func New(cfg config.Config, service string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if cfg.Logging.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   true,
		})
	}

	return zerolog.New(out).
		Level(parseLevel(cfg.Logging.Level)).
		With().
		Timestamp().
		Str("service", service).
		Str("env", cfg.Env).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
