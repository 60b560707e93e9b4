// Package logger builds the zerolog loggers shared by the painel binaries.
// Servers log JSON to stdout; the CLI logs to stderr so its own output stays
// clean for pipes.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var global = zerolog.Nop()

// Init configures the process-wide logger on stdout, used by the server and
// the worker
func Init(level, format string) {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	global = New(os.Stdout, level, format).With().Caller().Logger()
	log.Logger = global
}

// New builds a logger writing to w. Format "json" emits one JSON object per
// line, anything else the human console format, colored only on a terminal.
func New(w io.Writer, level, format string) zerolog.Logger {
	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    w != os.Stdout && w != os.Stderr,
		}
	}

	return zerolog.New(out).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Logger()
}

// parseLogLevel accepts zerolog level names plus "warning". Unknown or empty
// levels fall back to info.
func parseLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}

	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

// GetLogger returns the logger configured by Init, or a no-op logger before
// Init is called
func GetLogger() zerolog.Logger {
	return global
}
