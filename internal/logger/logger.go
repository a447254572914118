// Package logger provides leveled structured logging backed by zerolog.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.Nop()

// Init initializes the default logger with the specified level and format.
// Format "text" writes human-readable console output; anything else writes JSON.
func Init(level string, format string) {
	var lvl zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.InfoLevel
	}

	var l zerolog.Logger
	if strings.ToLower(format) == "text" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		l = zerolog.New(os.Stderr)
	}
	defaultLogger = l.Level(lvl).With().Timestamp().Logger()
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug().Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info().Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error().Msgf(format, args...)
}

// Fatal logs the message and exits the process.
func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal().Msgf(format, args...)
}
