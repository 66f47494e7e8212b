package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger: pretty console output in development, JSON otherwise.
// Unknown level names fall back to info.
func New(env, level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
			Level(lvl).
			With().
			Timestamp().
			Caller().
			Logger()
	}
	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Init sets process-wide zerolog options and returns the stdout logger.
func Init(env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return New(env, level, os.Stdout)
}
