// Package logger configures the process-wide zerolog logger from LOG_LEVEL
// and LOG_FORMAT.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

func Init() zerolog.Logger {
	return InitWithWriter(os.Stdout)
}

// InitWithWriter builds the logger from the environment, installs it as the
// zerolog global and returns it.
func InitWithWriter(w io.Writer) zerolog.Logger {
	Logger = New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), w)
	zlog.Logger = Logger
	return Logger
}

// New returns a logger writing to w. An unknown or empty level means info;
// format is "json" or "console" (the default).
func New(level, format string, w io.Writer) zerolog.Logger {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if format == "json" {
		return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger().Level(lvl)
}
