// Package logger builds the process logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// Level is a zerolog level name. Unknown names fall back to info.
	Level string

	// Format is "json" or "pretty" for human-readable console output.
	Format string

	// File, when set, also writes JSON logs to a rotated file.
	File string

	// Out is the console destination. Defaults to stderr so command output
	// on stdout stays clean.
	Out io.Writer
}

// Setup initializes the logger. The returned closer flushes the log file
// and must be called on exit.
func Setup(opts Options) (zerolog.Logger, io.Closer) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer = out
	if opts.Format == "pretty" {
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var closer io.Closer = nopCloser{}
	writer := console
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	log := zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return log, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
