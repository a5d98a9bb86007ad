// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the root logger.
type Options struct {
	Level string
	// JSON selects line-delimited JSON instead of the console writer.
	JSON bool
	// File, when set, receives the logs instead of Out.
	File string
	// Out defaults to stderr.
	Out io.Writer
	// Discard drops everything unless File is set. The terminal UI uses
	// it so log lines never tear the screen.
	Discard bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns the root logger and a closer for its log file.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parsing log level: %w", err)
		}
		level = l
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.Out != nil {
		out = opts.Out
	}

	switch {
	case opts.File != "":
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closer = f, f
	case opts.Discard:
		return zerolog.Nop(), closer, nil
	}

	if !opts.JSON && opts.File == "" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("app", "treewatch").
		Logger()
	return logger, closer, nil
}
