// Package logging builds the loggers ghpsync components write to.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/h0rv/ghpsync/internal/config"
)

// Output is a log destination shared by every component logger.
type Output struct {
	w      io.Writer
	closer io.Closer
}

// NewOutput returns the destination cfg asks for: a rotated file when
// cfg.File is set, otherwise fallback. A nil fallback discards output, which
// is what the board wants while it owns the terminal.
func NewOutput(cfg config.LogConfig, fallback io.Writer) *Output {
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		return &Output{w: lj, closer: lj}
	}
	if fallback == nil {
		fallback = io.Discard
	}
	return &Output{w: fallback}
}

// Stderr returns an Output for cfg that falls back to standard error.
func Stderr(cfg config.LogConfig) *Output {
	return NewOutput(cfg, os.Stderr)
}

// Logger returns a logger writing to o with a "[component] " prefix.
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying destination.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Close closes the log file, if any.
func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
