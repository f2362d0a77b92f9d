// Package errlog keeps the operator-facing failure log: an append-only text file
// with one line per failed grading or import step.
package errlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Log appends failure lines to a single file.
type Log struct {
	logger zerolog.Logger
	closer io.Closer
	once   sync.Once
}

// Open opens (or creates) the log file at path in append mode.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create error log dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}

	log := New(file)
	log.closer = file
	return log, nil
}

// New writes failure lines to w. Writes are serialised so concurrent failures never share a line.
func New(w io.Writer) *Log {
	console := zerolog.ConsoleWriter{
		Out:        zerolog.SyncWriter(w),
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}

	return &Log{logger: zerolog.New(console).With().Timestamp().Logger()}
}

// Nop discards every line.
func Nop() *Log {
	return &Log{logger: zerolog.Nop()}
}

// Record appends one line containing msg and any key/value context.
func (l *Log) Record(msg string, fields map[string]interface{}) {
	if l == nil {
		return
	}
	l.logger.Error().Fields(fields).Msg(msg)
}

// Recordf appends one formatted line.
func (l *Log) Recordf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Error().Msgf(format, args...)
}

// Close releases the underlying file when the log owns one.
func (l *Log) Close() error {
	var err error
	l.once.Do(func() {
		if l.closer != nil {
			err = l.closer.Close()
		}
	})
	return err
}
