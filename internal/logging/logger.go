// Package logging builds the process logger: console plus a per-run file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Sink owns the logger and the file it writes to.
type Sink struct {
	Logger *log.Logger
	// Path is the log file, empty when logging to the console only.
	Path string

	file *os.File
}

// Open creates a logger at level writing to console and, when dir is set, to
// dir/campuswatch-YYYYMMDD-HHMMSS.log named after started.
func Open(level, dir string, console io.Writer, started time.Time) (*Sink, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if console == nil {
		console = os.Stderr
	}

	s := &Sink{}
	out := console
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		s.Path = filepath.Join(dir, fmt.Sprintf("campuswatch-%s.log", started.Format("20060102-150405")))
		s.file, err = os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(console, s.file)
	}

	s.Logger = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
	})
	return s, nil
}

// ParseLevel accepts debug, info, warn, error and fatal, any case.
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return lvl, nil
}

// Close closes the log file, if any.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
