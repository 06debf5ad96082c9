// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charm logger shared by a depforge run.
//
// Every record goes to stderr and, when a run log file is configured, is
// appended to that file with ANSI styling removed. All records of one run
// carry the same run id.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"github.com/google/uuid"
)

// ErrInvalidLevel is returned for an unparsable log level.
var ErrInvalidLevel = errors.New("invalid log level")

type (
	// Options configures New.
	Options struct {
		// Level is a charm log level name (debug, info, warn, error).
		Level string
		// File is the run log path. Empty disables the run log.
		File string
		// Stderr receives styled output; nil means os.Stderr.
		Stderr io.Writer
		// Prefix is printed before every message.
		Prefix string
		// RunID overrides the generated run id.
		RunID string
	}

	// Logger is a charm logger bound to one run and its log file.
	Logger struct {
		*log.Logger
		RunID string
		Path  string

		file *os.File
	}

	// teeWriter writes each record verbatim to term and stripped to file.
	teeWriter struct {
		mu   sync.Mutex
		term io.Writer
		file io.Writer
	}
)

// New creates a Logger. The run log file is opened in append mode and created
// if missing, together with its parent directory.
func New(opts Options) (*Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		lvl, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrInvalidLevel, opts.Level)
		}
		level = lvl
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	l := &Logger{RunID: opts.RunID}
	if l.RunID == "" {
		l.RunID = uuid.NewString()
	}

	var out io.Writer = stderr
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open run log: %w", err)
		}
		l.file = f
		l.Path = opts.File
		out = &teeWriter{term: stderr, file: f}
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	if isTerminal(stderr) {
		logger.SetColorProfile(lipgloss.ColorProfile())
	}
	l.Logger = logger.With("run", l.RunID)
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Close closes the run log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.term.Write(p)
	if _, ferr := io.WriteString(w.file, ansi.Strip(string(p))); ferr != nil && err == nil {
		err = ferr
	}
	return n, err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}
