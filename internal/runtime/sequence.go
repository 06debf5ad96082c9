// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/depforge/depforge/internal/envscope"
)

// ErrCommandFailed is the sentinel error wrapped by CommandFailureError.
var ErrCommandFailed = errors.New("command failed")

type (
	// CommandFailureError is returned when a command in a sequence exits non-zero
	// or cannot be started.
	CommandFailureError struct {
		Command  string
		Dir      string
		ExitCode ExitCode
		Err      error
	}

	// Sequence runs shell command lists the way recipes declare them: each entry
	// is a shell command line, except a bare "cd <dir>" which changes the
	// directory the following entries run in. The directory must exist.
	Sequence struct {
		Runtime Runtime
		Env     envscope.Overlay
		// Dir is the directory the first entry runs in. It is updated by "cd" entries.
		Dir string
		// WindowsPaths rewrites "/" to "\\" in every entry before it runs.
		WindowsPaths bool
		// OnCommand, when set, is called before each entry runs.
		OnCommand func(cmd, dir string)
	}
)

// Error implements the error interface.
func (e *CommandFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q in %s failed: %v", e.Command, e.Dir, e.Err)
	}
	return fmt.Sprintf("command %q in %s exited with status %s", e.Command, e.Dir, e.ExitCode)
}

// Unwrap returns ErrCommandFailed so callers can use errors.Is.
func (e *CommandFailureError) Unwrap() error { return ErrCommandFailed }

// Run executes cmds in order and stops at the first failure.
func (s *Sequence) Run(ctx context.Context, cmds []string) error {
	for _, line := range cmds {
		if s.WindowsPaths {
			line = strings.ReplaceAll(line, "/", `\\`)
		}

		if target, ok := cdTarget(line); ok {
			if !filepath.IsAbs(target) && s.Dir != "" {
				target = filepath.Join(s.Dir, target)
			}
			target = filepath.Clean(target)
			if err := checkDir(target); err != nil {
				return &CommandFailureError{Command: line, Dir: s.Dir, ExitCode: 1, Err: err}
			}
			s.Dir = target
			continue
		}

		if s.OnCommand != nil {
			s.OnCommand(line, s.Dir)
		}
		res := s.Runtime.Execute(ctx, &Command{Script: line, Dir: s.Dir, Env: s.Env})
		if !res.Success() {
			return &CommandFailureError{Command: line, Dir: s.Dir, ExitCode: res.ExitCode, Err: res.Error}
		}
	}
	return nil
}

// cdTarget reports whether line is exactly "cd <dir>" and returns the
// directory. A line that chains, pipes or redirects goes to the shell.
func cdTarget(line string) (string, bool) {
	p := shellwords.NewParser()
	words, err := p.Parse(line)
	if err != nil || p.Position != -1 || len(words) != 2 || words[0] != "cd" {
		return "", false
	}
	return words[1], true
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// SplitCommand splits a command line into argv using shell quoting rules,
// without invoking a shell.
func SplitCommand(line string) ([]string, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command %q", line)
	}
	return args, nil
}
