// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrPathNotAllowed is returned when a script opens a file outside the allowed directories.
var ErrPathNotAllowed = errors.New("path outside allowed directories")

type (
	// VirtualRuntime executes scripts with the embedded mvdan/sh interpreter.
	// External programs the script calls still run on the host; only the
	// interpreter's own file opens and redirections are confined.
	VirtualRuntime struct {
		allowed []string
		environ func() []string
		stdout  io.Writer
		stderr  io.Writer
	}

	// VirtualOption configures a VirtualRuntime.
	VirtualOption func(*VirtualRuntime)
)

// WithAllowedDirs confines interpreter file opens to dirs and their descendants.
// With no directories configured every open is refused, except the null device.
func WithAllowedDirs(dirs ...string) VirtualOption {
	return func(r *VirtualRuntime) {
		for _, d := range dirs {
			if d == "" {
				continue
			}
			if abs, err := filepath.Abs(d); err == nil {
				r.allowed = append(r.allowed, filepath.Clean(abs))
			}
		}
	}
}

// WithVirtualEnviron sets the base environment for scripts.
func WithVirtualEnviron(environ func() []string) VirtualOption {
	return func(r *VirtualRuntime) { r.environ = environ }
}

// WithVirtualOutput sets the default writers for script output.
func WithVirtualOutput(stdout, stderr io.Writer) VirtualOption {
	return func(r *VirtualRuntime) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewVirtualRuntime creates a new virtual runtime
func NewVirtualRuntime(opts ...VirtualOption) *VirtualRuntime {
	r := &VirtualRuntime{
		environ: os.Environ,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithAllowed returns a copy of r confined to dirs instead of its current set.
func (r *VirtualRuntime) WithAllowed(dirs ...string) *VirtualRuntime {
	next := *r
	next.allowed = nil
	WithAllowedDirs(dirs...)(&next)
	return &next
}

// Name returns the runtime name
func (r *VirtualRuntime) Name() string {
	return string(RuntimeTypeVirtual)
}

// Available returns whether this runtime is available
func (r *VirtualRuntime) Available() bool {
	// Virtual runtime is always available as it's built-in
	return true
}

// Validate parses script and reports syntax errors.
func (r *VirtualRuntime) Validate(script, name string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), name); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

// Execute runs cmd.Script with the interpreter, streaming output.
func (r *VirtualRuntime) Execute(ctx context.Context, cmd *Command) *Result {
	return r.run(ctx, cmd, firstWriter(cmd.Stdout, r.stdout), firstWriter(cmd.Stderr, r.stderr))
}

// ExecuteCapture runs cmd.Script with the interpreter and captures its output
func (r *VirtualRuntime) ExecuteCapture(ctx context.Context, cmd *Command) *Result {
	var stdout, stderr bytes.Buffer
	result := r.run(ctx, cmd, &stdout, &stderr)
	result.Output = stdout.String()
	result.ErrOutput = stderr.String()
	return result
}

func (r *VirtualRuntime) run(ctx context.Context, cmd *Command, stdout, stderr io.Writer) *Result {
	script := cmd.Script
	if script == "" && len(cmd.Args) > 0 {
		quoted := make([]string, len(cmd.Args))
		for i, a := range cmd.Args {
			quoted[i] = shellQuote(a)
		}
		script = strings.Join(quoted, " ")
	}
	if script == "" {
		return NewErrorResult(1, errors.New("script has no content to execute"))
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to parse script: %w", err))
	}

	dir := cmd.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return NewErrorResult(1, err)
		}
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(cmd.Env.ShellEnviron(r.environ())),
		interp.StdIO(nil, stdout, stderr),
		interp.OpenHandler(r.openHandler),
	)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &Result{ExitCode: ExitCode(exitStatus)}
		}
		return NewErrorResult(1, fmt.Errorf("script execution failed: %w", err))
	}
	return &Result{}
}

// openHandler confines redirections and other interpreter file opens.
func (r *VirtualRuntime) openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == os.DevNull || path == "/dev/null" {
		return interp.DefaultOpenHandler()(ctx, path, flag, perm)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(interp.HandlerCtx(ctx).Dir, abs)
	}
	if !r.isAllowed(abs) {
		return nil, &os.PathError{Op: "open", Path: path, Err: ErrPathNotAllowed}
	}
	return interp.DefaultOpenHandler()(ctx, path, flag, perm)
}

func (r *VirtualRuntime) isAllowed(path string) bool {
	path = filepath.Clean(path)
	for _, dir := range r.allowed {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}
