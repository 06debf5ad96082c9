// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/depforge/depforge/internal/envscope"
)

// Runtime type constants.
const (
	RuntimeTypeNative  RuntimeType = "native"
	RuntimeTypeVirtual RuntimeType = "virtual"
)

type (
	// Command describes one process to run.
	//
	// Exactly one of Args and Script is used: Args is executed directly
	// (argv[0] resolved through PATH), Script is handed to a shell.
	Command struct {
		Args   []string
		Script string
		// Dir is the working directory; empty means the depforge process directory.
		Dir string
		// Env is merged over the base environment when the process starts.
		Env envscope.Overlay
		// Stdout and Stderr receive streamed output; nil selects the runtime's defaults.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result contains the result of a command execution
	Result struct {
		// ExitCode is the exit code of the command
		ExitCode ExitCode
		// Error contains any error that prevented the command from running to completion
		Error error
		// Output contains captured stdout (if captured)
		Output string
		// ErrOutput contains captured stderr (if captured)
		ErrOutput string
	}

	// Runtime executes commands.
	Runtime interface {
		// Name returns the runtime name
		Name() string
		// Available returns whether this runtime is available on the current system
		Available() bool
		// Execute runs cmd, streaming its output.
		Execute(ctx context.Context, cmd *Command) *Result
		// ExecuteCapture runs cmd and captures stdout/stderr into the Result.
		ExecuteCapture(ctx context.Context, cmd *Command) *Result
	}

	// RuntimeType identifies the type of runtime.
	//
	//nolint:revive // RuntimeType is more descriptive than Type for external callers
	RuntimeType string
)

// String returns a human-readable form of the command for logs.
func (c *Command) String() string {
	if c.Script != "" {
		return c.Script
	}
	return strings.Join(c.Args, " ")
}

// Success returns true if the command executed successfully
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Err returns nil for a successful result, otherwise an error describing the failure.
func (r *Result) Err() error {
	if r.Error != nil {
		return r.Error
	}
	if r.ExitCode != 0 {
		return fmt.Errorf("exit status %d", r.ExitCode)
	}
	return nil
}

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// exitResult converts an exec error into a Result.
func exitResult(err error) *Result {
	if err == nil {
		return &Result{}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{ExitCode: exitCodeFrom(exitErr.ExitCode())}
	}

	// Not started: missing binary, permission denied.
	return &Result{ExitCode: 1, Error: err}
}
