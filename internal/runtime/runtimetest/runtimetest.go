// SPDX-License-Identifier: MPL-2.0

// Package runtimetest provides a recording Runtime for tests.
package runtimetest

import (
	"context"
	"sync"

	"github.com/depforge/depforge/internal/runtime"
)

type (
	// Call records one command the Recorder was asked to run.
	Call struct {
		Line    string
		Args    []string
		Script  string
		Dir     string
		Env     map[string]string
		Capture bool
	}

	// Responder decides the result of a recorded call. Returning nil means success.
	Responder func(c Call) *runtime.Result

	// Recorder is a runtime.Runtime that records every command instead of running it.
	Recorder struct {
		mu      sync.Mutex
		calls   []Call
		respond Responder
	}
)

var _ runtime.Runtime = (*Recorder)(nil)

// NewRecorder returns a Recorder answering calls with respond; nil answers success.
func NewRecorder(respond Responder) *Recorder {
	return &Recorder{respond: respond}
}

// Name returns "recorder".
func (r *Recorder) Name() string { return "recorder" }

// Available always returns true.
func (r *Recorder) Available() bool { return true }

// Execute records cmd.
func (r *Recorder) Execute(_ context.Context, cmd *runtime.Command) *runtime.Result {
	return r.record(cmd, false)
}

// ExecuteCapture records cmd.
func (r *Recorder) ExecuteCapture(_ context.Context, cmd *runtime.Command) *runtime.Result {
	return r.record(cmd, true)
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line
	}
	return lines
}

func (r *Recorder) record(cmd *runtime.Command, capture bool) *runtime.Result {
	env := make(map[string]string, cmd.Env.Len())
	for _, k := range cmd.Env.Keys() {
		env[k], _ = cmd.Env.Lookup(k)
	}
	c := Call{
		Line:    cmd.String(),
		Args:    append([]string(nil), cmd.Args...),
		Script:  cmd.Script,
		Dir:     cmd.Dir,
		Env:     env,
		Capture: capture,
	}

	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	if r.respond != nil {
		if res := r.respond(c); res != nil {
			return res
		}
	}
	return &runtime.Result{}
}

// Output returns a successful result carrying stdout.
func Output(stdout string) *runtime.Result {
	return &runtime.Result{Output: stdout}
}

// Exit returns a result with the given exit code.
func Exit(code runtime.ExitCode) *runtime.Result {
	return &runtime.Result{ExitCode: code}
}
