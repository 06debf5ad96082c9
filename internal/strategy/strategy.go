// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/depforge/depforge/internal/envscope"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/pkg/recipe"
)

// Built-in strategy types.
const (
	TypeCxx    Type = "cxx"
	TypePython Type = "python"
)

var (
	// ErrStrategyNotRegistered is returned by Registry.Get for an unknown build type.
	ErrStrategyNotRegistered = errors.New("build strategy not registered")

	// ErrStepFailed is the sentinel error wrapped by StepError.
	ErrStepFailed = errors.New("build step failed")
)

type (
	// Type names a build strategy, as used by the build_type property.
	Type string

	// Request carries everything a strategy needs to build one dependency.
	Request struct {
		Dependency *recipe.Dependency
		// Props resolves properties with the build context's bindings.
		Props   *props.Resolver
		Runtime runtime.Runtime
		Env     envscope.Overlay
		// RootDir is the depforge root; SourceDir and BuildDir locate the tree.
		RootDir   string
		SourceDir string
		BuildDir  string
		// InstallDir is the configure prefix; empty means RootDir.
		InstallDir string
		// WorkDir is the directory the pre-build commands left the build in.
		WorkDir string
		// Python is the interpreter used by the python strategy.
		Python string
		// GOOS selects platform-specific flags.
		GOOS   string
		Logger *log.Logger
	}

	// Strategy builds and cleans a dependency's source tree.
	Strategy interface {
		Name() Type
		Build(ctx context.Context, req *Request) error
		Clean(ctx context.Context, req *Request) error
	}

	// StepError is returned when one step of a build exits non-zero.
	StepError struct {
		Dependency string
		Step       string
		Err        error
	}

	// Registry maps build types to strategies.
	Registry struct {
		strategies map[Type]Strategy
	}
)

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s step failed: %v", e.Dependency, e.Step, e.Err)
}

// Unwrap returns ErrStepFailed and the underlying command failure.
func (e *StepError) Unwrap() []error { return []error{ErrStepFailed, e.Err} }

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[Type]Strategy)}
}

// DefaultRegistry returns a registry holding the cxx and python strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewCxxStrategy())
	r.Register(&PythonStrategy{})
	return r
}

// Register adds s under its name, replacing any strategy of the same type.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get returns the strategy registered for typ.
func (r *Registry) Get(typ Type) (Strategy, error) {
	s, ok := r.strategies[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotRegistered, typ)
	}
	return s, nil
}

// Types returns the registered build types in sorted order.
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.strategies))
	for t := range r.strategies {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (req *Request) logger() *log.Logger {
	if req.Logger == nil {
		return log.New(io.Discard)
	}
	return req.Logger
}

// run executes script in dir and reports a failed step as a StepError.
func (req *Request) run(ctx context.Context, step, dir, script string) error {
	req.logger().Info("running", "step", step, "command", script, "dir", dir)
	res := req.Runtime.Execute(ctx, &runtime.Command{Script: script, Dir: dir, Env: req.Env})
	if res.Success() {
		return nil
	}
	return &StepError{
		Dependency: req.Dependency.Name,
		Step:       step,
		Err:        &runtime.CommandFailureError{Command: script, Dir: dir, ExitCode: res.ExitCode, Err: res.Error},
	}
}
