// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildFailed is the sentinel error wrapped by BuildError.
	ErrBuildFailed = errors.New("dependency build failed")

	// ErrNoInstaller is returned when an installer dependency names neither a
	// disk image nor a binary.
	ErrNoInstaller = errors.New("no disk image or executable for binary package")

	// ErrUnsupportedPackageManager is returned for a package_manager setting
	// depforge cannot drive.
	ErrUnsupportedPackageManager = errors.New("unsupported package manager")
)

// BuildError reports the failure of one dependency and the stage it failed in.
type BuildError struct {
	Dependency string
	Stage      string
	Err        error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Dependency, e.Stage, e.Err)
}

// Unwrap returns ErrBuildFailed and the underlying cause.
func (e *BuildError) Unwrap() []error { return []error{ErrBuildFailed, e.Err} }
