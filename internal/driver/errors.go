// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is the sentinel wrapped by ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnknownTarget is the sentinel wrapped by UnknownTargetError.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrMissingTool reports a native build tool that cannot be run.
	ErrMissingTool = errors.New("required platform tool missing")
	// ErrVirtualenv reports a virtualenv that could not be created.
	ErrVirtualenv = errors.New("virtualenv setup failed")
)

type (
	// ConfigurationError reports a run that cannot start: a missing platform
	// tool, an unusable virtualenv or unexpandable settings.
	ConfigurationError struct {
		Reason string
		Err    error
	}

	// UnknownTargetError is returned when no requested target names a package.
	UnknownTargetError struct {
		Targets []string
	}
)

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target(s): %s", strings.Join(e.Targets, ", "))
}

func (e *UnknownTargetError) Unwrap() error { return ErrUnknownTarget }
