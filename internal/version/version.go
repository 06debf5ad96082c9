// SPDX-License-Identifier: MPL-2.0

// Package version decides whether a dependency is already installed in a
// compatible version.
package version

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/depforge/depforge/internal/envscope"
	"github.com/depforge/depforge/internal/runtime"
)

// ErrVersionMismatch is the sentinel error wrapped by VersionMismatchError.
var ErrVersionMismatch = errors.New("version mismatch")

type (
	// VersionMismatchError describes versions that could not be compared numerically.
	// It is recovered locally: the installed version is treated as incompatible.
	//
	//nolint:revive // VersionMismatchError reads better at call sites than MismatchError
	VersionMismatchError struct {
		Found    string
		Required string
		Reason   string
	}

	// Query describes the installed-version check for one dependency.
	Query struct {
		// Name is the dependency name, used for messages.
		Name string
		// Program is the executable queried for its version; defaults to Name.
		Program string
		// Required is the version the recipe asks for.
		Required string
		// ExactOnly disables the numeric compatibility rule.
		ExactOnly bool
		// CheckCmd, when set, replaces the version queries: the dependency is installed iff it exits zero.
		CheckCmd string
		// Dir and Env are applied to every version query.
		Dir string
		Env envscope.Overlay
	}

	// Checker runs installed-version queries.
	Checker struct {
		rt     runtime.Runtime
		logger *log.Logger
	}
)

// Error implements the error interface.
func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("cannot compare version %q with required %q: %s", e.Found, e.Required, e.Reason)
}

// Unwrap returns ErrVersionMismatch.
func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// NewChecker returns a Checker that runs version queries through rt.
func NewChecker(rt runtime.Runtime, logger *log.Logger) *Checker {
	return &Checker{rt: rt, logger: logger}
}

// Commands returns the commands tried, in order, to discover the installed version of program.
// The pkg-config query asks for the module's version; "pkg-config --version"
// would report pkg-config's own.
func Commands(program string) [][]string {
	return [][]string{
		{program, "--version"},
		{program + "-config", "--version"},
		{"pkg-config", "--modversion", program},
	}
}

// IsInstalled reports whether a compatible version of q's dependency is present.
//
// An explicit check command decides on its own. Otherwise the first query that
// runs successfully supplies the version string, which is then checked with Valid.
func (c *Checker) IsInstalled(ctx context.Context, q Query) bool {
	if q.CheckCmd != "" {
		args, err := runtime.SplitCommand(q.CheckCmd)
		if err != nil {
			c.logger.Warn("invalid install check command", "dependency", q.Name, "err", err)
			return false
		}
		res := c.rt.ExecuteCapture(ctx, &runtime.Command{Args: args, Dir: q.Dir, Env: q.Env})
		return res.Success()
	}

	program := q.Program
	if program == "" {
		program = q.Name
	}

	for _, args := range Commands(program) {
		res := c.rt.ExecuteCapture(ctx, &runtime.Command{Args: args, Dir: q.Dir, Env: q.Env})
		if !res.Success() {
			continue
		}
		found := strings.TrimSpace(res.Output)
		c.logger.Debug("found installed version", "dependency", q.Name, "command", strings.Join(args, " "), "version", found)

		ok, err := Valid(found, q.Required, q.ExactOnly)
		if err != nil {
			c.logger.Warn("unable to compare versions, assuming incompatible", "dependency", q.Name, "err", err)
		}
		return ok
	}
	return false
}

// Valid reports whether found satisfies required.
//
// Equal strings, or found containing required, always satisfy. Unless
// exactOnly is set, found also satisfies when its major component equals the
// required major and its minor is greater, or minor is equal and patch is not
// lower. Components that are not plain integers make the comparison fail with
// a VersionMismatchError alongside a false result.
func Valid(found, required string, exactOnly bool) (bool, error) {
	if found == required || strings.Contains(found, required) {
		return true, nil
	}
	if exactOnly {
		return false, nil
	}

	have, want := components(found), components(required)

	// Components are parsed only as far as the comparison needs them.
	for i := 0; i < 3; i++ {
		h, err := have.at(i)
		if err != nil {
			return false, &VersionMismatchError{Found: found, Required: required, Reason: err.Error()}
		}
		w, err := want.at(i)
		if err != nil {
			return false, &VersionMismatchError{Found: found, Required: required, Reason: err.Error()}
		}
		switch {
		case i == 0 && h != w:
			return false, nil
		case i == 1 && h != w:
			return h > w, nil
		case i == 2:
			return h >= w, nil
		}
	}
	return false, nil
}

type versionParts []string

func components(v string) versionParts {
	return strings.Split(strings.TrimSpace(v), ".")
}

func (p versionParts) at(i int) (int, error) {
	if i >= len(p) {
		return 0, fmt.Errorf("%q has no component %d", strings.Join(p, "."), i+1)
	}
	n, err := strconv.Atoi(strings.TrimSpace(p[i]))
	if err != nil {
		return 0, fmt.Errorf("component %q of %q is not numeric", p[i], strings.Join(p, "."))
	}
	return n, nil
}
