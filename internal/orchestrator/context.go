// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"path/filepath"

	"github.com/depforge/depforge/internal/subst"
)

// BuildContext is the per-dependency working data of one Build call.
type BuildContext struct {
	RootDir   string
	RecipeDir string
	HomeDir   string
	Python    string

	SourceDir  string
	BuildDir   string
	InstallDir string

	dir string
}

// Bindings returns the substitution bindings for this context. Source and
// build directories use forward slashes on every platform.
func (c *BuildContext) Bindings() subst.Bindings {
	return subst.Bindings{
		subst.RootDir:   c.RootDir,
		subst.SourceDir: filepath.ToSlash(c.SourceDir),
		subst.BuildDir:  filepath.ToSlash(c.BuildDir),
		subst.HomeDir:   c.HomeDir,
		subst.Python:    c.Python,
	}
}

// SetDir changes the working directory of the build, as a "cd" command does.
func (c *BuildContext) SetDir(dir string) { c.dir = dir }

// Dir returns the working directory of the build, RootDir until SetDir is called.
func (c *BuildContext) Dir() string {
	if c.dir == "" {
		return c.RootDir
	}
	return c.dir
}

// resolveDir makes p absolute relative to base.
func resolveDir(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
