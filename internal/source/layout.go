// SPDX-License-Identifier: MPL-2.0

package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout resolves dependency paths against the three directories recipe paths
// may be relative to.
type Layout struct {
	// Root is the build/install root (ROOTDIR).
	Root string
	// RecipeDir is the directory holding the recipe document.
	RecipeDir string
	// WorkDir is the directory relative paths are first tried against; usually
	// the depforge process working directory.
	WorkDir string
}

// AbsPath resolves p by trying, in order, the working directory, the root and
// the recipe directory, returning the first candidate that exists. When none
// exists the working-directory form is returned.
func (l Layout) AbsPath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	fallback := filepath.Join(l.WorkDir, p)
	for _, dir := range []string{l.WorkDir, l.Root, l.RecipeDir} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, p)
		if exists(candidate) {
			return candidate
		}
	}
	return fallback
}

// SourceDir returns the source directory of a dependency.
//
// The default is "<root>/<fullName>"; override (the source_dir property)
// replaces it and is resolved with AbsPath. A directory named fullName or name
// next to the recipe takes precedence over both; when both exist, name wins.
func (l Layout) SourceDir(name, fullName, override string) string {
	result := filepath.Join(l.Root, fullName)
	if override != "" {
		result = l.AbsPath(override)
	}

	if l.RecipeDir != "" {
		for _, candidate := range []string{fullName, name} {
			p := filepath.Join(l.RecipeDir, candidate)
			if isDir(p) {
				result = p
			}
		}
	}
	return result
}

// BuildDir returns the build directory for a dependency whose sources live in
// sourceDir. An empty override builds in the source directory. Otherwise an
// override naming an existing directory (relative to the working directory) is
// used as is, and anything else is taken relative to sourceDir.
func (l Layout) BuildDir(sourceDir, override string) string {
	if override == "" {
		return sourceDir
	}
	candidate := override
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(l.WorkDir, candidate)
	}
	if exists(candidate) {
		return filepath.Clean(candidate)
	}
	if filepath.IsAbs(override) {
		return filepath.Clean(override)
	}
	return filepath.Join(sourceDir, override)
}

// IsNewer reports whether a was modified strictly after b. Files and
// directories are compared the same way.
func IsNewer(a, b string) (bool, error) {
	sa, err := os.Stat(a)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", a, err)
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", b, err)
	}
	return sa.ModTime().After(sb.ModTime()), nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
