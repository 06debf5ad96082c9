// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"

	"github.com/depforge/depforge/pkg/platform"
)

// ErrInvalidDependency is returned when a packages entry lacks a name or version.
var ErrInvalidDependency = errors.New("invalid dependency")

// Dependency is one entry of the recipe's packages list.
//
// Name and Version never change after construction. Props holds every other
// property with the running platform's overrides already merged in; override
// sub-objects for other platforms are dropped.
type Dependency struct {
	Name    string
	Version string
	Props   map[string]any
}

// NewDependency builds a Dependency from a decoded packages entry, folding the
// overrides for goos into the top-level mapping.
func NewDependency(entry map[string]any, goos string) (*Dependency, error) {
	props := foldPlatform(entry, goos)

	name, _ := props["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidDependency)
	}
	version, _ := props["version"].(string)
	if version == "" {
		return nil, fmt.Errorf("%w: %s has no version", ErrInvalidDependency, name)
	}

	return &Dependency{Name: name, Version: version, Props: props}, nil
}

// FullName returns "<name>-<version>", the canonical source directory name.
func (d *Dependency) FullName() string {
	return d.Name + "-" + d.Version
}

// Lookup returns the raw property value for name.
func (d *Dependency) Lookup(name string) (any, bool) {
	v, ok := d.Props[name]
	return v, ok
}

// EnvVars returns the dependency's own environment overlay entries.
func (d *Dependency) EnvVars() map[string]string {
	return stringMap(d.Props[SettingEnvVars])
}

// Optional reports whether a failure of this dependency is non-fatal.
// Only a literal true (or "TRUE") marks a dependency optional.
func (d *Dependency) Optional() bool {
	switch v := d.Props["optional"].(type) {
	case bool:
		return v
	case string:
		return v == "TRUE"
	}
	return false
}

// foldPlatform returns a copy of m with the overrides for goos merged into the top level
// and all platform-keyed sub-objects removed.
func foldPlatform(m map[string]any, goos string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if platform.IsPlatformKey(k) {
			continue
		}
		out[k] = Clone(v)
	}
	for _, key := range platform.Keys(goos) {
		override, ok := m[key].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range override {
			out[k] = Clone(v)
		}
	}
	return out
}
