// SPDX-License-Identifier: MPL-2.0

// Package envscope composes the environment overlay applied to one
// dependency's build.
//
// An Overlay is an immutable set of assignments. It is merged into a child
// process environment at spawn time and is never written to the depforge
// process environment, so nothing needs restoring once a build finishes.
package envscope

import (
	"fmt"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/depforge/depforge/internal/subst"
	"github.com/depforge/depforge/pkg/platform"
)

type (
	// Overlay is an immutable set of environment assignments.
	Overlay struct {
		vars map[string]string
		// foldCase makes keys match case-insensitively, as on Windows.
		foldCase bool
	}

	// Options control how Compose expands overlay values.
	Options struct {
		// Environ is the base environment "$VAR" / "%VAR%" references resolve against.
		Environ []string
		// GOOS selects the reference syntax; Windows uses "%VAR%".
		GOOS string
		// Bindings expand "%(NAME)s" placeholders in the dependency's entries after environment references.
		Bindings subst.Bindings
	}
)

// Empty returns an overlay with no assignments.
func Empty() Overlay {
	return Overlay{foldCase: platform.IsWindows()}
}

// New returns an overlay holding vars verbatim.
func New(vars map[string]string) Overlay {
	o := Empty()
	o.vars = make(map[string]string, len(vars))
	for k, v := range vars {
		o.vars[k] = v
	}
	return o
}

// Compose builds the overlay for one dependency from the global entries
// followed by the dependency's own entries, which win on conflicts. Each
// value has environment references expanded against opts.Environ. The
// dependency's entries are then substitution-expanded against opts.Bindings;
// global entries come from the settings, which are expanded at load.
func Compose(global, local map[string]string, opts Options) (Overlay, error) {
	merged := make(map[string]string, len(global)+len(local))
	fromDep := make(map[string]bool, len(local))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
		fromDep[k] = true
	}

	o := Overlay{vars: make(map[string]string, len(merged)), foldCase: opts.GOOS == platform.Windows}
	for _, k := range sortedKeys(merged) {
		v, err := expandEnvRefs(merged[k], opts.Environ, opts.GOOS)
		if err != nil {
			return Overlay{}, fmt.Errorf("env var %s: %w", k, err)
		}
		if fromDep[k] {
			if v, err = subst.String(v, opts.Bindings); err != nil {
				return Overlay{}, fmt.Errorf("env var %s: %w", k, err)
			}
		}
		o.vars[k] = v
	}
	return o, nil
}

// Len returns the number of assignments.
func (o Overlay) Len() int { return len(o.vars) }

// Keys returns the assigned names in sorted order.
func (o Overlay) Keys() []string { return sortedKeys(o.vars) }

// Lookup returns the overlay value for name.
func (o Overlay) Lookup(name string) (string, bool) {
	if v, ok := o.vars[name]; ok {
		return v, true
	}
	if o.foldCase {
		for k, v := range o.vars {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return "", false
}

// With returns a new overlay with name set to value.
func (o Overlay) With(name, value string) Overlay {
	next := Overlay{vars: make(map[string]string, len(o.vars)+1), foldCase: o.foldCase}
	for k, v := range o.vars {
		next.vars[k] = v
	}
	next.vars[name] = value
	return next
}

// Environ returns base with the overlay applied: overridden entries are
// replaced and new ones appended in sorted order. base is not modified.
func (o Overlay) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(o.vars))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := o.Lookup(name); overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range o.Keys() {
		out = append(out, k+"="+o.vars[k])
	}
	return out
}

// ShellEnviron returns the overlaid environment in the form the embedded shell interpreter consumes.
func (o Overlay) ShellEnviron(base []string) expand.Environ {
	return expand.ListEnviron(o.Environ(base)...)
}

// expandEnvRefs replaces references to variables from environ inside value.
// POSIX platforms use shell parameter expansion ("$VAR", "${VAR}", "${VAR:-x}");
// Windows replaces "%VAR%" tokens literally. Unknown POSIX references expand to
// the empty string, as they would in a shell.
func expandEnvRefs(value string, environ []string, goos string) (string, error) {
	if goos == platform.Windows {
		for _, kv := range environ {
			name, v, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				continue
			}
			value = strings.ReplaceAll(value, "%"+name+"%", v)
		}
		return value, nil
	}

	if !strings.Contains(value, "$") {
		return value, nil
	}
	word, err := syntax.NewParser().Document(strings.NewReader(value))
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", value, err)
	}
	cfg := &expand.Config{Env: expand.ListEnviron(environ...)}
	out, err := expand.Document(cfg, word)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", value, err)
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
