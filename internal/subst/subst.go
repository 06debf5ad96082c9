// SPDX-License-Identifier: MPL-2.0

// Package subst expands named placeholders in recipe values.
//
// Recipe strings reference bindings with the recipe format's named-placeholder
// syntax, "%(NAME)s"; "%%" stands for a literal percent sign. Expand walks a
// decoded value tree and substitutes at string leaves only: mappings are
// rewritten in place, sequences are copied, and every other scalar is returned
// unchanged.
package subst

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Binding names available to recipe authors.
const (
	RootDir   = "ROOTDIR"
	SourceDir = "SRCDIR"
	BuildDir  = "BLDDIR"
	HomeDir   = "HOMEDIR"
	Python    = "PYTHON"
)

// ErrMissingBinding is the sentinel error wrapped by MissingBindingError.
var ErrMissingBinding = errors.New("missing substitution binding")

var placeholderRe = regexp.MustCompile(`%\(([^)]*)\)s|%%`)

type (
	// Bindings maps placeholder names to their current values.
	Bindings map[string]string

	// MissingBindingError is returned when a string references a name absent
	// from the bindings. It wraps ErrMissingBinding for errors.Is().
	MissingBindingError struct {
		Name  string
		Input string
		Known []string
	}
)

// Error implements the error interface.
func (e *MissingBindingError) Error() string {
	return fmt.Sprintf("unknown placeholder %q in %q (known: %s)", e.Name, e.Input, strings.Join(e.Known, ", "))
}

// Unwrap returns ErrMissingBinding.
func (e *MissingBindingError) Unwrap() error { return ErrMissingBinding }

// With returns a copy of b with name set to value.
func (b Bindings) With(name, value string) Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	out[name] = value
	return out
}

func (b Bindings) names() []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String expands every placeholder in s.
func String(s string, b Bindings) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	var missing *MissingBindingError
	out := placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		if m == "%%" {
			return "%"
		}
		name := m[2 : len(m)-2]
		v, ok := b[name]
		if !ok {
			if missing == nil {
				missing = &MissingBindingError{Name: name, Input: s, Known: b.names()}
			}
			return m
		}
		return v
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Strings expands each element of in into a new slice.
func Strings(in []string, b Bindings) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		v, err := String(s, b)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Expand substitutes placeholders throughout value.
//
// map[string]any and map[string]string values are expanded in place and the same
// map is returned; []any and []string produce new slices; strings are expanded;
// anything else is returned as-is.
func Expand(value any, b Bindings) (any, error) {
	switch v := value.(type) {
	case string:
		return String(v, b)
	case map[string]any:
		for key, item := range v {
			expanded, err := Expand(item, b)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			v[key] = expanded
		}
		return v, nil
	case map[string]string:
		for key, item := range v {
			expanded, err := String(item, b)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			v[key] = expanded
		}
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := Expand(item, b)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = expanded
		}
		return out, nil
	case []string:
		return Strings(v, b)
	default:
		return value, nil
	}
}
