// SPDX-License-Identifier: MPL-2.0

// Package props resolves the effective value of a dependency property.
//
// Lookup precedence, lowest to highest: the caller's default, the recipe
// settings, the dependency's own properties (platform overrides already folded
// in). The literal strings "TRUE" and "FALSE" are coerced to booleans. Values
// can optionally be substitution-expanded against the resolver's bindings.
// Settings are expanded once when the recipe is loaded, so a value that comes
// from the settings is returned as is.
package props

import (
	"errors"
	"fmt"

	"github.com/depforge/depforge/internal/subst"
	"github.com/depforge/depforge/pkg/recipe"
)

// ErrPropertyType is returned when a property holds a value of the wrong shape.
var ErrPropertyType = errors.New("property has unexpected type")

type (
	// Resolver looks up dependency properties against one recipe's settings.
	// A Resolver is immutable; WithBindings derives a new one for a build context.
	Resolver struct {
		settings recipe.Settings
		bindings subst.Bindings
	}

	// PropertyTypeError reports a property that could not be converted to the requested shape.
	PropertyTypeError struct {
		Name string
		Want string
		Got  any
	}
)

// Error implements the error interface.
func (e *PropertyTypeError) Error() string {
	return fmt.Sprintf("property %q: want %s, got %T", e.Name, e.Want, e.Got)
}

// Unwrap returns ErrPropertyType.
func (e *PropertyTypeError) Unwrap() error { return ErrPropertyType }

// NewResolver creates a Resolver over settings with the given substitution bindings.
func NewResolver(settings recipe.Settings, bindings subst.Bindings) *Resolver {
	return &Resolver{settings: settings, bindings: bindings}
}

// WithBindings returns a Resolver sharing r's settings but expanding against b.
func (r *Resolver) WithBindings(b subst.Bindings) *Resolver {
	return &Resolver{settings: r.settings, bindings: b}
}

// Bindings returns the resolver's substitution bindings.
func (r *Resolver) Bindings() subst.Bindings {
	return r.bindings
}

// Has reports whether name is set in the settings or on dep.
func (r *Resolver) Has(dep *recipe.Dependency, name string) bool {
	if _, ok := dep.Lookup(name); ok {
		return true
	}
	_, ok := r.settings.Lookup(name)
	return ok
}

// Raw returns the effective value of name without substitution.
// The returned value is a private copy.
func (r *Resolver) Raw(dep *recipe.Dependency, name string, def any) any {
	result, _ := r.lookup(dep, name, def)
	return result
}

// Get returns the effective value of name, expanding placeholders when expand
// is set. Values taken from the settings are already expanded.
func (r *Resolver) Get(dep *recipe.Dependency, name string, def any, expand bool) (any, error) {
	result, fromSettings := r.lookup(dep, name, def)
	if !expand || fromSettings {
		return result, nil
	}
	expanded, err := subst.Expand(result, r.bindings)
	if err != nil {
		return nil, fmt.Errorf("%s: property %q: %w", dep.Name, name, err)
	}
	return expanded, nil
}

// String returns name as an expanded string. Non-string scalars are formatted.
func (r *Resolver) String(dep *recipe.Dependency, name, def string) (string, error) {
	v, err := r.Get(dep, name, def, true)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return def, nil
	case string:
		return t, nil
	case bool, int, int64, float64:
		return fmt.Sprint(t), nil
	default:
		return "", &PropertyTypeError{Name: name, Want: "string", Got: v}
	}
}

// RawString returns name as a string without substitution.
func (r *Resolver) RawString(dep *recipe.Dependency, name, def string) string {
	switch t := r.Raw(dep, name, def).(type) {
	case string:
		return t
	case nil:
		return def
	default:
		return fmt.Sprint(t)
	}
}

// Bool returns name interpreted as a flag. Booleans and "TRUE"/"FALSE" are
// taken literally; any other value is true when non-empty and non-zero.
func (r *Resolver) Bool(dep *recipe.Dependency, name string, def bool) bool {
	return truthy(r.Raw(dep, name, def))
}

// Strings returns name as an expanded string list. A single string is treated
// as a one-element list.
func (r *Resolver) Strings(dep *recipe.Dependency, name string) ([]string, error) {
	v, err := r.Get(dep, name, nil, true)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case bool, int, int64, float64:
				out = append(out, fmt.Sprint(s))
			default:
				return nil, &PropertyTypeError{Name: name, Want: "list of strings", Got: v}
			}
		}
		return out, nil
	default:
		return nil, &PropertyTypeError{Name: name, Want: "list of strings", Got: v}
	}
}

// StringMap returns name as an expanded string mapping.
func (r *Resolver) StringMap(dep *recipe.Dependency, name string) (map[string]string, error) {
	v, err := r.Get(dep, name, nil, true)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return t, nil
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = fmt.Sprint(item)
		}
		return out, nil
	default:
		return nil, &PropertyTypeError{Name: name, Want: "mapping", Got: v}
	}
}

func (r *Resolver) lookup(dep *recipe.Dependency, name string, def any) (any, bool) {
	result, fromSettings := def, false
	if v, ok := r.settings.Lookup(name); ok {
		result, fromSettings = v, true
	}
	if v, ok := dep.Lookup(name); ok {
		result, fromSettings = v, false
	}
	return coerce(recipe.Clone(result)), fromSettings
}

func coerce(v any) any {
	if s, ok := v.(string); ok {
		switch s {
		case "TRUE":
			return true
		case "FALSE":
			return false
		}
	}
	return v
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
