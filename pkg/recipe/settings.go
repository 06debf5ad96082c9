// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"fmt"
	"sort"

	"github.com/depforge/depforge/internal/subst"
)

// Well-known settings keys.
const (
	SettingVirtualenv     = "virtualenv"
	SettingEnvVars        = "env_vars"
	SettingPackageManager = "package_manager"
)

// Settings holds the recipe-wide configuration, with platform overrides already folded in.
// Settings values participate in property lookup as the middle precedence layer.
type Settings map[string]any

// Lookup returns the raw setting value for name.
func (s Settings) Lookup(name string) (any, bool) {
	v, ok := s[name]
	return v, ok
}

// String returns the named setting as a string, or "" when unset or not a string.
func (s Settings) String(name string) string {
	v, _ := s[name].(string)
	return v
}

// Virtualenv returns the configured isolated install root, if any.
func (s Settings) Virtualenv() string {
	return s.String(SettingVirtualenv)
}

// EnvVars returns the global environment overlay entries.
func (s Settings) EnvVars() map[string]string {
	return stringMap(s[SettingEnvVars])
}

// Keys returns the setting names in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Expand returns a copy of s with every value substitution-expanded against b.
// The receiver is left untouched.
func (s Settings) Expand(b subst.Bindings) (Settings, error) {
	out := make(Settings, len(s))
	for k, v := range s {
		expanded, err := subst.Expand(Clone(v), b)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", k, err)
		}
		out[k] = expanded
	}
	return out, nil
}

// Clone deep-copies a decoded document value so that in-place expansion of the
// copy never reaches the original.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Clone(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func stringMap(v any) map[string]string {
	switch t := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = fmt.Sprint(item)
		}
		return out
	default:
		return map[string]string{}
	}
}
