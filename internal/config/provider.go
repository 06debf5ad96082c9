// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions select the configuration file.
	LoadOptions struct {
		// ConfigFilePath loads exactly this file; a missing file is an error.
		ConfigFilePath string
		// ConfigDirPath replaces the per-user directory in the search path.
		ConfigDirPath string
	}

	// Provider hands commands their configuration.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	// ProviderFunc adapts a function to Provider.
	ProviderFunc func(ctx context.Context, opts LoadOptions) (*Config, error)
)

// Load calls f.
func (f ProviderFunc) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return f(ctx, opts)
}

// NewProvider returns a Provider reading files and DEPFORGE_* variables.
func NewProvider() Provider {
	return ProviderFunc(func(ctx context.Context, opts LoadOptions) (*Config, error) {
		cfg, _, err := Load(ctx, opts)
		return cfg, err
	})
}

// configDirOverride, when set, is returned by ConfigDir.
var configDirOverride string

// OverrideConfigDir points ConfigDir at dir until restore is called.
func OverrideConfigDir(dir string) (restore func()) {
	prev := configDirOverride
	configDirOverride = dir
	return func() { configDirOverride = prev }
}
