// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/depforge/depforge/internal/issue"
	"github.com/depforge/depforge/pkg/cueutil"
	"github.com/depforge/depforge/pkg/platform"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "depforge"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "depforge"
	// EnvPrefix prefixes environment overrides (DEPFORGE_LOG_LEVEL).
	EnvPrefix = "DEPFORGE"
)

// configExts lists the accepted config file extensions in lookup order.
var configExts = []string{"cue", "toml", "yaml", "yml", "json"}

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the depforge configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var base string
	switch runtime.GOOS {
	case platform.Windows:
		base = os.Getenv("APPDATA")
		if base == "" {
			home, err := homedir.Dir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := homedir.Dir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// Load reads the configuration described by opts. It returns the
// configuration and the path of the file it came from ("" for defaults).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := readInto(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check the file syntax").
				WithSuggestion("Run 'depforge config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("log.level must be debug, info, warn or error").
			WithSuggestion("package_manager must be easy_install or pip").
			Wrap(errors.Join(errs...)).
			BuildError()
	}
	return &cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("log.level", string(d.Log.Level))
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("recipe", d.Recipe)
	v.SetDefault("shell", d.Shell)
	v.SetDefault("package_manager", string(d.PackageManager))
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// resolveConfigFile returns the explicit file, or the first depforge.<ext>
// found in the config directory and then the current directory.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the --config path").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	for _, base := range []string{dir, "."} {
		for _, ext := range configExts {
			candidate := filepath.Join(base, ConfigFileName+"."+ext)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", nil
}

// readInto merges path into v. CUE files are schema-checked first; the other
// formats are decoded by Viper itself.
func readInto(v *viper.Viper, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return loadCUEIntoViper(v, path)
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	value, err := cueutil.CompileAndValidate(configSchema, data, "#Config",
		cueutil.WithConcrete(false), cueutil.WithFilename(path))
	if err != nil {
		return err
	}
	m, err := cueutil.DecodeMap(value, path)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes depforge.toml with default values into the
// config directory unless a config file already exists there. It returns the
// path of the file that is in effect.
func CreateDefaultConfig() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	for _, ext := range configExts {
		if existing := filepath.Join(dir, ConfigFileName+"."+ext); fileExists(existing) {
			return existing, nil
		}
	}
	path := filepath.Join(dir, ConfigFileName+".toml")
	if err := Save(DefaultConfig(), path); err != nil {
		return "", err
	}
	return path, nil
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := GenerateTOML(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateTOML renders cfg as a commented TOML document.
func GenerateTOML(cfg *Config) ([]byte, error) {
	body, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	header := "# depforge configuration\n# Environment variables prefixed with " + EnvPrefix + "_ override these values.\n\n"
	return append([]byte(header), body...), nil
}
