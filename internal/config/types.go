// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// PackageManagerEasyInstall installs packages with easy_install.
	// Defined locally to avoid coupling config to the orchestrator.
	PackageManagerEasyInstall PackageManager = "easy_install"
	// PackageManagerPip installs packages with pip.
	PackageManagerPip PackageManager = "pip"

	ColorSchemeAuto  ColorScheme = "auto"
	ColorSchemeDark  ColorScheme = "dark"
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidPackageManager is returned when a PackageManager value is not recognized.
	ErrInvalidPackageManager = errors.New("invalid package manager")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidLogFile is returned when log.file is whitespace-only.
	ErrInvalidLogFile = errors.New("invalid log file")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written to stderr and the run log.
	LogLevel string

	// PackageManager selects the tool used for package-manager dependencies.
	PackageManager string

	// ColorScheme selects the glamour style for Markdown output.
	ColorScheme string

	// InvalidValueError reports an unrecognized enumerated value.
	InvalidValueError struct {
		Field    string
		Value    string
		sentinel error
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// LogConfig configures the stderr logger and the run log file.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level" toml:"level"`
		// File is the append-only run log; relative paths resolve against
		// the working directory. Empty disables the run log.
		File string `json:"file" mapstructure:"file" toml:"file"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme"`
	}

	// Config holds the application configuration.
	Config struct {
		Log LogConfig `json:"log" mapstructure:"log" toml:"log"`
		// Recipe is the recipe used when --recipe is not given.
		Recipe string `json:"recipe" mapstructure:"recipe" toml:"recipe"`
		// Shell overrides the shell used for recipe commands.
		Shell string `json:"shell" mapstructure:"shell" toml:"shell"`
		// PackageManager is the default for dependencies without a package_manager property.
		PackageManager PackageManager `json:"package_manager" mapstructure:"package_manager" toml:"package_manager"`
		// Verbose lowers the log level to debug and prints error chains.
		Verbose bool     `json:"verbose" mapstructure:"verbose" toml:"verbose"`
		UI      UIConfig `json:"ui" mapstructure:"ui" toml:"ui"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: LogLevelInfo,
			File:  "depforge.log",
		},
		PackageManager: PackageManagerEasyInstall,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "log.level", Value: string(l), sentinel: ErrInvalidLogLevel}}
	}
}

func (p PackageManager) String() string { return string(p) }

// IsValid returns whether the PackageManager is supported.
func (p PackageManager) IsValid() (bool, []error) {
	switch p {
	case PackageManagerEasyInstall, PackageManagerPip:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "package_manager", Value: string(p), sentinel: ErrInvalidPackageManager}}
	}
}

func (c ColorScheme) String() string { return string(c) }

// IsValid returns whether the ColorScheme is one of the defined schemes.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidValueError{Field: "ui.color_scheme", Value: string(c), sentinel: ErrInvalidColorScheme}}
	}
}

// GlamourStyle maps the scheme to a glamour standard style name.
func (c ColorScheme) GlamourStyle() string {
	switch c {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

// IsValid validates every enumerated field of the configuration.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Log.File != "" && strings.TrimSpace(c.Log.File) == "" {
		errs = append(errs, &InvalidValueError{Field: "log.file", Value: c.Log.File, sentinel: ErrInvalidLogFile})
	}
	if valid, fieldErrs := c.PackageManager.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// EffectiveLogLevel is Log.Level, or debug when Verbose is set.
func (c *Config) EffectiveLogLevel() LogLevel {
	if c.Verbose {
		return LogLevelDebug
	}
	return c.Log.Level
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.sentinel }

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes ErrInvalidConfig and each field error to errors.Is/As.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
