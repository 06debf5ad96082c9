// SPDX-License-Identifier: MPL-2.0

// Package config loads depforge's user configuration through Viper.
//
// A config file named depforge.{cue,toml,yaml,yml,json} is looked up in the
// platform config directory (~/.config/depforge on Linux, ~/Library/Application
// Support/depforge on macOS, %APPDATA%\depforge on Windows) and then in the
// current directory; --config selects one explicitly. DEPFORGE_* environment
// variables override file values (DEPFORGE_LOG_LEVEL for log.level). CUE files
// are validated against the embedded #Config schema before merging.
package config
