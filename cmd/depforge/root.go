// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the depforge CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the depforge command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "depforge",
		Short: "Build native dependencies from a recipe",
		Long: TitleStyle.Render("depforge") + SubtitleStyle.Render(" - recipe-driven native dependency builds") + `

depforge reads a recipe listing the libraries and tools a project needs,
then downloads, configures, builds and installs each of them in order.
Packages that are already installed at a compatible version are skipped.

` + SubtitleStyle.Render("Examples:") + `
  depforge -r deps.gattai build all      Build every package
  depforge -r deps.gattai build zlib     Build one package
  depforge -r deps.gattai clean zlib     Clean one package
  depforge -r deps.gattai list           List packages
  depforge config show                   Show current configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (default is depforge.toml in the config directory)")
	root.PersistentFlags().StringVarP(&flags.recipe, "recipe", "r", "", "recipe file (.gattai, .json, .cue, .yaml or .toml)")

	root.AddCommand(
		newBuildCommand(app, flags),
		newCleanCommand(app, flags),
		newListCommand(app, flags),
		newValidateCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code carried by an ExitError.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
