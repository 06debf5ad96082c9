// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/depforge/depforge/internal/config"
	"github.com/depforge/depforge/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `depforge config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage depforge configuration",
		Long: `Manage depforge configuration.

Configuration is read from depforge.{cue,toml,yaml,yml,json} in:
  - Linux: ~/.config/depforge/
  - macOS: ~/Library/Application Support/depforge/
  - Windows: %APPDATA%\depforge\
and then from the current directory. DEPFORGE_* environment variables
override file values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return app.fail(cmd, err, flags.verbose, config.ColorSchemeAuto)
			}
			showConfig(app, cfg)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return app.fail(cmd, issue.WrapWithContext(err, "create configuration", ""), flags.verbose, config.ColorSchemeAuto)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, err, flags.verbose, config.ColorSchemeAuto)
			}
			fmt.Fprintln(app.stdout, dir)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, cfg *config.Config) {
	key := CmdStyle.Render
	value := SuccessStyle.Render
	unset := SubtitleStyle.Render("(unset)")
	str := func(s string) string {
		if s == "" {
			return unset
		}
		return value(s)
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s: %s\n", key("recipe"), str(cfg.Recipe))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("shell"), str(cfg.Shell))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("package_manager"), str(string(cfg.PackageManager)))
	fmt.Fprintf(app.stdout, "%s: %s\n", key("verbose"), value(fmt.Sprint(cfg.Verbose)))
	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", key("log"))
	fmt.Fprintf(app.stdout, "  level: %s\n", str(string(cfg.Log.Level)))
	fmt.Fprintf(app.stdout, "  file: %s\n", str(cfg.Log.File))
	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", key("ui"))
	fmt.Fprintf(app.stdout, "  color_scheme: %s\n", str(string(cfg.UI.ColorScheme)))
}
