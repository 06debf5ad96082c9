// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/depforge/depforge/internal/config"
	"github.com/depforge/depforge/internal/driver"
	"github.com/depforge/depforge/internal/issue"
	"github.com/depforge/depforge/internal/logging"
	"github.com/depforge/depforge/internal/orchestrator"

	"github.com/spf13/cobra"
)

func newBuildCommand(app *App, flags *rootFlags) *cobra.Command {
	var clean bool
	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "Build packages (all when no target is given)",
		Long: `Build the named packages in recipe order. "all" or no target selects
every package. Already installed packages are skipped; the first failure of a
required package stops the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := driver.ActionBuild
			if clean {
				action = driver.ActionClean
			}
			return app.runRecipe(cmd, flags, args, action)
		},
	}
	cmd.Flags().BoolVar(&clean, "clean", false, "clean instead of build")
	return cmd
}

func newCleanCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [targets...]",
		Short: "Clean packages (all when no target is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runRecipe(cmd, flags, args, driver.ActionClean)
		},
	}
}

func (a *App) runRecipe(cmd *cobra.Command, flags *rootFlags, targets []string, action driver.Action) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return a.fail(cmd, err, flags.verbose, config.ColorSchemeAuto)
	}
	scheme := cfg.UI.ColorScheme

	r, err := a.loadRecipe(flags, cfg)
	if err != nil {
		return a.fail(cmd, err, cfg.Verbose, scheme)
	}

	logger, err := logging.New(logging.Options{
		Level:  string(cfg.EffectiveLogLevel()),
		File:   cfg.Log.File,
		Stderr: a.stderr,
		Prefix: "depforge",
	})
	if err != nil {
		return a.fail(cmd, err, cfg.Verbose, scheme)
	}
	defer logger.Close()
	logger.Debug("run started", "recipe", r.Filename, "action", string(action), "log", logger.Path)

	opts := append([]driver.Option{
		driver.WithLogger(logger.Logger),
		driver.WithShell(cfg.Shell),
		driver.WithPackageManager(string(cfg.PackageManager)),
	}, a.DriverOptions...)

	d, err := driver.New(ctx, r, opts...)
	if err != nil {
		return a.fail(cmd, describeRunError(err), cfg.Verbose, scheme)
	}

	sum, err := d.Run(ctx, targets, action)
	if sum != nil {
		a.printSummary(sum, action)
	}
	if err != nil {
		return a.fail(cmd, describeRunError(err), cfg.Verbose, scheme)
	}
	return nil
}

// describeRunError attaches the matching issue and suggestions to a driver error.
func describeRunError(err error) error {
	ec := issue.NewErrorContext().Wrap(err)
	var be *orchestrator.BuildError
	switch {
	case errors.As(err, &be):
		ec.WithOperation("build").
			WithResource(be.Dependency).
			WithIssue(issue.BuildFailedId).
			WithSuggestion(fmt.Sprintf("The %s stage failed; see the run log for command output", be.Stage))
	case errors.Is(err, driver.ErrMissingTool):
		ec.WithOperation("prepare build").
			WithIssue(issue.PlatformToolMissingId).
			WithSuggestion("Run depforge from a Visual Studio developer command prompt")
	case errors.Is(err, driver.ErrVirtualenv):
		ec.WithOperation("prepare build").
			WithIssue(issue.VirtualenvFailedId).
			WithSuggestion("Install virtualenv or use a Python with the venv module")
	case errors.Is(err, driver.ErrUnknownTarget):
		ec.WithOperation("select targets").
			WithIssue(issue.UnknownTargetId).
			WithSuggestion("Run 'depforge list' to see the package names")
	default:
		ec.WithOperation("run recipe")
	}
	return ec.BuildError()
}

func (a *App) printSummary(sum *driver.Summary, action driver.Action) {
	done := "built"
	if action == driver.ActionClean {
		done = "cleaned"
	}
	for _, name := range sum.Succeeded {
		fmt.Fprintf(a.stdout, "%s %s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(name), SubtitleStyle.Render(done))
	}
	for _, name := range sum.Failed {
		fmt.Fprintf(a.stdout, "%s %s %s\n", WarningStyle.Render("!"), CmdStyle.Render(name), SubtitleStyle.Render("failed (optional)"))
	}
	if n := len(sum.Skipped); n > 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render(fmt.Sprintf("%d package(s) not selected", n)))
	}
}
