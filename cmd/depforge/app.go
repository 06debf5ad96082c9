// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/depforge/depforge/internal/config"
	"github.com/depforge/depforge/internal/driver"
	"github.com/depforge/depforge/internal/issue"
	"github.com/depforge/depforge/pkg/recipe"

	"github.com/spf13/cobra"
)

type (
	// App wires CLI services. Command handlers receive an App and reach
	// configuration, output streams and driver options through it.
	App struct {
		Config        config.Provider
		DriverOptions []driver.Option
		stdout        io.Writer
		stderr        io.Writer
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		// DriverOptions are appended to the options every driver is built with.
		DriverOptions []driver.Option
		Stdout        io.Writer
		Stderr        io.Writer
	}

	// rootFlags are the persistent flags shared by every subcommand.
	rootFlags struct {
		verbose bool
		cfgFile string
		recipe  string
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:        deps.Config,
		DriverOptions: deps.DriverOptions,
		stdout:        deps.Stdout,
		stderr:        deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration and applies flag overrides.
func (a *App) loadConfig(ctx context.Context, flags *rootFlags) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.cfgFile})
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// loadRecipe reads the recipe named by --recipe or the config's recipe key.
func (a *App) loadRecipe(flags *rootFlags, cfg *config.Config) (*recipe.Recipe, error) {
	path := flags.recipe
	if path == "" {
		path = cfg.Recipe
	}
	if path == "" {
		return nil, issue.NewErrorContext().
			WithOperation("load recipe").
			WithIssue(issue.RecipeNotFoundId).
			WithSuggestion("Pass the recipe with --recipe").
			WithSuggestion("Or set 'recipe' in the depforge config file").
			Wrap(errors.New("no recipe given")).
			BuildError()
	}

	r, err := recipe.Load(path)
	if err != nil {
		id := issue.RecipeParseErrorId
		if errors.Is(err, os.ErrNotExist) {
			id = issue.RecipeNotFoundId
		}
		return nil, issue.NewErrorContext().
			WithOperation("load recipe").
			WithResource(path).
			WithIssue(id).
			WithSuggestion("Run 'depforge validate' for a detailed report").
			Wrap(err).
			BuildError()
	}
	return r, nil
}

// fail prints err for the user and returns the ExitError a handler should
// return. In verbose mode the linked issue guidance is rendered too.
func (a *App) fail(cmd *cobra.Command, err error, verbose bool, scheme config.ColorScheme) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if verbose && errors.As(err, &ae) && ae.Issue != 0 {
		if is := issue.Get(ae.Issue); is != nil {
			if rendered, rerr := is.Render(scheme.GlamourStyle()); rerr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: 1, Err: err}
}

// formatErrorForDisplay uses ActionableError.Format when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// ExitError carries the process exit code from a RunE handler up to Execute.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
