// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/depforge/depforge/internal/config"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/internal/strategy"
	"github.com/depforge/depforge/pkg/recipe"
)

func newValidateCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [recipe]",
		Short: "Check a recipe without building anything",
		Long: `Check that a recipe parses, matches the recipe schema, and that every
package names a known build type and build format.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return app.fail(cmd, err, flags.verbose, config.ColorSchemeAuto)
			}
			f := *flags
			if len(args) == 1 {
				f.recipe = args[0]
			}
			r, err := app.loadRecipe(&f, cfg)
			if err != nil {
				return app.fail(cmd, err, cfg.Verbose, cfg.UI.ColorScheme)
			}

			problems := validateRecipe(r, strategy.DefaultRegistry())
			if len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintf(app.stderr, "%s %v\n", ErrorStyle.Render("✗"), p)
				}
				return app.fail(cmd, fmt.Errorf("%s: %d problem(s) found", r.Filename, len(problems)), cfg.Verbose, cfg.UI.ColorScheme)
			}
			fmt.Fprintf(app.stdout, "%s %s is valid (%d packages)\n",
				SuccessStyle.Render("✓"), CmdStyle.Render(r.Filename), len(r.Packages))
			return nil
		},
	}
}

// validateRecipe reports packages that could not be built as declared.
func validateRecipe(r *recipe.Recipe, strategies *strategy.Registry) []error {
	res := props.NewResolver(r.Settings, nil)
	seen := make(map[string]bool, len(r.Packages))
	var problems []error

	for _, dep := range r.Packages {
		if seen[dep.Name] {
			problems = append(problems, fmt.Errorf("package %s: declared more than once", dep.Name))
		}
		seen[dep.Name] = true

		if sourceKind(dep, res) != "source" {
			continue
		}
		buildType := res.RawString(dep, "build_type", string(strategy.TypeCxx))
		if _, err := strategies.Get(strategy.Type(buildType)); err != nil {
			problems = append(problems, fmt.Errorf("package %s: %w", dep.FullName(), err))
			continue
		}
		if buildType != string(strategy.TypeCxx) {
			continue
		}
		if format := res.RawString(dep, "format", ""); format != "" {
			if _, err := strategy.NewBackend(format, res.RawString(dep, "project_file", "")); err != nil {
				problems = append(problems, fmt.Errorf("package %s: %w", dep.FullName(), err))
			}
		}
	}
	return problems
}
