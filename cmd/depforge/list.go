// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/depforge/depforge/internal/config"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/pkg/recipe"
)

// packageRow is one line of `depforge list`.
type packageRow struct {
	Name     string
	Version  string
	Source   string
	Build    string
	Optional bool
}

func newListCommand(app *App, flags *rootFlags) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the packages of a recipe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return app.fail(cmd, err, flags.verbose, config.ColorSchemeAuto)
			}
			r, err := app.loadRecipe(flags, cfg)
			if err != nil {
				return app.fail(cmd, err, cfg.Verbose, cfg.UI.ColorScheme)
			}

			rows := packageRows(r)
			if !markdown {
				return writeTable(app.stdout, rows)
			}
			out, err := glamour.Render(markdownTable(r.Filename, rows), cfg.UI.ColorScheme.GlamourStyle())
			if err != nil {
				return app.fail(cmd, err, cfg.Verbose, cfg.UI.ColorScheme)
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the list as a Markdown table")
	return cmd
}

func packageRows(r *recipe.Recipe) []packageRow {
	res := props.NewResolver(r.Settings, nil)
	rows := make([]packageRow, 0, len(r.Packages))
	for _, dep := range r.Packages {
		row := packageRow{
			Name:     dep.Name,
			Version:  dep.Version,
			Source:   sourceKind(dep, res),
			Optional: dep.Optional(),
		}
		if row.Source == "source" {
			row.Build = res.RawString(dep, "build_type", "cxx")
		}
		rows = append(rows, row)
	}
	return rows
}

// sourceKind names how a package is obtained.
func sourceKind(dep *recipe.Dependency, res *props.Resolver) string {
	for _, kind := range []string{"dmg", "binary", "easy_install", "package_manager_install"} {
		if res.RawString(dep, kind, "") != "" {
			return kind
		}
	}
	return "source"
}

func writeTable(w io.Writer, rows []packageRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSOURCE\tBUILD\tOPTIONAL")
	for _, row := range rows {
		build := row.Build
		if build == "" {
			build = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", row.Name, row.Version, row.Source, build, row.Optional)
	}
	return tw.Flush()
}

func markdownTable(title string, rows []packageRow) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString("| Name | Version | Source | Build | Optional |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, row := range rows {
		optional := ""
		if row.Optional {
			optional = "yes"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", row.Name, row.Version, row.Source, row.Build, optional)
	}
	return sb.String()
}
