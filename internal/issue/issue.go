// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a well-known failure class.
type Id int

const (
	RecipeNotFoundId Id = iota + 1
	RecipeParseErrorId
	ConfigLoadFailedId
	SourceNotFoundId
	DownloadFailedId
	ChecksumMismatchId
	BuildFailedId
	PlatformToolMissingId
	VirtualenvFailedId
	UnknownTargetId
)

// MarkdownMsg is Markdown guidance shown to the user.
type MarkdownMsg string

// HttpLink is an external reference rendered under "See also".
type HttpLink string

// Issue is long-form guidance for one failure class.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the guidance with a "See also" section for links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the guidance for a terminal using a glamour style
// ("dark", "light", "notty", "ascii" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	recipeNotFoundIssue = &Issue{
		id: RecipeNotFoundId,
		mdMsg: `
# Recipe not found

depforge needs a recipe describing the dependencies to build.

## Things you can try
- Pass the recipe explicitly:
~~~
$ depforge build --recipe deps.gattai all
~~~
- Set a default in your config file:
~~~toml
recipe = "/path/to/deps.gattai"
~~~
- Or export ` + "`DEPFORGE_RECIPE`" + `.`,
	}

	recipeParseErrorIssue = &Issue{
		id: RecipeParseErrorId,
		mdMsg: `
# Recipe could not be parsed

The recipe is not valid JSON, CUE, YAML or TOML, or it does not match the recipe schema.

## Things you can try
- Every package needs a string ` + "`name`" + ` and ` + "`version`" + `
- ` + "`settings`" + ` must be an object and ` + "`packages`" + ` a list
- Run ` + "`depforge validate`" + ` to see the exact location of the error`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

## Things you can try
- Check the syntax of your depforge config file
- Inspect the effective configuration:
~~~
$ depforge config show
~~~
- Remove the file to fall back to defaults`,
	}

	sourceNotFoundIssue = &Issue{
		id: SourceNotFoundId,
		mdMsg: `
# Source directory not found

The archive was extracted (or skipped) but no ` + "`<name>`" + ` or ` + "`<name>-<version>`" + ` directory exists.

## Things you can try
- Set ` + "`source_dir`" + ` on the package when the archive unpacks to a different name
- Remove a stale archive from the root directory and rebuild`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Download failed

## Things you can try
- Check the ` + "`source`" + ` URL and your network connection
- Download the archive manually into the root directory; depforge reuses it`,
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch

The archive does not match the package's ` + "`sha256`" + ` property.

## Things you can try
- Delete the archive from the root directory and build again
- Confirm the digest published upstream and update the recipe`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Build failed

A required dependency failed to build. Later dependencies were not attempted.

## Things you can try
- Read the command output in the run log (` + "`depforge.log`" + ` by default)
- Mark the package ` + "`optional: true`" + ` if the rest of the recipe can proceed without it
- Re-run only the failing target:
~~~
$ depforge build <name>
~~~`,
	}

	platformToolMissingIssue = &Issue{
		id: PlatformToolMissingId,
		mdMsg: `
# Required platform tool missing

On Windows depforge drives builds through ` + "`nmake`" + `.

## Things you can try
- Run depforge from a Visual Studio developer command prompt
- Or call ` + "`vcvarsall.bat`" + ` before running depforge`,
		extLinks: []HttpLink{"https://learn.microsoft.com/cpp/build/reference/nmake-reference"},
	}

	virtualenvFailedIssue = &Issue{
		id: VirtualenvFailedId,
		mdMsg: `
# Virtual environment could not be created

The recipe sets ` + "`virtualenv`" + ` but neither ` + "`virtualenv`" + ` nor ` + "`python -m venv`" + ` succeeded.

## Things you can try
- Install virtualenv, or use a Python with the venv module
- Point the ` + "`python`" + ` setting at a working interpreter`,
		extLinks: []HttpLink{"https://docs.python.org/3/library/venv.html"},
	}

	unknownTargetIssue = &Issue{
		id: UnknownTargetId,
		mdMsg: `
# Unknown target

None of the requested targets name a package in the recipe.

## Things you can try
- List available targets:
~~~
$ depforge list
~~~
- Use ` + "`all`" + ` to select every package`,
	}

	issues = map[Id]*Issue{
		recipeNotFoundIssue.Id():      recipeNotFoundIssue,
		recipeParseErrorIssue.Id():    recipeParseErrorIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		sourceNotFoundIssue.Id():      sourceNotFoundIssue,
		downloadFailedIssue.Id():      downloadFailedIssue,
		checksumMismatchIssue.Id():    checksumMismatchIssue,
		buildFailedIssue.Id():         buildFailedIssue,
		platformToolMissingIssue.Id(): platformToolMissingIssue,
		virtualenvFailedIssue.Id():    virtualenvFailedIssue,
		unknownTargetIssue.Id():       unknownTargetIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
