// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Backend formats, as used by the format property.
const (
	FormatAutoconf    = "autoconf"
	FormatGNUMake     = "gnumake"
	FormatMSVC        = "msvc"
	FormatMSVCProject = "msvcproject"

	defaultMSVCMakefile = "makefile.vc"
)

type (
	// Invocation holds the inputs a Backend turns into command lines.
	Invocation struct {
		SourceDir   string
		BuildDir    string
		ProjectFile string
		// ConfigureArgs are passed to the configure step only.
		ConfigureArgs []string
		// Args are passed to every step.
		Args []string
	}

	// Backend produces the command lines of one build system. An empty
	// command means the step does not exist for the backend.
	Backend interface {
		Name() string
		Configure(inv *Invocation) string
		Build(inv *Invocation) string
		Install(inv *Invocation) string
		Clean(inv *Invocation) string
	}

	autoconfBackend    struct{}
	gnuMakeBackend     struct{}
	msvcBackend        struct{}
	msvcProjectBackend struct{}
)

// NewBackend returns the backend for format. For msvc the project file picks
// between nmake makefiles (".vc") and msbuild projects.
func NewBackend(format, projectFile string) (Backend, error) {
	switch format {
	case FormatAutoconf:
		return autoconfBackend{}, nil
	case FormatGNUMake:
		return gnuMakeBackend{}, nil
	case FormatMSVC:
		if projectFile == "" || filepath.Ext(projectFile) == ".vc" {
			return msvcBackend{}, nil
		}
		return msvcProjectBackend{}, nil
	case FormatMSVCProject:
		return msvcProjectBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown build format %q", format)
	}
}

func (autoconfBackend) Name() string { return FormatAutoconf }

func (autoconfBackend) Configure(inv *Invocation) string {
	configure := "./configure"
	if filepath.Clean(inv.SourceDir) != filepath.Clean(inv.BuildDir) {
		configure = quote(filepath.Join(inv.SourceDir, "configure"))
	}
	return command(append([]string{configure}, append(append([]string(nil), inv.ConfigureArgs...), inv.Args...)...))
}

func (autoconfBackend) Build(inv *Invocation) string {
	return command(append([]string{"make"}, inv.Args...))
}

func (autoconfBackend) Install(inv *Invocation) string {
	return command(append([]string{"make", "install"}, inv.Args...))
}

func (autoconfBackend) Clean(*Invocation) string { return "make clean" }

func (gnuMakeBackend) Name() string { return FormatGNUMake }

func (gnuMakeBackend) Configure(*Invocation) string { return "" }

func (gnuMakeBackend) Build(inv *Invocation) string {
	return command(append(makeFile("make", inv.ProjectFile), inv.Args...))
}

func (gnuMakeBackend) Install(inv *Invocation) string {
	return command(append(append(makeFile("make", inv.ProjectFile), "install"), inv.Args...))
}

func (gnuMakeBackend) Clean(inv *Invocation) string {
	return command(append(makeFile("make", inv.ProjectFile), "clean"))
}

func (msvcBackend) Name() string { return FormatMSVC }

func (msvcBackend) Configure(*Invocation) string { return "" }

func (msvcBackend) Build(inv *Invocation) string {
	return command(append(makeFile("nmake", msvcMakefile(inv)), inv.Args...))
}

func (msvcBackend) Install(inv *Invocation) string {
	return command(append(append(makeFile("nmake", msvcMakefile(inv)), "install"), inv.Args...))
}

func (msvcBackend) Clean(inv *Invocation) string {
	return command(append(makeFile("nmake", msvcMakefile(inv)), "clean"))
}

func (msvcProjectBackend) Name() string { return FormatMSVCProject }

func (msvcProjectBackend) Configure(*Invocation) string { return "" }

func (msvcProjectBackend) Build(inv *Invocation) string {
	return command(append([]string{"msbuild", quote(inv.ProjectFile), "/t:Build", "/p:Configuration=Release"}, inv.Args...))
}

func (msvcProjectBackend) Install(*Invocation) string { return "" }

func (msvcProjectBackend) Clean(inv *Invocation) string {
	return command([]string{"msbuild", quote(inv.ProjectFile), "/t:Clean"})
}

func msvcMakefile(inv *Invocation) string {
	if inv.ProjectFile == "" {
		return defaultMSVCMakefile
	}
	return inv.ProjectFile
}

func makeFile(tool, projectFile string) []string {
	if projectFile == "" {
		return []string{tool}
	}
	return []string{tool, "-f", quote(projectFile)}
}

func command(words []string) string {
	return strings.Join(words, " ")
}

// dquote wraps s in double quotes.
func dquote(s string) string {
	return `"` + s + `"`
}

// quote wraps s in double quotes when it contains whitespace.
func quote(s string) string {
	if strings.ContainsAny(s, " \t") {
		return dquote(s)
	}
	return s
}
