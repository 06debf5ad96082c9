// SPDX-License-Identifier: MPL-2.0

package envscope

import (
	"errors"
	"os"
	"reflect"
	"slices"
	"testing"

	"github.com/depforge/depforge/internal/subst"
)

func TestCompose_Precedence(t *testing.T) {
	t.Parallel()

	o, err := Compose(
		map[string]string{"CC": "gcc", "CFLAGS": "-O2"},
		map[string]string{"CC": "clang"},
		Options{GOOS: "linux"},
	)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if v, _ := o.Lookup("CC"); v != "clang" {
		t.Errorf("CC = %q, want clang", v)
	}
	if v, _ := o.Lookup("CFLAGS"); v != "-O2" {
		t.Errorf("CFLAGS = %q, want -O2", v)
	}
	if o.Len() != 2 {
		t.Errorf("Len() = %d, want 2", o.Len())
	}
}

func TestCompose_POSIXReferences(t *testing.T) {
	t.Parallel()

	environ := []string{"PATH=/usr/bin", "HOME=/home/dev"}
	o, err := Compose(nil, map[string]string{
		"PATH":        "%(ROOTDIR)s/bin:$PATH",
		"PKG":         "${HOME}/lib/pkgconfig",
		"UNSET":       "x$NOT_DEFINED",
		"PERCENT_WIN": "%PATH%",
	}, Options{Environ: environ, GOOS: "linux", Bindings: subst.Bindings{subst.RootDir: "/opt/deps"}})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	want := map[string]string{
		"PATH":        "/opt/deps/bin:/usr/bin",
		"PKG":         "/home/dev/lib/pkgconfig",
		"UNSET":       "x",
		"PERCENT_WIN": "%PATH%",
	}
	for k, w := range want {
		if got, _ := o.Lookup(k); got != w {
			t.Errorf("%s = %q, want %q", k, got, w)
		}
	}
}

func TestCompose_WindowsReferences(t *testing.T) {
	t.Parallel()

	o, err := Compose(nil, map[string]string{
		"INCLUDE": `%(ROOTDIR)s\include;%INCLUDE%`,
		"DOLLAR":  "$INCLUDE",
	}, Options{Environ: []string{`INCLUDE=C:\VC\include`}, GOOS: "windows", Bindings: subst.Bindings{subst.RootDir: `C:\deps`}})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got, _ := o.Lookup("INCLUDE"); got != `C:\deps\include;C:\VC\include` {
		t.Errorf("INCLUDE = %q", got)
	}
	if got, _ := o.Lookup("include"); got != `C:\deps\include;C:\VC\include` {
		t.Errorf("case-insensitive lookup = %q", got)
	}
	if got, _ := o.Lookup("DOLLAR"); got != "$INCLUDE" {
		t.Errorf("DOLLAR = %q, want literal", got)
	}
}

func TestCompose_MissingBinding(t *testing.T) {
	t.Parallel()

	_, err := Compose(nil, map[string]string{"X": "%(NOPE)s"}, Options{GOOS: "linux"})
	if !errors.Is(err, subst.ErrMissingBinding) {
		t.Errorf("Compose() error = %v, want ErrMissingBinding", err)
	}
}

// Global entries were expanded with the settings; a literal placeholder left
// by "%%" unescaping must survive.
func TestCompose_GlobalEntriesNotReexpanded(t *testing.T) {
	t.Parallel()

	o, err := Compose(
		map[string]string{"LITERAL": "%(ROOTDIR)s/lib", "PREFIX": "/opt/deps", "OVERRIDDEN": "%(ROOTDIR)s"},
		map[string]string{"OVERRIDDEN": "%(ROOTDIR)s/inst"},
		Options{GOOS: "linux", Bindings: subst.Bindings{subst.RootDir: "/opt/deps"}},
	)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	want := map[string]string{
		"LITERAL":    "%(ROOTDIR)s/lib",
		"PREFIX":     "/opt/deps",
		"OVERRIDDEN": "/opt/deps/inst",
	}
	for k, w := range want {
		if got, _ := o.Lookup(k); got != w {
			t.Errorf("%s = %q, want %q", k, got, w)
		}
	}
}

func TestCompose_CommandSubstitutionRejected(t *testing.T) {
	t.Parallel()

	if _, err := Compose(nil, map[string]string{"X": "$(id -u)"}, Options{GOOS: "linux"}); err == nil {
		t.Error("Compose() expected error for command substitution")
	}
}

func TestOverlay_Environ(t *testing.T) {
	t.Parallel()

	base := []string{"A=1", "B=2", "C=3"}
	o := New(map[string]string{"B": "20", "D": "4"})
	got := o.Environ(base)

	want := []string{"A=1", "C=3", "B=20", "D=4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Environ() = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(base, []string{"A=1", "B=2", "C=3"}) {
		t.Errorf("Environ() modified base: %v", base)
	}

	env := o.ShellEnviron(base)
	if v := env.Get("D"); v.String() != "4" {
		t.Errorf("ShellEnviron D = %q", v.String())
	}
}

func TestOverlay_With(t *testing.T) {
	t.Parallel()

	o := New(map[string]string{"A": "1"})
	next := o.With("B", "2")
	if _, ok := o.Lookup("B"); ok {
		t.Error("With() mutated the receiver")
	}
	if !slices.Equal(next.Keys(), []string{"A", "B"}) {
		t.Errorf("Keys() = %v", next.Keys())
	}
	if Empty().Len() != 0 {
		t.Error("Empty() is not empty")
	}
}

// Composing and applying an overlay never changes the process environment.
func TestCompose_ProcessEnvironmentUntouched(t *testing.T) {
	t.Parallel()

	before := os.Environ()
	o, err := Compose(map[string]string{"DEPFORGE_TEST_OVERLAY": "x"}, map[string]string{"PATH": "/nowhere"}, Options{Environ: before, GOOS: "linux"})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	_ = o.Environ(before)

	if _, ok := os.LookupEnv("DEPFORGE_TEST_OVERLAY"); ok {
		t.Error("overlay leaked into the process environment")
	}
	if !slices.Equal(before, os.Environ()) {
		t.Error("process environment changed")
	}
}
