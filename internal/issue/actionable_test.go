// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file")
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "load recipe"}, "failed to load recipe"},
		{"with resource", &ActionableError{Operation: "load recipe", Resource: "deps.json"}, "failed to load recipe: deps.json"},
		{"with cause", &ActionableError{Operation: "build zlib", Cause: cause}, "failed to build zlib: no such file"},
		{
			"all fields",
			&ActionableError{Operation: "load recipe", Resource: "deps.json", Suggestions: []string{"x"}, Cause: cause},
			"failed to load recipe: deps.json: no such file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_ErrorsIsAndAs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := fmt.Errorf("outer: %w", NewErrorContext().
		WithOperation("download source").
		Wrap(fmt.Errorf("inner: %w", sentinel)).
		BuildError())

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is did not reach the sentinel through ActionableError")
	}
	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("errors.As did not find *ActionableError")
	}
	if ae.Operation != "download source" {
		t.Errorf("Operation = %q", ae.Operation)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("connection refused")
	err := &ActionableError{
		Operation:   "download source",
		Resource:    "https://example.invalid/zlib.tar.gz",
		Suggestions: []string{"Check the URL", "Retry later"},
		Cause:       fmt.Errorf("GET: %w", root),
	}

	plain := err.Format(false)
	if !strings.HasPrefix(plain, err.Error()) {
		t.Errorf("Format(false) should start with Error(), got %q", plain)
	}
	for _, want := range []string{"\n  • Check the URL", "\n  • Retry later"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q in %q", want, plain)
		}
	}
	if strings.Contains(plain, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. GET: connection refused", "2. connection refused"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q in %q", want, verbose)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if got := NewErrorContext().WithResource("x").Build(); got != nil {
		t.Errorf("Build() without operation = %v, want nil", got)
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}

	ctx := NewErrorContext().
		WithOperation("build").
		WithResource("libpng").
		WithSuggestion("a").
		WithIssue(BuildFailedId)
	first := ctx.Build()
	second := ctx.WithSuggestion("b").Build()

	if len(first.Suggestions) != 1 {
		t.Errorf("first build mutated by later suggestion: %v", first.Suggestions)
	}
	if len(second.Suggestions) != 2 || !second.HasSuggestions() {
		t.Errorf("second.Suggestions = %v", second.Suggestions)
	}
	if second.Issue != BuildFailedId {
		t.Errorf("Issue = %d, want %d", second.Issue, BuildFailedId)
	}
}

func TestWrapWithContext(t *testing.T) {
	t.Parallel()

	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}
	cause := errors.New("boom")
	got := WrapWithContext(cause, "extract archive", "zlib.tar.gz")
	if got.Error() != "failed to extract archive: zlib.tar.gz: boom" {
		t.Errorf("Error() = %q", got.Error())
	}
	if NewActionableError("op").HasSuggestions() {
		t.Error("NewActionableError should have no suggestions")
	}
}
