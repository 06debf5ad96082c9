// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/depforge/depforge/internal/envscope"
)

func TestVirtualRuntime_ExecuteCapture(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rt := NewVirtualRuntime(WithAllowedDirs(dir), WithVirtualEnviron(func() []string { return nil }))

	res := rt.ExecuteCapture(context.Background(), &Command{
		Script: `echo "prefix=$PREFIX"`,
		Dir:    dir,
		Env:    envscope.New(map[string]string{"PREFIX": "/opt/deps"}),
	})
	if !res.Success() {
		t.Fatalf("ExecuteCapture() = %+v", res)
	}
	if strings.TrimSpace(res.Output) != "prefix=/opt/deps" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestVirtualRuntime_ExitStatus(t *testing.T) {
	t.Parallel()

	rt := NewVirtualRuntime()
	res := rt.ExecuteCapture(context.Background(), &Command{Script: "exit 7", Dir: t.TempDir()})
	if res.ExitCode != 7 || res.Error != nil {
		t.Errorf("ExecuteCapture(exit 7) = %+v", res)
	}
}

func TestVirtualRuntime_ConfinesRedirections(t *testing.T) {
	t.Parallel()

	allowed := t.TempDir()
	outside := t.TempDir()
	rt := NewVirtualRuntime(WithAllowedDirs(allowed))
	ctx := context.Background()

	res := rt.ExecuteCapture(ctx, &Command{Script: "echo ok > stamp.txt", Dir: allowed})
	if !res.Success() {
		t.Fatalf("write inside allowed dir = %+v", res)
	}
	if data, err := os.ReadFile(filepath.Join(allowed, "stamp.txt")); err != nil || strings.TrimSpace(string(data)) != "ok" {
		t.Errorf("stamp.txt = %q, %v", data, err)
	}

	target := filepath.Join(outside, "escape.txt")
	res = rt.ExecuteCapture(ctx, &Command{Script: "echo nope > '" + target + "'", Dir: allowed})
	if res.Success() {
		t.Error("write outside allowed dirs succeeded")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("escape.txt exists: %v", err)
	}

	res = rt.ExecuteCapture(ctx, &Command{Script: "echo quiet > /dev/null", Dir: allowed})
	if !res.Success() {
		t.Errorf("redirect to null device = %+v", res)
	}

	narrowed := rt.WithAllowed(outside)
	if narrowed.isAllowed(filepath.Join(allowed, "x")) || !narrowed.isAllowed(target) {
		t.Error("WithAllowed() did not replace the allowed set")
	}
}

func TestVirtualRuntime_isAllowed(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	rt := NewVirtualRuntime(WithAllowedDirs(root))

	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a", "b"), true},
		{filepath.Join(root, "..", "sibling"), false},
		{root + "-suffix", false},
		{filepath.Join(root, "..a"), true},
	}
	for _, tt := range tests {
		if got := rt.isAllowed(tt.path); got != tt.want {
			t.Errorf("isAllowed(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestVirtualRuntime_Validate(t *testing.T) {
	t.Parallel()

	rt := NewVirtualRuntime()
	if err := rt.Validate("if then fi (", "post.sh"); err == nil {
		t.Error("Validate() expected syntax error")
	}
	if err := rt.Validate("echo fine", "post.sh"); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
