// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"github.com/depforge/depforge/internal/config"
	"github.com/depforge/depforge/internal/driver"
	"github.com/depforge/depforge/internal/issue"
	"github.com/depforge/depforge/internal/orchestrator"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/internal/runtime/runtimetest"
	"github.com/depforge/depforge/internal/testutil"
)

// staticConfig serves a copy of cfg, so flag overrides never leak between runs.
func staticConfig(cfg *config.Config) config.Provider {
	return config.ProviderFunc(func(context.Context, config.LoadOptions) (*config.Config, error) {
		c := *cfg
		return &c, nil
	})
}

type cli struct {
	app            *App
	rec            *runtimetest.Recorder
	stdout, stderr bytes.Buffer
	dir            string
}

func newCLI(t *testing.T, cfg *config.Config, respond runtimetest.Responder) *cli {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("expected command lines use POSIX paths")
	}

	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Log.File = ""
	}
	c := &cli{dir: t.TempDir()}
	c.rec = runtimetest.NewRecorder(func(call runtimetest.Call) *runtime.Result {
		if respond != nil {
			if r := respond(call); r != nil {
				return r
			}
		}
		if call.Capture && len(call.Args) > 1 && (call.Args[1] == "--version" || call.Args[0] == "pkg-config") {
			return runtimetest.Exit(127)
		}
		return nil
	})
	c.app = NewApp(Dependencies{
		Config: staticConfig(cfg),
		DriverOptions: []driver.Option{
			driver.WithRuntime(c.rec),
			driver.WithWorkDir(c.dir),
			driver.WithHomeDir("/home/dev"),
			driver.WithGOOS("linux"),
			driver.WithEnviron(func() []string { return []string{"PATH=/usr/bin"} }),
		},
		Stdout: &c.stdout,
		Stderr: &c.stderr,
	})
	return c
}

// writeRecipe writes a JSON recipe into the fixture directory.
func (c *cli) writeRecipe(t *testing.T, packages ...map[string]any) string {
	t.Helper()

	data, err := json.Marshal(map[string]any{"settings": map[string]any{}, "packages": packages})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(c.dir, "deps.gattai")
	testutil.MustWriteFile(t, path, data, 0o644)
	return path
}

func (c *cli) run(args ...string) error {
	root := NewRootCommand(c.app)
	root.SetArgs(args)
	root.SetOut(&c.stdout)
	root.SetErr(&c.stderr)
	return root.ExecuteContext(context.Background())
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %T is not an ExitError: %v", err, err)
	}
	return exitErr.Code
}

func TestBuild_Success(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil, nil)
	path := c.writeRecipe(t,
		map[string]any{"name": "zlib", "version": "1.2.11", "install_check_cmd": "check-zlib"},
		map[string]any{"name": "png", "version": "1.6", "install_check_cmd": "check-png"},
	)

	if err := c.run("-r", path, "build", "zlib"); err != nil {
		t.Fatalf("build error = %v\nstderr: %s", err, c.stderr.String())
	}
	out := c.stdout.String()
	if !strings.Contains(out, "zlib-1.2.11 built") {
		t.Errorf("stdout missing built line:\n%s", out)
	}
	if !strings.Contains(out, "1 package(s) not selected") {
		t.Errorf("stdout missing skipped count:\n%s", out)
	}
	if !strings.Contains(c.stderr.String(), "Getting zlib-1.2.11") {
		t.Errorf("log missing progress line:\n%s", c.stderr.String())
	}
}

func TestBuild_RequiredFailure(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil, func(call runtimetest.Call) *runtime.Result {
		if strings.Contains(call.Script, "six==1.0") {
			return runtimetest.Exit(1)
		}
		return nil
	})
	path := c.writeRecipe(t, map[string]any{"name": "six", "version": "1.0", "easy_install": "six==1.0"})

	err := c.run("-r", path, "build")
	if code := exitCode(t, err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !errors.Is(err, orchestrator.ErrBuildFailed) {
		t.Errorf("error chain lost ErrBuildFailed: %v", err)
	}
	if !strings.Contains(c.stderr.String(), "failed to build: six-1.0") {
		t.Errorf("stderr missing actionable message:\n%s", c.stderr.String())
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"clean", "six"}, {"build", "--clean", "six"}} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			t.Parallel()

			c := newCLI(t, nil, nil)
			path := c.writeRecipe(t, map[string]any{"name": "six", "version": "1.0", "easy_install": "six==1.0"})
			if err := c.run(append([]string{"-r", path}, args...)...); err != nil {
				t.Fatalf("error = %v", err)
			}
			if got := c.rec.Lines(); len(got) != 1 || got[0] != "easy_install -m six" {
				t.Errorf("commands = %v", got)
			}
			if !strings.Contains(c.stdout.String(), "six-1.0 cleaned") {
				t.Errorf("stdout = %q", c.stdout.String())
			}
		})
	}
}

func TestBuild_RecipeErrors(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil, nil)
	bad := filepath.Join(c.dir, "bad.json")
	testutil.MustWriteFile(t, bad, []byte(`{"packages": [{"name": "x"}]}`), 0o644)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no recipe", []string{"build"}, "no recipe given"},
		{"missing file", []string{"-r", filepath.Join(c.dir, "nope.json"), "build"}, "failed to load recipe"},
		{"schema violation", []string{"-r", bad, "build"}, "failed to load recipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t, nil, nil)
			err := c.run(tt.args...)
			if code := exitCode(t, err); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(c.stderr.String(), tt.want) {
				t.Errorf("stderr missing %q:\n%s", tt.want, c.stderr.String())
			}
		})
	}
}

func TestBuild_UsesConfiguredRecipe(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Log.File = ""
	c := newCLI(t, cfg, nil)
	cfg.Recipe = c.writeRecipe(t, map[string]any{"name": "zlib", "version": "1.0", "install_check_cmd": "check-zlib"})

	if err := c.run("build"); err != nil {
		t.Fatalf("build error = %v\nstderr: %s", err, c.stderr.String())
	}
	if !strings.Contains(c.stdout.String(), "zlib-1.0 built") {
		t.Errorf("stdout = %q", c.stdout.String())
	}
}

func TestBuild_WritesRunLog(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	c := newCLI(t, cfg, nil)
	cfg.Log.File = filepath.Join(c.dir, "depforge.log")
	path := c.writeRecipe(t, map[string]any{"name": "zlib", "version": "1.0", "install_check_cmd": "check-zlib"})

	if err := c.run("-r", path, "build"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Getting zlib-1.0") || !strings.Contains(string(data), "run=") {
		t.Errorf("run log = %q", data)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil, nil)
	path := c.writeRecipe(t,
		map[string]any{"name": "zlib", "version": "1.2.11", "source": "https://example.invalid/zlib.tar.gz"},
		map[string]any{"name": "six", "version": "1.0", "easy_install": "six", "optional": true},
		map[string]any{"name": "numpy", "version": "1.0", "build_type": "python"},
	)

	if err := c.run("-r", path, "list"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(c.stdout.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("list output:\n%s", c.stdout.String())
	}
	for i, want := range [][]string{
		{"NAME", "VERSION", "SOURCE", "BUILD", "OPTIONAL"},
		{"zlib", "1.2.11", "source", "cxx", "false"},
		{"six", "1.0", "easy_install", "-", "true"},
		{"numpy", "1.0", "source", "python", "false"},
	} {
		if got := strings.Fields(lines[i]); strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("line %d = %v, want %v", i, got, want)
		}
	}
	if len(c.rec.Calls()) != 0 {
		t.Errorf("list ran commands: %v", c.rec.Lines())
	}
}

func TestList_Markdown(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil, nil)
	path := c.writeRecipe(t, map[string]any{"name": "zlib", "version": "1.2.11"})

	if err := c.run("-r", path, "list", "--markdown"); err != nil {
		t.Fatal(err)
	}
	out := c.stdout.String()
	for _, want := range []string{"zlib", "1.2.11"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q:\n%s", want, out)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		c := newCLI(t, nil, nil)
		path := c.writeRecipe(t,
			map[string]any{"name": "zlib", "version": "1.0", "format": "gnumake"},
			map[string]any{"name": "six", "version": "1.0", "build_type": "python"},
		)
		if err := c.run("validate", path); err != nil {
			t.Fatalf("validate error = %v\n%s", err, c.stderr.String())
		}
		if !strings.Contains(c.stdout.String(), "is valid (2 packages)") {
			t.Errorf("stdout = %q", c.stdout.String())
		}
	})

	t.Run("problems", func(t *testing.T) {
		t.Parallel()
		c := newCLI(t, nil, nil)
		path := c.writeRecipe(t,
			map[string]any{"name": "zlib", "version": "1.0", "format": "scons"},
			map[string]any{"name": "ring", "version": "1.0", "build_type": "rust"},
			map[string]any{"name": "zlib", "version": "1.1", "easy_install": "zlib"},
		)
		err := c.run("-r", path, "validate")
		if code := exitCode(t, err); code != 1 {
			t.Fatalf("exit code = %d, want 1", code)
		}
		stderr := c.stderr.String()
		for _, want := range []string{`unknown build format "scons"`, "build strategy not registered: rust", "declared more than once", "3 problem(s) found"} {
			if !strings.Contains(stderr, want) {
				t.Errorf("stderr missing %q:\n%s", want, stderr)
			}
		}
	})
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Recipe = "/r/deps.gattai"
	c := newCLI(t, cfg, nil)

	if err := c.run("config", "show"); err != nil {
		t.Fatal(err)
	}
	out := c.stdout.String()
	for _, want := range []string{"Current Configuration", "recipe: /r/deps.gattai", "shell: (unset)", "package_manager: easy_install", "level: info"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil, nil)
	c.app.Config = config.ProviderFunc(func(context.Context, config.LoadOptions) (*config.Config, error) {
		return nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithSuggestion("Check the file syntax").
			Wrap(errors.New("bad toml")).
			BuildError()
	})

	err := c.run("config", "show")
	if code := exitCode(t, err); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(c.stderr.String(), "• Check the file syntax") {
		t.Errorf("stderr missing suggestion:\n%s", c.stderr.String())
	}
}

func TestDescribeRunError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"build", &orchestrator.BuildError{Dependency: "zlib-1.0", Stage: orchestrator.StageBuild, Err: errors.New("x")}, issue.BuildFailedId},
		{"nmake", &driver.ConfigurationError{Reason: "cannot run nmake", Err: driver.ErrMissingTool}, issue.PlatformToolMissingId},
		{"virtualenv", &driver.ConfigurationError{Reason: "venv", Err: driver.ErrVirtualenv}, issue.VirtualenvFailedId},
		{"targets", &driver.UnknownTargetError{Targets: []string{"x"}}, issue.UnknownTargetId},
		{"other", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := describeRunError(tt.err)
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("describeRunError() = %T", err)
			}
			if ae.Issue != tt.want {
				t.Errorf("Issue = %d, want %d", ae.Issue, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause not preserved")
			}
		})
	}
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: mutates package-level Version/Commit/BuildDate.
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})

	Version, Commit, BuildDate = "v1.2.3", "abc1234", "2026-01-02T03:04:05Z"
	if got, want := getVersionString(), "v1.2.3 (commit: abc1234, built: 2026-01-02T03:04:05Z)"; got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}
}
