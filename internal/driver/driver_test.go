// SPDX-License-Identifier: MPL-2.0

package driver_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	goruntime "runtime"
	"slices"
	"strings"
	"testing"

	"github.com/depforge/depforge/internal/driver"
	"github.com/depforge/depforge/internal/orchestrator"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/internal/runtime/runtimetest"
	"github.com/depforge/depforge/internal/strategy"
	"github.com/depforge/depforge/internal/testutil"
	"github.com/depforge/depforge/pkg/recipe"
)

type fixture struct {
	rec     *runtimetest.Recorder
	workDir string
}

// load builds a recipe from a settings map and package list.
func load(t *testing.T, settings map[string]any, packages ...map[string]any) *recipe.Recipe {
	t.Helper()

	if settings == nil {
		settings = map[string]any{}
	}
	if packages == nil {
		packages = []map[string]any{}
	}
	data, err := json.Marshal(map[string]any{"settings": settings, "packages": packages})
	if err != nil {
		t.Fatal(err)
	}
	r, err := recipe.LoadBytes(data, filepath.Join(t.TempDir(), "deps.json"), "linux")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	return r
}

func newFixture(t *testing.T, respond runtimetest.Responder) *fixture {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("expected command lines use POSIX paths")
	}

	f := &fixture{workDir: t.TempDir()}
	f.rec = runtimetest.NewRecorder(func(c runtimetest.Call) *runtime.Result {
		if respond != nil {
			if r := respond(c); r != nil {
				return r
			}
		}
		if c.Capture && len(c.Args) > 1 && (c.Args[1] == "--version" || c.Args[0] == "pkg-config") {
			return runtimetest.Exit(127)
		}
		return nil
	})
	return f
}

func (f *fixture) driver(t *testing.T, r *recipe.Recipe, opts ...driver.Option) *driver.Driver {
	t.Helper()

	opts = append([]driver.Option{
		driver.WithRuntime(f.rec),
		driver.WithWorkDir(f.workDir),
		driver.WithHomeDir("/home/dev"),
		driver.WithPython("python3"),
		driver.WithGOOS("linux"),
		driver.WithEnviron(func() []string { return []string{"PATH=/usr/bin"} }),
	}, opts...)
	d, err := driver.New(context.Background(), r, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func installed(name string) map[string]any {
	return map[string]any{"name": name, "version": "1.0", "install_check_cmd": "check-" + name}
}

func easyInstall(name string) map[string]any {
	return map[string]any{"name": name, "version": "1.0", "easy_install": name + "==1.0"}
}

func failScript(substr string) runtimetest.Responder {
	return func(c runtimetest.Call) *runtime.Result {
		if c.Script != "" && strings.Contains(c.Script, substr) {
			return runtimetest.Exit(1)
		}
		return nil
	}
}

func TestRun_SelectsTargets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		targets   []string
		succeeded []string
		skipped   []string
		lines     []string
	}{
		{
			name:      "named target",
			targets:   []string{"b"},
			succeeded: []string{"b-1.0"},
			skipped:   []string{"a-1.0", "c-1.0"},
			lines:     []string{"check-b"},
		},
		{
			name:      "all",
			targets:   []string{"all"},
			succeeded: []string{"a-1.0", "b-1.0", "c-1.0"},
			lines:     []string{"check-a", "check-b", "check-c"},
		},
		{
			name:      "no targets means all",
			succeeded: []string{"a-1.0", "b-1.0", "c-1.0"},
			lines:     []string{"check-a", "check-b", "check-c"},
		},
		{
			name:      "declared order wins over target order",
			targets:   []string{"c", "a"},
			succeeded: []string{"a-1.0", "c-1.0"},
			skipped:   []string{"b-1.0"},
			lines:     []string{"check-a", "check-c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			d := f.driver(t, load(t, nil, installed("a"), installed("b"), installed("c")))

			sum, err := d.Run(context.Background(), tt.targets, driver.ActionBuild)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !slices.Equal(sum.Succeeded, tt.succeeded) {
				t.Errorf("Succeeded = %v, want %v", sum.Succeeded, tt.succeeded)
			}
			if !slices.Equal(sum.Skipped, tt.skipped) {
				t.Errorf("Skipped = %v, want %v", sum.Skipped, tt.skipped)
			}
			if got := f.rec.Lines(); !slices.Equal(got, tt.lines) {
				t.Errorf("commands = %v, want %v", got, tt.lines)
			}
		})
	}
}

func TestRun_RequiredFailureStopsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, failScript("bad"))
	d := f.driver(t, load(t, nil, easyInstall("good"), easyInstall("bad"), installed("after")))

	sum, err := d.Run(context.Background(), nil, driver.ActionBuild)
	if !errors.Is(err, orchestrator.ErrBuildFailed) {
		t.Fatalf("Run() error = %v, want ErrBuildFailed", err)
	}
	var be *orchestrator.BuildError
	if !errors.As(err, &be) || be.Dependency != "bad-1.0" {
		t.Errorf("BuildError = %+v", be)
	}
	if !slices.Equal(sum.Succeeded, []string{"good-1.0"}) {
		t.Errorf("Succeeded = %v", sum.Succeeded)
	}
	if slices.Contains(f.rec.Lines(), "check-after") {
		t.Error("package after the failure was attempted")
	}
}

func TestRun_OptionalFailureContinues(t *testing.T) {
	t.Parallel()

	bad := easyInstall("bad")
	bad["optional"] = true
	f := newFixture(t, failScript("bad"))
	d := f.driver(t, load(t, nil, bad, installed("after")))

	sum, err := d.Run(context.Background(), nil, driver.ActionBuild)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(sum.Failed, []string{"bad-1.0"}) || !slices.Equal(sum.Succeeded, []string{"after-1.0"}) {
		t.Errorf("Summary = %+v", sum)
	}
}

func TestRun_Clean(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	d := f.driver(t, load(t, nil, easyInstall("six")))

	if _, err := d.Run(context.Background(), []string{"six"}, driver.ActionClean); err != nil {
		t.Fatal(err)
	}
	if got := f.rec.Lines(); !slices.Equal(got, []string{"easy_install -m six"}) {
		t.Errorf("commands = %v", got)
	}
}

func TestRun_DefaultPackageManager(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]any
		want     string
	}{
		{"config default applies", nil, "pip install six==1.0"},
		{"recipe setting wins", map[string]any{"package_manager": "easy_install"}, "easy_install six==1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, nil)
			d := f.driver(t, load(t, tt.settings, easyInstall("six")), driver.WithPackageManager("pip"))
			if _, err := d.Run(context.Background(), nil, driver.ActionBuild); err != nil {
				t.Fatal(err)
			}
			if !slices.Contains(f.rec.Lines(), tt.want) {
				t.Errorf("commands = %v, want %q", f.rec.Lines(), tt.want)
			}
		})
	}
}

func TestRun_UnknownTargets(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	d := f.driver(t, load(t, nil, installed("a")))

	_, err := d.Run(context.Background(), []string{"nope"}, driver.ActionBuild)
	var ute *driver.UnknownTargetError
	if !errors.As(err, &ute) || !errors.Is(err, driver.ErrUnknownTarget) {
		t.Fatalf("Run() error = %v, want UnknownTargetError", err)
	}
	if !slices.Equal(ute.Targets, []string{"nope"}) {
		t.Errorf("Targets = %v", ute.Targets)
	}
	if len(f.rec.Calls()) != 0 {
		t.Errorf("commands ran: %v", f.rec.Lines())
	}

	sum, err := d.Run(context.Background(), []string{"a", "nope"}, driver.ActionBuild)
	if err != nil {
		t.Fatalf("Run() with one known target error = %v", err)
	}
	if !slices.Equal(sum.Unknown, []string{"nope"}) || !slices.Equal(sum.Succeeded, []string{"a-1.0"}) {
		t.Errorf("Summary = %+v", sum)
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	d := f.driver(t, load(t, nil, installed("a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Run(ctx, nil, driver.ActionBuild); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(f.rec.Calls()) != 0 {
		t.Errorf("commands ran: %v", f.rec.Lines())
	}
}

func TestRun_WindowsRequiresNmake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    runtime.ExitCode
		wantErr bool
	}{
		{"nmake missing", 1, true},
		{"nmake present", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, func(c runtimetest.Call) *runtime.Result {
				if reflect.DeepEqual(c.Args, []string{"nmake", "/?"}) {
					return runtimetest.Exit(tt.code)
				}
				return nil
			})
			d := f.driver(t, load(t, nil, installed("a")), driver.WithGOOS("windows"))

			_, err := d.Run(context.Background(), nil, driver.ActionBuild)
			if tt.wantErr {
				var ce *driver.ConfigurationError
				if !errors.As(err, &ce) || !errors.Is(err, driver.ErrConfiguration) || !errors.Is(err, driver.ErrMissingTool) {
					t.Fatalf("Run() error = %v, want ConfigurationError", err)
				}
				if got := f.rec.Lines(); !slices.Equal(got, []string{"nmake /?"}) {
					t.Errorf("commands = %v, want only the nmake check", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if got := f.rec.Lines(); !slices.Equal(got, []string{"nmake /?", "check-a"}) {
				t.Errorf("commands = %v", got)
			}
		})
	}
}

func TestNew_Virtualenv(t *testing.T) {
	t.Parallel()

	venvSettings := map[string]any{"virtualenv": "%(ROOTDIR)s/venv"}

	t.Run("created with virtualenv", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		d := f.driver(t, load(t, venvSettings))

		want := filepath.Join(f.workDir, "venv")
		if d.RootDir() != want {
			t.Errorf("RootDir() = %q, want %q", d.RootDir(), want)
		}
		calls := f.rec.Calls()
		if len(calls) != 1 || !reflect.DeepEqual(calls[0].Args, []string{"virtualenv", want}) {
			t.Errorf("calls = %+v", calls)
		}
	})

	t.Run("falls back to venv module", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(c runtimetest.Call) *runtime.Result {
			if len(c.Args) > 0 && c.Args[0] == "virtualenv" {
				return runtimetest.Exit(127)
			}
			return nil
		})
		f.driver(t, load(t, venvSettings))

		want := []string{"python3", "-m", "venv", filepath.Join(f.workDir, "venv")}
		calls := f.rec.Calls()
		if len(calls) != 2 || !reflect.DeepEqual(calls[1].Args, want) {
			t.Errorf("calls = %+v", calls)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, func(runtimetest.Call) *runtime.Result { return runtimetest.Exit(1) })

		_, err := driver.New(context.Background(), load(t, venvSettings),
			driver.WithRuntime(f.rec), driver.WithWorkDir(f.workDir), driver.WithHomeDir("/home/dev"))
		if !errors.Is(err, driver.ErrConfiguration) || !errors.Is(err, driver.ErrVirtualenv) {
			t.Errorf("New() error = %v, want ErrConfiguration and ErrVirtualenv", err)
		}
	})

	t.Run("existing directory reused", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		testutil.MustMkdirAll(t, filepath.Join(f.workDir, "venv"), 0o755)
		d := f.driver(t, load(t, venvSettings))

		if len(f.rec.Calls()) != 0 {
			t.Errorf("commands ran: %v", f.rec.Lines())
		}
		if d.RootDir() != filepath.Join(f.workDir, "venv") {
			t.Errorf("RootDir() = %q", d.RootDir())
		}
	})
}

func TestNew_ExpandsSettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	r := load(t, map[string]any{
		"env_vars": map[string]any{"PREFIX": "%(ROOTDIR)s/inst", "PYBIN": "%(PYTHON)s", "CACHE": "%(HOMEDIR)s/.cache", "LITERAL": "%%(ROOTDIR)s/share"},
	}, installed("a"))
	d := f.driver(t, r)

	if _, err := d.Run(context.Background(), nil, driver.ActionBuild); err != nil {
		t.Fatal(err)
	}
	calls := f.rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	want := map[string]string{
		"PREFIX":  filepath.Join(f.workDir, "inst"),
		"PYBIN":   "python3",
		"CACHE":   "/home/dev/.cache",
		"LITERAL": "%(ROOTDIR)s/share",
	}
	for k, v := range want {
		if got := calls[0].Env[k]; got != v {
			t.Errorf("env %s = %q, want %q", k, got, v)
		}
	}
	if r.Settings.EnvVars()["PREFIX"] != "%(ROOTDIR)s/inst" {
		t.Error("recipe settings were modified in place")
	}
}

func TestNew_UnexpandableSettings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := driver.New(context.Background(), load(t, map[string]any{"prefix": "%(NOPE)s"}),
		driver.WithRuntime(f.rec), driver.WithWorkDir(f.workDir), driver.WithHomeDir("/home/dev"))
	if !errors.Is(err, driver.ErrConfiguration) {
		t.Errorf("New() error = %v, want ErrConfiguration", err)
	}
}

type recordingStrategy struct {
	builds []string
}

func (s *recordingStrategy) Name() strategy.Type { return "record" }

func (s *recordingStrategy) Build(_ context.Context, req *strategy.Request) error {
	s.builds = append(s.builds, req.Dependency.Name+"@"+req.SourceDir)
	return nil
}

func (s *recordingStrategy) Clean(context.Context, *strategy.Request) error { return nil }

func TestNew_CustomStrategy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	src := filepath.Join(f.workDir, "widget")
	testutil.MustMkdirAll(t, src, 0o755)

	s := &recordingStrategy{}
	d := f.driver(t, load(t, nil, map[string]any{"name": "widget", "version": "2.0", "build_type": "record"}),
		driver.WithStrategy(s))

	sum, err := d.Run(context.Background(), nil, driver.ActionBuild)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !slices.Equal(s.builds, []string{"widget@" + src}) {
		t.Errorf("builds = %v", s.builds)
	}
	if !slices.Equal(sum.Succeeded, []string{"widget-2.0"}) {
		t.Errorf("Succeeded = %v", sum.Succeeded)
	}
}
