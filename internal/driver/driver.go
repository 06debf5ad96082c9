// SPDX-License-Identifier: MPL-2.0

// Package driver runs a recipe: it prepares the run-wide context (root
// directory, virtualenv, substitution bindings) and walks the packages in
// declared order, handing each selected one to the orchestrator.
package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"

	"github.com/depforge/depforge/internal/orchestrator"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/internal/strategy"
	"github.com/depforge/depforge/internal/subst"
	"github.com/depforge/depforge/pkg/platform"
	"github.com/depforge/depforge/pkg/recipe"
)

const (
	ActionBuild Action = "build"
	ActionClean Action = "clean"

	// TargetAll selects every package.
	TargetAll = "all"

	defaultPython = "python"
	settingPython = "python"
)

type (
	// Action selects what Run does to each selected package.
	Action string

	// Summary lists what a run did, by package full name.
	Summary struct {
		// Succeeded are packages built, cleaned or already installed.
		Succeeded []string
		// Failed are optional packages whose build failed.
		Failed []string
		// Skipped are packages not selected by the targets.
		Skipped []string
		// Unknown are requested targets naming no package.
		Unknown []string
	}

	// Driver runs one recipe.
	Driver struct {
		recipe  *recipe.Recipe
		orch    *orchestrator.Orchestrator
		rt      runtime.Runtime
		rootDir string
		goos    string
		logger  *log.Logger
	}

	// Option configures a Driver.
	Option func(*options)

	options struct {
		workDir        string
		homeDir        string
		python         string
		goos           string
		shell          string
		packageManager string
		rt             runtime.Runtime
		environ        func() []string
		strategies     []strategy.Strategy
		orchOpts       []orchestrator.Option
		logger         *log.Logger
	}
)

// WithWorkDir sets the directory the run starts in; defaults to the process
// working directory.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithHomeDir overrides the HOMEDIR binding.
func WithHomeDir(dir string) Option {
	return func(o *options) { o.homeDir = dir }
}

// WithPython sets the interpreter bound to PYTHON. The recipe's python
// setting is used otherwise.
func WithPython(python string) Option {
	return func(o *options) { o.python = python }
}

// WithGOOS selects platform behavior; defaults to the running platform.
func WithGOOS(goos string) Option {
	return func(o *options) { o.goos = goos }
}

// WithShell sets the shell the native runtime runs commands with.
func WithShell(shell string) Option {
	return func(o *options) { o.shell = shell }
}

// WithPackageManager sets the package manager used when the recipe names none.
func WithPackageManager(pm string) Option {
	return func(o *options) { o.packageManager = pm }
}

// WithRuntime replaces the native runtime, including for virtualenv creation.
func WithRuntime(rt runtime.Runtime) Option {
	return func(o *options) { o.rt = rt }
}

// WithEnviron sets the base environment of every command.
func WithEnviron(environ func() []string) Option {
	return func(o *options) { o.environ = environ }
}

// WithStrategy registers a custom build strategy alongside cxx and python.
func WithStrategy(s strategy.Strategy) Option {
	return func(o *options) { o.strategies = append(o.strategies, s) }
}

// WithOrchestratorOptions passes extra options to the orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(o *options) { o.orchOpts = append(o.orchOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New prepares a run of r. When the recipe sets virtualenv, the environment is
// created if missing and becomes the root directory; settings are then
// substitution-expanded once against ROOTDIR, PYTHON and HOMEDIR.
func New(ctx context.Context, r *recipe.Recipe, opts ...Option) (*Driver, error) {
	o := options{
		goos:    platform.Current(),
		environ: os.Environ,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, &ConfigurationError{Reason: "cannot determine working directory", Err: err}
		}
		o.workDir = wd
	}
	if o.homeDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, &ConfigurationError{Reason: "cannot determine home directory", Err: err}
		}
		o.homeDir = home
	}
	if o.python == "" {
		o.python = r.Settings.String(settingPython)
	}
	if o.python == "" {
		o.python = defaultPython
	}

	setupRT := o.rt
	if setupRT == nil {
		setupRT = newNativeRuntime(&o, "")
	}

	root := o.workDir
	venv, err := o.virtualenv(r.Settings)
	if err != nil {
		return nil, err
	}
	if venv != "" {
		if err := o.ensureVirtualenv(ctx, setupRT, venv); err != nil {
			return nil, err
		}
		root = venv
		o.logger.Info("using virtualenv", "ROOTDIR", root)
	} else {
		o.logger.Debug("no virtualenv set")
	}

	settings, err := r.Settings.Expand(subst.Bindings{
		subst.RootDir: root,
		subst.Python:  o.python,
		subst.HomeDir: o.homeDir,
	})
	if err != nil {
		return nil, &ConfigurationError{Reason: "cannot expand recipe settings", Err: err}
	}
	if _, ok := settings[recipe.SettingPackageManager]; !ok && o.packageManager != "" {
		settings[recipe.SettingPackageManager] = o.packageManager
	}

	rt := o.rt
	if rt == nil {
		rt = newNativeRuntime(&o, venv)
	}

	registry := strategy.DefaultRegistry()
	for _, s := range o.strategies {
		registry.Register(s)
	}

	orchOpts := append([]orchestrator.Option{
		orchestrator.WithRuntime(rt),
		orchestrator.WithStrategies(registry),
		orchestrator.WithEnviron(o.environ),
		orchestrator.WithLogger(o.logger),
	}, o.orchOpts...)

	return &Driver{
		recipe: r,
		orch: orchestrator.New(orchestrator.Config{
			Settings:  settings,
			RootDir:   root,
			RecipeDir: r.Dir(),
			WorkDir:   root,
			HomeDir:   o.homeDir,
			Python:    o.python,
			GOOS:      o.goos,
		}, orchOpts...),
		rt:      rt,
		rootDir: root,
		goos:    o.goos,
		logger:  o.logger,
	}, nil
}

func newNativeRuntime(o *options, venv string) *runtime.NativeRuntime {
	opts := []runtime.NativeOption{runtime.WithBaseEnviron(o.environ)}
	if o.shell != "" {
		opts = append(opts, runtime.WithShell(o.shell))
	}
	if venv != "" {
		opts = append(opts, runtime.WithVirtualenv(venv))
	}
	return runtime.NewNativeRuntime(opts...)
}

// virtualenv returns the absolute virtualenv path named by settings, or "".
func (o *options) virtualenv(settings recipe.Settings) (string, error) {
	raw := settings.Virtualenv()
	if raw == "" {
		return "", nil
	}
	venv, err := subst.String(raw, subst.Bindings{
		subst.RootDir: o.workDir,
		subst.Python:  o.python,
		subst.HomeDir: o.homeDir,
	})
	if err != nil {
		return "", &ConfigurationError{Reason: "cannot expand virtualenv setting", Err: err}
	}
	if venv, err = homedir.Expand(venv); err != nil {
		return "", &ConfigurationError{Reason: "cannot expand virtualenv setting", Err: err}
	}
	if !filepath.IsAbs(venv) {
		venv = filepath.Join(o.workDir, venv)
	}
	return filepath.Clean(venv), nil
}

// ensureVirtualenv creates venv with virtualenv, falling back to the venv
// module of the configured interpreter. An existing directory is reused.
func (o *options) ensureVirtualenv(ctx context.Context, rt runtime.Runtime, venv string) error {
	if _, err := os.Stat(venv); err == nil {
		return nil
	}
	o.logger.Info("creating virtualenv", "dir", venv)

	res := rt.Execute(ctx, &runtime.Command{Args: []string{"virtualenv", venv}, Dir: o.workDir})
	if res.Success() {
		return nil
	}
	o.logger.Debug("virtualenv failed, trying venv module", "err", res.Err())

	res = rt.Execute(ctx, &runtime.Command{Args: []string{o.python, "-m", "venv", venv}, Dir: o.workDir})
	if !res.Success() {
		return &ConfigurationError{Reason: "unable to set up virtualenv " + venv, Err: fmt.Errorf("%w: %w", ErrVirtualenv, res.Err())}
	}
	return nil
}

// RootDir returns the directory sources are unpacked into.
func (d *Driver) RootDir() string {
	return d.rootDir
}

// Run builds or cleans the packages selected by targets, in declared order.
// No targets selects all. It stops at the first failure of a required
// package; failures of optional packages are recorded in the Summary.
func (d *Driver) Run(ctx context.Context, targets []string, action Action) (*Summary, error) {
	if err := d.checkPlatformTools(ctx); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		targets = []string{TargetAll}
	}

	sum := &Summary{Unknown: d.unknownTargets(targets)}
	for _, t := range sum.Unknown {
		d.logger.Warn("no package named by target", "target", t)
	}
	selectAll := slices.Contains(targets, TargetAll)
	if !selectAll && len(sum.Unknown) == len(targets) {
		return sum, &UnknownTargetError{Targets: sum.Unknown}
	}

	verb := "Getting"
	if action == ActionClean {
		verb = "Cleaning"
	}

	for _, dep := range d.recipe.Packages {
		name := dep.FullName()
		if !selectAll && !slices.Contains(targets, dep.Name) {
			d.logger.Info("Skipping " + name)
			sum.Skipped = append(sum.Skipped, name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("run canceled before %s: %w", name, err)
		}

		d.logger.Info(verb + " " + name)
		ok, err := d.orch.Build(ctx, dep, action == ActionClean)
		if err != nil {
			d.logger.Error("Build failed for "+dep.Name+". Exiting...", "err", err)
			return sum, err
		}
		if !ok {
			sum.Failed = append(sum.Failed, name)
			continue
		}
		sum.Succeeded = append(sum.Succeeded, name)
	}
	return sum, nil
}

// checkPlatformTools fails on Windows when nmake cannot be run.
func (d *Driver) checkPlatformTools(ctx context.Context) error {
	if d.goos != platform.Windows {
		return nil
	}
	res := d.rt.ExecuteCapture(ctx, &runtime.Command{Args: []string{"nmake", "/?"}})
	if !res.Success() {
		d.logger.Error(`cannot run nmake, have you run "vcvarsall.bat"?`)
		return &ConfigurationError{Reason: "cannot run nmake", Err: fmt.Errorf("%w: %w", ErrMissingTool, res.Err())}
	}
	return nil
}

func (d *Driver) unknownTargets(targets []string) []string {
	names := d.recipe.Names()
	var unknown []string
	for _, t := range targets {
		if t != TargetAll && !slices.Contains(names, t) {
			unknown = append(unknown, t)
		}
	}
	return unknown
}
