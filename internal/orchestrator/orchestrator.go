// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/depforge/depforge/internal/envscope"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/internal/source"
	"github.com/depforge/depforge/internal/strategy"
	"github.com/depforge/depforge/internal/version"
	"github.com/depforge/depforge/pkg/platform"
	"github.com/depforge/depforge/pkg/recipe"
)

// Pipeline stages, as reported in BuildError.
const (
	StageEnvironment    = "environment"
	StageInstaller      = "installer"
	StagePackageManager = "package manager"
	StageSource         = "source"
	StagePreBuild       = "pre-build"
	StageBuild          = "build"
	StagePostInstall    = "post-install"
)

// acquisition modes
const (
	modeSource mode = iota
	modeInstaller
	modePackageManager
	modeNone
)

type (
	mode int

	// Config holds the recipe-wide inputs shared by every Build call.
	Config struct {
		// Settings are the recipe settings, already substitution-expanded.
		Settings recipe.Settings
		// RootDir is where sources are unpacked and installs go by default.
		RootDir string
		// RecipeDir is the directory holding the recipe document.
		RecipeDir string
		// WorkDir is the depforge process working directory.
		WorkDir string
		HomeDir string
		Python  string
		// GOOS selects platform behavior; defaults to the running platform.
		GOOS string
	}

	// InstallChecker decides whether a compatible version is already installed.
	InstallChecker interface {
		IsInstalled(ctx context.Context, q version.Query) bool
	}

	// Orchestrator builds dependencies one at a time.
	Orchestrator struct {
		cfg        Config
		resolver   *props.Resolver
		rt         runtime.Runtime
		scripts    *runtime.VirtualRuntime
		checker    InstallChecker
		acquirer   *source.Acquirer
		strategies *strategy.Registry
		environ    func() []string
		logger     *log.Logger
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)
)

// WithRuntime sets the runtime commands and version queries run through.
func WithRuntime(rt runtime.Runtime) Option {
	return func(o *Orchestrator) { o.rt = rt }
}

// WithScriptRuntime sets the interpreter post-install scripts run in.
func WithScriptRuntime(v *runtime.VirtualRuntime) Option {
	return func(o *Orchestrator) { o.scripts = v }
}

// WithChecker replaces the installed-version checker.
func WithChecker(c InstallChecker) Option {
	return func(o *Orchestrator) { o.checker = c }
}

// WithAcquirer sets the source acquirer.
func WithAcquirer(a *source.Acquirer) Option {
	return func(o *Orchestrator) { o.acquirer = a }
}

// WithStrategies sets the build strategy registry.
func WithStrategies(r *strategy.Registry) Option {
	return func(o *Orchestrator) { o.strategies = r }
}

// WithEnviron sets the base environment overlay values are expanded against.
func WithEnviron(environ func() []string) Option {
	return func(o *Orchestrator) { o.environ = environ }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator. Unset collaborators get working defaults: the
// native runtime, the embedded script interpreter, the cxx and python
// strategies and an HTTP/git acquirer.
func New(cfg Config, opts ...Option) *Orchestrator {
	if cfg.GOOS == "" {
		cfg.GOOS = platform.Current()
	}
	o := &Orchestrator{
		cfg:     cfg,
		environ: os.Environ,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.rt == nil {
		o.rt = runtime.NewNativeRuntime()
	}
	if o.scripts == nil {
		o.scripts = runtime.NewVirtualRuntime(runtime.WithVirtualEnviron(o.environ))
	}
	if o.checker == nil {
		o.checker = version.NewChecker(o.rt, o.logger)
	}
	if o.acquirer == nil {
		o.acquirer = source.NewAcquirer(
			source.NewDownloader(source.WithDownloadLogger(o.logger)),
			source.NewGitFetcher(source.WithGitLogger(o.logger)),
			o.logger,
		)
	}
	if o.strategies == nil {
		o.strategies = strategy.DefaultRegistry()
	}
	o.resolver = props.NewResolver(cfg.Settings, nil)
	return o
}

// NewContext computes the build context of dep: its source and build
// directories and the substitution bindings derived from them.
func (o *Orchestrator) NewContext(dep *recipe.Dependency) *BuildContext {
	layout := source.Layout{Root: o.cfg.RootDir, RecipeDir: o.cfg.RecipeDir, WorkDir: o.cfg.WorkDir}
	src := layout.SourceDir(dep.Name, dep.FullName(), o.resolver.RawString(dep, "source_dir", ""))
	return &BuildContext{
		RootDir:   o.cfg.RootDir,
		RecipeDir: o.cfg.RecipeDir,
		HomeDir:   o.cfg.HomeDir,
		Python:    o.cfg.Python,
		SourceDir: src,
		BuildDir:  layout.BuildDir(src, o.resolver.RawString(dep, "build_dir", "")),
	}
}

// Build brings dep up to date, or cleans it when clean is set.
//
// It returns true when the dependency is satisfied. A failure of an optional
// dependency is logged and reported as (false, nil); a failure of a required
// one, and any failing pre-build or post-install command, is returned as a
// *BuildError.
func (o *Orchestrator) Build(ctx context.Context, dep *recipe.Dependency, clean bool) (bool, error) {
	logger := o.logger.With("dependency", dep.FullName())
	bc := o.NewContext(dep)
	res := o.resolver.WithBindings(bc.Bindings())

	env, err := envscope.Compose(o.cfg.Settings.EnvVars(), dep.EnvVars(), envscope.Options{
		Environ:  o.environ(),
		GOOS:     o.cfg.GOOS,
		Bindings: bc.Bindings(),
	})
	if err != nil {
		return o.fail(logger, dep, StageEnvironment, err)
	}

	if !clean && o.installed(ctx, dep, res, bc, env, logger) {
		logger.Info("installed and up to date, skipping")
		return true, nil
	}

	if res.Bool(dep, "ignore", false) {
		logger.Info("ignoring")
		return true, nil
	}

	bc.SetDir(bc.RootDir)
	m := o.acquisitionMode(dep, res, clean)
	switch m {
	case modeNone:
		logger.Info("installer packages have nothing to clean")
		return true, nil
	case modeInstaller:
		logger.Info("running installer")
		if err := o.runInstaller(ctx, dep, res, bc, env, logger); err != nil {
			return o.fail(logger, dep, StageInstaller, err)
		}
	case modePackageManager:
		logger.Info("running package manager")
		if err := o.runPackageManager(ctx, dep, res, bc, env, clean); err != nil {
			return o.fail(logger, dep, StagePackageManager, err)
		}
	case modeSource:
		if err := o.acquire(ctx, dep, res, bc); err != nil {
			logger.Error("source not found", "err", err)
			return o.fail(logger, dep, StageSource, err)
		}
		bc.SetDir(bc.SourceDir)
	}

	seq := o.sequence(env, bc.Dir(), logger)
	if !clean {
		cmds, err := res.Strings(dep, "prebuild_cmds")
		if err != nil {
			return o.fail(logger, dep, StagePreBuild, err)
		}
		seq.WindowsPaths = o.cfg.GOOS == platform.Windows
		if err := seq.Run(ctx, cmds); err != nil {
			logger.Error("pre-build command failed", "err", err)
			return false, &BuildError{Dependency: dep.FullName(), Stage: StagePreBuild, Err: err}
		}
		bc.SetDir(seq.Dir)
	}

	if m == modeSource {
		if err := o.runStrategy(ctx, dep, res, bc, env, clean, logger); err != nil {
			return o.fail(logger, dep, StageBuild, err)
		}
	}

	if !clean {
		postDir := bc.Dir()
		if m == modeSource {
			postDir = bc.SourceDir
		}
		if err := o.postInstall(ctx, dep, res, bc, env, postDir, logger); err != nil {
			logger.Error("post-install failed", "err", err)
			return false, &BuildError{Dependency: dep.FullName(), Stage: StagePostInstall, Err: err}
		}
	}
	return true, nil
}

// fail reports err as fatal for required dependencies and logs it for optional ones.
func (o *Orchestrator) fail(logger *log.Logger, dep *recipe.Dependency, stage string, err error) (bool, error) {
	if dep.Optional() {
		logger.Error("optional dependency failed, continuing", "stage", stage, "err", err)
		return false, nil
	}
	return false, &BuildError{Dependency: dep.FullName(), Stage: stage, Err: err}
}

func (o *Orchestrator) acquisitionMode(dep *recipe.Dependency, res *props.Resolver, clean bool) mode {
	hasPackage := packageSpec(dep, res) != ""
	if res.Bool(dep, "installer", false) {
		if !clean {
			return modeInstaller
		}
		if !hasPackage {
			return modeNone
		}
	}
	if hasPackage {
		return modePackageManager
	}
	return modeSource
}

func (o *Orchestrator) installed(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext, env envscope.Overlay, logger *log.Logger) bool {
	checkCmd, err := res.String(dep, "install_check_cmd", "")
	if err != nil {
		logger.Warn("invalid install_check_cmd", "err", err)
		return false
	}
	program, err := res.String(dep, "program_name", "")
	if err != nil {
		logger.Warn("invalid program_name", "err", err)
		return false
	}
	return o.checker.IsInstalled(ctx, version.Query{
		Name:      dep.Name,
		Program:   program,
		Required:  dep.Version,
		ExactOnly: res.Bool(dep, "exact_version_only", false),
		CheckCmd:  checkCmd,
		Dir:       bc.RootDir,
		Env:       env,
	})
}

func (o *Orchestrator) acquire(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext) error {
	url, err := res.String(dep, "source", "")
	if err != nil {
		return err
	}
	req := source.Request{
		Name:      dep.Name,
		URL:       url,
		SourceDir: bc.SourceDir,
		Root:      bc.RootDir,
		Ref:       dep.Version,
		SHA256:    res.RawString(dep, "sha256", ""),
	}
	if res.RawString(dep, "source_type", "") == string(source.FormatGit) {
		req.Kind = source.FormatGit
	}
	return o.acquirer.Ensure(ctx, req)
}

func (o *Orchestrator) runStrategy(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext, env envscope.Overlay, clean bool, logger *log.Logger) error {
	buildType, err := res.String(dep, "build_type", string(strategy.TypeCxx))
	if err != nil {
		return err
	}
	s, err := o.strategies.Get(strategy.Type(buildType))
	if err != nil {
		return err
	}

	installDir, err := res.String(dep, "install_dir", bc.RootDir)
	if err != nil {
		return err
	}
	bc.InstallDir = resolveDir(bc.Dir(), installDir)

	req := &strategy.Request{
		Dependency: dep,
		Props:      res,
		Runtime:    o.rt,
		Env:        env,
		RootDir:    bc.RootDir,
		SourceDir:  bc.SourceDir,
		BuildDir:   bc.BuildDir,
		InstallDir: bc.InstallDir,
		WorkDir:    bc.Dir(),
		Python:     bc.Python,
		GOOS:       o.cfg.GOOS,
		Logger:     logger,
	}
	if clean {
		logger.Info("cleaning", "strategy", buildType)
		return s.Clean(ctx, req)
	}
	logger.Info("building", "strategy", buildType)
	return s.Build(ctx, req)
}

func (o *Orchestrator) sequence(env envscope.Overlay, dir string, logger *log.Logger) *runtime.Sequence {
	return &runtime.Sequence{
		Runtime: o.rt,
		Env:     env,
		Dir:     dir,
		OnCommand: func(cmd, dir string) {
			logger.Info("running command", "command", cmd, "dir", dir)
		},
	}
}
