// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/depforge/depforge/internal/source"
	"github.com/depforge/depforge/pkg/platform"
)

// DefaultSDKRoot is where macOS SDKs named "MacOSX<version>.sdk" are looked up.
const DefaultSDKRoot = "/Developer/SDKs"

type (
	// CxxStrategy builds C and C++ dependencies through a Backend chosen by the
	// format property: autoconf by default, msvc on Windows.
	CxxStrategy struct {
		sdkRoot string
	}

	// CxxOption configures a CxxStrategy.
	CxxOption func(*CxxStrategy)
)

// WithSDKRoot sets the directory searched for macOS SDKs.
func WithSDKRoot(dir string) CxxOption {
	return func(s *CxxStrategy) { s.sdkRoot = dir }
}

// NewCxxStrategy creates a CxxStrategy.
func NewCxxStrategy(opts ...CxxOption) *CxxStrategy {
	s := &CxxStrategy{sdkRoot: DefaultSDKRoot}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns TypeCxx.
func (*CxxStrategy) Name() Type { return TypeCxx }

// Build configures, builds and installs the dependency. Configure, build and
// install must each exit zero, except that ignore_install_errors tolerates a
// failed install.
func (s *CxxStrategy) Build(ctx context.Context, req *Request) error {
	backend, inv, err := s.invocation(req)
	if err != nil {
		return err
	}

	if script := backend.Configure(inv); script != "" {
		reconfigure, err := s.needsConfigure(req, inv)
		if err != nil {
			return err
		}
		if reconfigure {
			if err := req.run(ctx, "configure", req.BuildDir, script); err != nil {
				return err
			}
		} else {
			req.logger().Info("makefile is up to date, skipping configure")
		}
	}

	req.logger().Debug("project file", "file", inv.ProjectFile)
	if err := req.run(ctx, "build", req.BuildDir, backend.Build(inv)); err != nil {
		return err
	}

	if script := backend.Install(inv); script != "" {
		if err := req.run(ctx, "install", req.BuildDir, script); err != nil {
			if !req.Props.Bool(req.Dependency, "ignore_install_errors", false) {
				return err
			}
			req.logger().Warn("ignoring install failure", "err", err)
		}
	}
	return nil
}

// Clean runs the backend's clean step in the build directory.
func (s *CxxStrategy) Clean(ctx context.Context, req *Request) error {
	backend, inv, err := s.backend(req)
	if err != nil {
		return err
	}
	req.logger().Info("cleaning", "dependency", req.Dependency.Name)
	return req.run(ctx, "clean", req.BuildDir, backend.Clean(inv))
}

func (s *CxxStrategy) backend(req *Request) (Backend, *Invocation, error) {
	format := FormatAutoconf
	if req.GOOS == platform.Windows {
		format = FormatMSVC
	}
	format, err := req.Props.String(req.Dependency, "format", format)
	if err != nil {
		return nil, nil, err
	}
	projectFile, err := req.Props.String(req.Dependency, "project_file", "")
	if err != nil {
		return nil, nil, err
	}
	if format == FormatMSVC && projectFile == "" {
		projectFile = defaultMSVCMakefile
	}

	backend, err := NewBackend(format, projectFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", req.Dependency.Name, err)
	}
	return backend, &Invocation{SourceDir: req.SourceDir, BuildDir: req.BuildDir, ProjectFile: projectFile}, nil
}

// invocation assembles the configure and build arguments.
func (s *CxxStrategy) invocation(req *Request) (Backend, *Invocation, error) {
	backend, inv, err := s.backend(req)
	if err != nil {
		return nil, nil, err
	}
	dep := req.Dependency

	var cflags, ldflags []string
	if name := backend.Name(); name != FormatMSVC && name != FormatMSVCProject {
		includeDirs, err := req.Props.Strings(dep, "include_dirs")
		if err != nil {
			return nil, nil, err
		}
		for _, dir := range includeDirs {
			cflags = append(cflags, "-I"+absFrom(req.WorkDir, dir))
		}
		libDirs, err := req.Props.Strings(dep, "lib_dirs")
		if err != nil {
			return nil, nil, err
		}
		for _, dir := range libDirs {
			ldflags = append(ldflags, "-L"+absFrom(req.WorkDir, dir))
		}
	}

	args, err := req.Props.Strings(dep, "build_args")
	if err != nil {
		return nil, nil, err
	}

	installDir := req.InstallDir
	if installDir == "" {
		installDir = absFrom(req.WorkDir, req.RootDir)
	}

	configureArgs, err := req.Props.Strings(dep, "configure_args")
	if err != nil {
		return nil, nil, err
	}
	configureArgs = append([]string{"--prefix=" + dquote(installDir)}, configureArgs...)

	extra, err := req.Props.Strings(dep, "extra_cflags")
	if err != nil {
		return nil, nil, err
	}
	cflags = append(cflags, extra...)

	if req.GOOS == platform.Darwin {
		archs, err := req.Props.Strings(dep, "archs")
		if err != nil {
			return nil, nil, err
		}
		if len(archs) > 0 {
			configureArgs = append(configureArgs, "--disable-dependency-tracking")
			for _, arch := range archs {
				cflags = append(cflags, "-arch", arch)
				ldflags = append(ldflags, "-arch", arch)
			}
		}

		minVersion, err := req.Props.String(dep, "min-version", "")
		if err != nil {
			return nil, nil, err
		}
		if minVersion != "" {
			sdk := filepath.Join(s.sdkRoot, "MacOSX"+minVersion+".sdk")
			if fi, err := os.Stat(sdk); err == nil && fi.IsDir() {
				cflags = append(cflags, "-isysroot", sdk)
				ldflags = append(ldflags, "-isysroot", sdk)
			}
			cflags = append(cflags, "-mmacosx-version-min="+minVersion)
			ldflags = append(ldflags, "-mmacosx-version-min="+minVersion)
		}
	}

	if req.GOOS != platform.Windows {
		args = append(args,
			"CFLAGS="+dquote(strings.Join(cflags, " ")),
			"CXXFLAGS="+dquote(strings.Join(cflags, " ")),
			"LDFLAGS="+dquote(strings.Join(ldflags, " ")),
		)
	}
	args = append(args, "prefix="+dquote(installDir))

	inv.ConfigureArgs = configureArgs
	inv.Args = args
	return backend, inv, nil
}

// needsConfigure reports whether configure has to run. It always does unless
// always_configure is false, in which case an existing Makefile newer than
// configure, Makefile.in and the project file is taken as current.
func (s *CxxStrategy) needsConfigure(req *Request, inv *Invocation) (bool, error) {
	if req.Props.Bool(req.Dependency, "always_configure", true) {
		return true, nil
	}

	makefile := filepath.Join(req.BuildDir, "Makefile")
	if _, err := os.Stat(makefile); err != nil {
		return true, nil
	}

	inputs := []string{
		filepath.Join(req.BuildDir, "Makefile.in"),
		filepath.Join(req.BuildDir, "configure"),
	}
	if inv.ProjectFile != "" {
		inputs = append(inputs, filepath.Join(req.BuildDir, inv.ProjectFile))
	}
	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			continue
		}
		newer, err := source.IsNewer(input, makefile)
		if err != nil {
			return false, err
		}
		if newer {
			return true, nil
		}
	}
	return false, nil
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return filepath.Join(base, p)
}
