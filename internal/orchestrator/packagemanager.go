// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"fmt"

	"github.com/depforge/depforge/internal/envscope"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/pkg/recipe"
)

// Supported package managers, as named by the package_manager setting.
const (
	PackageManagerEasyInstall = "easy_install"
	PackageManagerPip         = "pip"
)

// packageSpec returns the requirement a package manager installs for dep, or "".
func packageSpec(dep *recipe.Dependency, res *props.Resolver) string {
	for _, name := range []string{"easy_install", "package_manager_install"} {
		if spec := res.RawString(dep, name, ""); spec != "" {
			return spec
		}
	}
	return ""
}

// runPackageManager installs dep through the configured package manager, or
// removes it when clean is set.
func (o *Orchestrator) runPackageManager(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext, env envscope.Overlay, clean bool) error {
	manager, err := res.String(dep, recipe.SettingPackageManager, PackageManagerEasyInstall)
	if err != nil {
		return err
	}

	var script string
	switch manager {
	case PackageManagerEasyInstall:
		script = "easy_install " + packageSpec(dep, res)
		if clean {
			script = "easy_install -m " + dep.Name
		}
	case PackageManagerPip:
		script = "pip install " + packageSpec(dep, res)
		if clean {
			script = "pip uninstall -y " + dep.Name
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPackageManager, manager)
	}

	r := o.rt.Execute(ctx, &runtime.Command{Script: script, Dir: bc.RootDir, Env: env})
	if !r.Success() {
		return &runtime.CommandFailureError{Command: script, Dir: bc.RootDir, ExitCode: r.ExitCode, Err: r.Error}
	}
	return nil
}
