// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/depforge/depforge/internal/envscope"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/internal/source"
	"github.com/depforge/depforge/internal/subst"
	"github.com/depforge/depforge/pkg/recipe"
)

// postInstall runs the dependency's postinstall_script in the embedded
// interpreter or, when there is none, its postinstall_cmds. Scripts may only
// open files under the root, source and build directories.
func (o *Orchestrator) postInstall(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext, env envscope.Overlay, dir string, logger *log.Logger) error {
	scriptName, err := res.String(dep, "postinstall_script", "")
	if err != nil {
		return err
	}
	if scriptName == "" {
		cmds, err := res.Strings(dep, "postinstall_cmds")
		if err != nil {
			return err
		}
		return o.sequence(env, dir, logger).Run(ctx, cmds)
	}

	layout := source.Layout{Root: bc.RootDir, RecipeDir: bc.RecipeDir, WorkDir: dir}
	path := layout.AbsPath(scriptName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("post-install script not found, skipping", "script", path)
		return nil
	}
	if err != nil {
		return err
	}

	script, err := subst.String(string(data), bc.Bindings())
	if err != nil {
		return err
	}
	vrt := o.scripts.WithAllowed(bc.RootDir, bc.SourceDir, bc.BuildDir)
	if err := vrt.Validate(script, path); err != nil {
		return err
	}

	logger.Info("running post-install script", "script", path)
	r := vrt.Execute(ctx, &runtime.Command{Script: script, Dir: dir, Env: env})
	if !r.Success() {
		return &runtime.CommandFailureError{Command: path, Dir: dir, ExitCode: r.ExitCode, Err: r.Error}
	}
	return nil
}
