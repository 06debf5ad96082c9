// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/depforge/depforge/internal/envscope"
	"github.com/depforge/depforge/internal/props"
	"github.com/depforge/depforge/internal/runtime"
	"github.com/depforge/depforge/pkg/platform"
	"github.com/depforge/depforge/pkg/recipe"
)

// runInstaller downloads and runs a platform installer: a macOS disk image
// (dmg) holding an installer package, or a binary executed directly.
func (o *Orchestrator) runInstaller(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext, env envscope.Overlay, logger *log.Logger) error {
	dmg, err := res.String(dep, "dmg", "")
	if err != nil {
		return err
	}
	binary, err := res.String(dep, "binary", "")
	if err != nil {
		return err
	}
	sha := res.RawString(dep, "sha256", "")

	switch {
	case dmg != "":
		image, err := o.acquirer.Fetch(ctx, dmg, bc.RootDir, sha)
		if err != nil {
			return err
		}
		logger.Info("downloaded disk image", "file", image)
		return o.installDiskImage(ctx, dep, res, bc, env, image, logger)
	case binary != "":
		exe, err := o.acquirer.Fetch(ctx, binary, bc.RootDir, sha)
		if err != nil {
			return err
		}
		return o.runBinary(ctx, bc, env, exe)
	default:
		return ErrNoInstaller
	}
}

func (o *Orchestrator) installDiskImage(ctx context.Context, dep *recipe.Dependency, res *props.Resolver, bc *BuildContext, env envscope.Overlay, image string, logger *log.Logger) error {
	mountCmd := &runtime.Command{Args: []string{"hdiutil", "mount", image}, Dir: bc.RootDir, Env: env}
	mounted := o.rt.ExecuteCapture(ctx, mountCmd)
	if !mounted.Success() {
		logger.Error("unable to mount disk image", "output", strings.TrimSpace(mounted.Output+mounted.ErrOutput))
		return &runtime.CommandFailureError{Command: mountCmd.String(), Dir: bc.RootDir, ExitCode: mounted.ExitCode, Err: mounted.Error}
	}

	mountPoint, volume, err := parseMountOutput(mounted.Output)
	if err != nil {
		return err
	}
	defer func() {
		detach := &runtime.Command{Args: []string{"hdiutil", "detach", mountPoint, "-force"}, Dir: bc.RootDir, Env: env}
		if r := o.rt.Execute(ctx, detach); !r.Success() {
			logger.Warn("unable to detach disk image", "mount", mountPoint, "err", r.Err())
		}
	}()

	pkg, err := res.String(dep, "installer", "")
	if err != nil {
		return err
	}
	pkgPath := filepath.Join(volume, pkg)
	logger.Info("installer is", "package", pkgPath)

	script := fmt.Sprintf(`/usr/sbin/installer -verbose -pkg "%s" -target /`, pkgPath)
	if res.Bool(dep, "installer_requires_admin", false) {
		script = "sudo " + script
	}
	r := o.rt.Execute(ctx, &runtime.Command{Script: script, Dir: bc.RootDir, Env: env})
	if !r.Success() {
		return &runtime.CommandFailureError{Command: script, Dir: bc.RootDir, ExitCode: r.ExitCode, Err: r.Error}
	}
	return nil
}

func (o *Orchestrator) runBinary(ctx context.Context, bc *BuildContext, env envscope.Overlay, exe string) error {
	cmd := &runtime.Command{Dir: bc.RootDir, Env: env}
	if o.cfg.GOOS == platform.Windows {
		cmd.Script = `"` + exe + `"`
	} else {
		if err := os.Chmod(exe, 0o755); err != nil {
			return err
		}
		cmd.Args = []string{exe}
	}

	r := o.rt.ExecuteCapture(ctx, cmd)
	if !r.Success() {
		return &runtime.CommandFailureError{Command: cmd.String(), Dir: bc.RootDir, ExitCode: r.ExitCode, Err: r.Error}
	}
	return nil
}

// parseMountOutput extracts the device and volume path from the last line of
// "hdiutil mount" output, whose fields are tab separated.
func parseMountOutput(out string) (mountPoint, volume string, err error) {
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\n")
	fields := strings.Split(lines[len(lines)-1], "\t")
	if len(fields) < 3 {
		return "", "", fmt.Errorf("unexpected hdiutil mount output %q", out)
	}
	return strings.TrimSpace(fields[0]), strings.TrimSpace(fields[2]), nil
}
