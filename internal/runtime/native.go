// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/depforge/depforge/pkg/platform"
)

// ErrNoShell is returned when no usable shell can be found on the host.
var ErrNoShell = errors.New("no shell found")

type (
	// NativeRuntime executes commands on the host.
	NativeRuntime struct {
		// shell overrides the default shell
		shell string
		// shellArgs are arguments passed to the shell before the script
		shellArgs []string
		// venv is an isolated install root whose activate script prefixes shell commands
		venv string
		// spawnPrefix runs programs on the host from inside an application sandbox
		spawnPrefix []string
		sandbox     platform.SandboxType
		environ     func() []string
		stdout      io.Writer
		stderr      io.Writer
	}

	// NativeOption configures a NativeRuntime.
	NativeOption func(*NativeRuntime)
)

// WithShell overrides shell detection.
func WithShell(shell string) NativeOption {
	return func(r *NativeRuntime) { r.shell = shell }
}

// WithShellArgs overrides the arguments placed between the shell and the script.
func WithShellArgs(args ...string) NativeOption {
	return func(r *NativeRuntime) { r.shellArgs = args }
}

// WithVirtualenv activates the virtualenv at dir before every shell command, when its
// activate script exists.
func WithVirtualenv(dir string) NativeOption {
	return func(r *NativeRuntime) { r.venv = dir }
}

// WithSandbox overrides sandbox detection.
func WithSandbox(st platform.SandboxType) NativeOption {
	return func(r *NativeRuntime) {
		r.sandbox = st
		r.spawnPrefix = platform.SpawnPrefixFor(st)
	}
}

// WithBaseEnviron sets the function providing the base environment overlays are merged into.
func WithBaseEnviron(environ func() []string) NativeOption {
	return func(r *NativeRuntime) { r.environ = environ }
}

// WithOutput sets the default writers for streamed command output.
func WithOutput(stdout, stderr io.Writer) NativeOption {
	return func(r *NativeRuntime) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewNativeRuntime creates a new native runtime
func NewNativeRuntime(opts ...NativeOption) *NativeRuntime {
	st := platform.DetectSandbox()
	r := &NativeRuntime{
		sandbox:     st,
		spawnPrefix: platform.SpawnPrefixFor(st),
		environ:     os.Environ,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the runtime name
func (r *NativeRuntime) Name() string {
	return string(RuntimeTypeNative)
}

// Available returns whether this runtime is available
func (r *NativeRuntime) Available() bool {
	_, err := r.getShell()
	return err == nil
}

// Execute runs cmd with output streamed to the command's or runtime's writers.
func (r *NativeRuntime) Execute(ctx context.Context, cmd *Command) *Result {
	c, err := r.prepare(ctx, cmd)
	if err != nil {
		return NewErrorResult(1, err)
	}
	c.Stdout = firstWriter(cmd.Stdout, r.stdout)
	c.Stderr = firstWriter(cmd.Stderr, r.stderr)
	return exitResult(c.Run())
}

// ExecuteCapture runs cmd and captures its output
func (r *NativeRuntime) ExecuteCapture(ctx context.Context, cmd *Command) *Result {
	c, err := r.prepare(ctx, cmd)
	if err != nil {
		return NewErrorResult(1, err)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	result := exitResult(c.Run())
	result.Output = stdout.String()
	result.ErrOutput = stderr.String()
	return result
}

// prepare builds the exec.Cmd for cmd without starting it.
func (r *NativeRuntime) prepare(ctx context.Context, cmd *Command) (*exec.Cmd, error) {
	var argv []string
	switch {
	case cmd.Script != "":
		shell, err := r.getShell()
		if err != nil {
			return nil, err
		}
		argv = append([]string{shell}, r.getShellArgs(shell)...)
		argv = append(argv, r.activate(cmd.Script, shell))
	case len(cmd.Args) > 0:
		argv = cmd.Args
	default:
		return nil, errors.New("command has neither arguments nor script")
	}

	env := cmd.Env.Environ(r.environ())
	argv = r.hostArgv(argv, cmd.Dir, cmd.Env.Keys(), env)

	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = env
	return c, nil
}

// activate prefixes script with the virtualenv activate script when one exists.
func (r *NativeRuntime) activate(script, shell string) string {
	if r.venv == "" {
		return script
	}

	if shellBase(shell) == "cmd" {
		bat := filepath.Join(r.venv, "Scripts", "activate.bat")
		if _, err := os.Stat(bat); err != nil {
			return script
		}
		return fmt.Sprintf("%q && %s", bat, script)
	}

	activate := filepath.Join(r.venv, "bin", "activate")
	if runtime.GOOS == platform.Windows {
		activate = filepath.Join(r.venv, "Scripts", "activate")
	}
	if _, err := os.Stat(activate); err != nil {
		return script
	}
	if isPowerShell(shell) {
		return fmt.Sprintf("& %q; %s", filepath.Join(r.venv, "Scripts", "Activate.ps1"), script)
	}
	return fmt.Sprintf(". %s && %s", shellQuote(activate), script)
}

// hostArgv wraps argv with the sandbox spawn prefix. flatpak-spawn does not
// forward the working directory or environment, so both are passed explicitly.
func (r *NativeRuntime) hostArgv(argv []string, dir string, overlayKeys []string, env []string) []string {
	if len(r.spawnPrefix) == 0 {
		return argv
	}

	out := append([]string(nil), r.spawnPrefix...)
	if r.sandbox == platform.SandboxFlatpak {
		if dir != "" {
			out = append(out, "--directory="+dir)
		}
		for _, k := range overlayKeys {
			for _, kv := range env {
				if strings.HasPrefix(kv, k+"=") {
					out = append(out, "--env="+kv)
				}
			}
		}
	}
	return append(out, argv...)
}

// getShell determines which shell to use
func (r *NativeRuntime) getShell() (string, error) {
	if r.shell != "" {
		return r.shell, nil
	}

	switch runtime.GOOS {
	case platform.Windows:
		// cmd first: recipe commands are written for it
		if cmd, err := exec.LookPath("cmd"); err == nil {
			return cmd, nil
		}
		if pwsh, err := exec.LookPath("pwsh"); err == nil {
			return pwsh, nil
		}
		if ps, err := exec.LookPath("powershell"); err == nil {
			return ps, nil
		}
		return "", ErrNoShell
	default:
		if shell := os.Getenv("SHELL"); shell != "" {
			return shell, nil
		}
		if bash, err := exec.LookPath("bash"); err == nil {
			return bash, nil
		}
		if sh, err := exec.LookPath("sh"); err == nil {
			return sh, nil
		}
		return "", ErrNoShell
	}
}

// getShellArgs returns the arguments to pass to the shell
func (r *NativeRuntime) getShellArgs(shell string) []string {
	if len(r.shellArgs) > 0 {
		return r.shellArgs
	}

	switch base := shellBase(shell); {
	case base == "cmd":
		return []string{"/C"}
	case isPowerShell(shell):
		return []string{"-NoProfile", "-Command"}
	default:
		// Assume POSIX shell
		return []string{"-c"}
	}
}

func shellBase(shell string) string {
	base := filepath.Base(shell)
	// Also handle Windows paths on Unix systems
	if i := strings.LastIndex(base, "\\"); i >= 0 {
		base = base[i+1:]
	}
	return strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(base, ".exe"), ".EXE"))
}

func isPowerShell(shell string) bool {
	base := shellBase(shell)
	return base == "powershell" || base == "pwsh"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func firstWriter(ws ...io.Writer) io.Writer {
	for _, w := range ws {
		if w != nil {
			return w
		}
	}
	return io.Discard
}
