// SPDX-License-Identifier: MPL-2.0

package strategy

import (
	"context"
	"strings"
)

// PythonStrategy builds dependencies with their setup.py script.
type PythonStrategy struct{}

// Name returns TypePython.
func (*PythonStrategy) Name() Type { return TypePython }

// Build runs "<python> <setup> build install <build_args>".
func (s *PythonStrategy) Build(ctx context.Context, req *Request) error {
	script, err := s.script(req, "build", "install")
	if err != nil {
		return err
	}
	return req.run(ctx, "build", req.WorkDir, script)
}

// Clean runs "<python> <setup> clean <build_args>".
func (s *PythonStrategy) Clean(ctx context.Context, req *Request) error {
	script, err := s.script(req, "clean")
	if err != nil {
		return err
	}
	return req.run(ctx, "clean", req.WorkDir, script)
}

func (*PythonStrategy) script(req *Request, actions ...string) (string, error) {
	setup, err := req.Props.String(req.Dependency, "alt_setup.py", "setup.py")
	if err != nil {
		return "", err
	}
	extra, err := req.Props.Strings(req.Dependency, "build_args")
	if err != nil {
		return "", err
	}

	python := req.Python
	if python == "" {
		python = "python"
	}
	args := append([]string{python, setup}, actions...)
	args = append(args, extra...)
	return strings.Join(args, " "), nil
}
