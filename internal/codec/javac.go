package codec

import (
	"context"
	"os"
)

// Javac compiles .java sources into a directory of class files.
type Javac struct {
	Tools   *Toolchain
	Command []string
}

func (Javac) Edge() Edge   { return JavaToClass }
func (Javac) Name() string { return "javac" }

func (a Javac) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, false); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return Result{}, failure(e, a.Name(), "create class output dir", err, nil)
	}
	args := append([]string{"-d", output}, inputs...)
	out, err := a.Tools.Exec(ctx, "", a.Command, args...)
	if err != nil {
		return Result{}, failure(e, a.Name(), "compilation failed", err, out)
	}
	if countFiles(output, ".class") == 0 {
		return Result{}, failure(e, a.Name(), "compilation did not generate class files", nil, out)
	}
	return Result{Path: output}, nil
}
