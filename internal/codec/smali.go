package codec

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Baksmali disassembles a DEX file into a directory of .smali files.
type Baksmali struct {
	Tools   *Toolchain
	Command []string
}

func (Baksmali) Edge() Edge   { return DexToSmali }
func (Baksmali) Name() string { return "baksmali" }

func (a Baksmali) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, true); err != nil {
		return Result{}, err
	}
	out, err := a.Tools.Exec(ctx, "", a.Command, "disassemble", inputs[0], "-o", output)
	if err != nil {
		return Result{}, failure(e, a.Name(), "disassembly failed", err, out)
	}
	if n := countFiles(output, ".smali"); n == 0 {
		return Result{}, failure(e, a.Name(), "no .smali files were generated", nil, out)
	}
	return Result{Path: output}, nil
}

// Smali assembles .smali files or directories into a DEX file.
type Smali struct {
	Tools   *Toolchain
	Command []string
}

func (Smali) Edge() Edge   { return SmaliToDex }
func (Smali) Name() string { return "smali" }

func (a Smali) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, false); err != nil {
		return Result{}, err
	}
	args := append([]string{"assemble"}, inputs...)
	args = append(args, "-o", output)
	out, err := a.Tools.Exec(ctx, "", a.Command, args...)
	if err != nil {
		return Result{}, failure(e, a.Name(), "assembly failed", err, out)
	}
	if err := expectOutput(e, a.Name(), output, out); err != nil {
		return Result{}, err
	}
	return Result{Path: output}, nil
}

// countFiles counts regular files under root whose extension is ext.
func countFiles(root, ext string) int {
	n := 0
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(d.Name()), ext) {
			n++
		}
		return nil
	})
	return n
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
