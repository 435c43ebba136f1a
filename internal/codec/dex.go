package codec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// D8 runs the indexed DEX encoder. d8 only accepts an output directory, so
// it writes into a staging directory next to output and the produced
// classes.dex is moved into place. Extra multidex files land beside output
// and are reported in Result.Aux.
type D8 struct {
	Tools   *Toolchain
	Command []string
	MinAPI  int
}

func (D8) Edge() Edge   { return ClassToDex }
func (D8) Name() string { return "d8" }

func (a D8) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, false); err != nil {
		return Result{}, err
	}
	staging := output + ".d8"
	if err := os.RemoveAll(staging); err != nil {
		return Result{}, failure(e, a.Name(), "clear staging dir", err, nil)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return Result{}, failure(e, a.Name(), "create staging dir", err, nil)
	}
	defer os.RemoveAll(staging)

	args := []string{"--output", staging}
	if a.MinAPI > 0 {
		args = append(args, "--min-api", strconv.Itoa(a.MinAPI))
	}
	args = append(args, inputs...)
	out, err := a.Tools.Exec(ctx, "", a.Command, args...)
	if err != nil {
		return Result{}, failure(e, a.Name(), "encoder failed", err, out)
	}

	produced, err := findDexFiles(staging)
	if err != nil || len(produced) == 0 {
		return Result{}, failure(e, a.Name(), "no .dex file was generated", err, out)
	}
	if err := os.Rename(produced[0], output); err != nil {
		return Result{}, failure(e, a.Name(), "move produced dex", err, nil)
	}
	res := Result{Path: output}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	for _, extra := range produced[1:] {
		dst := base + "-" + filepath.Base(extra)
		if err := os.Rename(extra, dst); err != nil {
			return Result{}, failure(e, a.Name(), "move produced dex", err, nil)
		}
		res.Aux = append(res.Aux, dst)
	}
	return res, nil
}

// findDexFiles lists the .dex files directly in dir, classes.dex first.
func findDexFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ent := range entries {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ".dex") {
			continue
		}
		out = append(out, filepath.Join(dir, ent.Name()))
	}
	sort.Slice(out, func(i, j int) bool {
		return dexOrder(filepath.Base(out[i])) < dexOrder(filepath.Base(out[j]))
	})
	return out, nil
}

// dexOrder sorts classes.dex, classes2.dex, ... numerically; anything else
// after them by name.
func dexOrder(name string) string {
	n := strings.TrimSuffix(strings.TrimPrefix(name, "classes"), ".dex")
	if n == "" {
		return fmt.Sprintf("%08d", 1)
	}
	if i, err := strconv.Atoi(n); err == nil {
		return fmt.Sprintf("%08d", i)
	}
	return "~" + name
}

// DX runs the legacy single-pass DEX encoder, which writes output directly.
type DX struct {
	Tools   *Toolchain
	Command []string
}

func (DX) Edge() Edge   { return ClassToDex }
func (DX) Name() string { return "dx" }

func (a DX) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, false); err != nil {
		return Result{}, err
	}
	args := append([]string{"--dex", "--no-strict", "--output=" + output}, inputs...)
	out, err := a.Tools.Exec(ctx, "", a.Command, args...)
	if err != nil {
		return Result{}, failure(e, a.Name(), "encoder failed", err, out)
	}
	if err := expectOutput(e, a.Name(), output, out); err != nil {
		return Result{}, err
	}
	return Result{Path: output}, nil
}
