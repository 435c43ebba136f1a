package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"jdsx/internal/codec"
	"jdsx/internal/errs"
	"jdsx/internal/workspace"
)

// The simulated toolchain stands in for the real tools. A simulated dex is
// the magic header followed by newline-separated class names, which is
// enough for the chain to carry class identity from hop to hop.

const simMagic = "dex\n035\x00"

type simAdapter struct {
	edge codec.Edge
	run  func(inputs []string, output string) error

	mu    sync.Mutex
	calls int
}

func (a *simAdapter) Edge() codec.Edge { return a.edge }
func (a *simAdapter) Name() string     { return "sim-" + a.edge.String() }

func (a *simAdapter) Run(_ context.Context, inputs []string, output string) (codec.Result, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if err := a.run(inputs, output); err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			return codec.Result{}, err
		}
		return codec.Result{}, &errs.Error{Code: errs.CodecFailure, Op: a.Name(), Hop: a.edge.String(), Cause: err}
	}
	return codec.Result{Path: output}, nil
}

func (a *simAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func writeSimDex(path string, names []string) error {
	sort.Strings(names)
	return os.WriteFile(path, []byte(simMagic+strings.Join(names, "\n")), 0o644)
}

func readSimDex(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	body := strings.TrimPrefix(string(b), simMagic)
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, "\n"), nil
}

func writeSimJar(path string, entries map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(body)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

func readJarClasses(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, ".class") {
			names = append(names, strings.TrimSuffix(f.Name, ".class"))
		}
	}
	return names, nil
}

func listNames(inputs []string, ext string) ([]string, error) {
	var names []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			err := filepath.WalkDir(in, func(p string, d os.DirEntry, err error) error {
				if err == nil && !d.IsDir() && filepath.Ext(p) == ext {
					names = append(names, strings.TrimSuffix(filepath.Base(p), ext))
				}
				return err
			})
			if err != nil {
				return nil, err
			}
			continue
		}
		names = append(names, strings.TrimSuffix(filepath.Base(in), ext))
	}
	return names, nil
}

func simAdapters() map[codec.Edge]*simAdapter {
	m := map[codec.Edge]*simAdapter{}
	add := func(e codec.Edge, run func([]string, string) error) {
		m[e] = &simAdapter{edge: e, run: run}
	}
	add(codec.ClassToDex, func(inputs []string, output string) error {
		var names []string
		for _, in := range inputs {
			info, err := os.Stat(in)
			if err != nil {
				return err
			}
			if info.Size() == 0 {
				// leave a partial file behind like a crashing encoder would
				_ = os.WriteFile(output, []byte("partial"), 0o644)
				return fmt.Errorf("%s: invalid class file", filepath.Base(in))
			}
			names = append(names, strings.TrimSuffix(filepath.Base(in), ".class"))
		}
		return writeSimDex(output, names)
	})
	add(codec.DexToSmali, func(inputs []string, output string) error {
		names, err := readSimDex(inputs[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(output, 0o755); err != nil {
			return err
		}
		for _, n := range names {
			body := fmt.Sprintf(".class public L%s;\n.super Ljava/lang/Object;\n", n)
			if err := os.WriteFile(filepath.Join(output, n+".smali"), []byte(body), 0o644); err != nil {
				return err
			}
		}
		return nil
	})
	add(codec.SmaliToDex, func(inputs []string, output string) error {
		names, err := listNames(inputs, ".smali")
		if err != nil {
			return err
		}
		return writeSimDex(output, names)
	})
	add(codec.DexToJar, func(inputs []string, output string) error {
		names, err := readSimDex(inputs[0])
		if err != nil {
			return err
		}
		entries := map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n"}
		for _, n := range names {
			entries[n+".class"] = "\xCA\xFE\xBA\xBE"
		}
		return writeSimJar(output, entries)
	})
	add(codec.JarToDex, func(inputs []string, output string) error {
		names, err := readJarClasses(inputs[0])
		if err != nil {
			return err
		}
		return writeSimDex(output, names)
	})
	add(codec.JarToJava, func(inputs []string, output string) error {
		names, err := readJarClasses(inputs[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(output, 0o755); err != nil {
			return err
		}
		for _, n := range names {
			body := fmt.Sprintf("public class %s {\n}\n", n)
			if err := os.WriteFile(filepath.Join(output, n+".java"), []byte(body), 0o644); err != nil {
				return err
			}
		}
		return nil
	})
	add(codec.JavaToClass, func(inputs []string, output string) error {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return err
		}
		for _, in := range inputs {
			src, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			name, ok := JavaClassName(string(src))
			if !ok {
				return fmt.Errorf("%s: class not found", in)
			}
			if err := os.WriteFile(filepath.Join(output, name+".class"), []byte("\xCA\xFE\xBA\xBE"), 0o644); err != nil {
				return err
			}
		}
		return nil
	})
	return m
}

// newSim wires the simulated adapters plus the real in-process extractor.
func newSim(t *testing.T, opts ...Option) (*Orchestrator, map[codec.Edge]*simAdapter) {
	t.Helper()
	sims := simAdapters()
	reg := codec.NewRegistry(codec.Extract{})
	for _, a := range sims {
		reg.Register(a)
	}
	ws := workspace.New(filepath.Join(t.TempDir(), "work"))
	t.Cleanup(func() { _ = ws.Cleanup() })
	return New(reg, ws, opts...), sims
}
