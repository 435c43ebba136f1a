package codec

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"jdsx/internal/safeio"
)

// ContainsClasses reports whether the archive at path has at least one
// .class entry.
func ContainsClasses(path string) (bool, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false, fmt.Errorf("open jar %s: %w", path, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && strings.HasSuffix(f.Name, ".class") {
			return true, nil
		}
	}
	return false, nil
}

// ExtractJar unpacks the archive at src into dest. Entries that would land
// outside dest are rejected. It returns the number of files written.
func ExtractJar(src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open jar %s: %w", src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, err
	}
	n := 0
	for _, f := range r.File {
		target, err := safeio.Within(dest, f.Name)
		if err != nil {
			return n, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return n, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return n, err
		}
		if err := writeEntry(f, target); err != nil {
			return n, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		n++
	}
	return n, nil
}

func writeEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Extract unpacks a class JAR in-process.
type Extract struct{}

func (Extract) Edge() Edge   { return JarToClass }
func (Extract) Name() string { return "extract" }

func (a Extract) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, true); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, failure(e, a.Name(), "cancelled", err, nil)
	}
	if _, err := ExtractJar(inputs[0], output); err != nil {
		return Result{}, failure(e, a.Name(), "extraction failed", err, nil)
	}
	if countFiles(output, ".class") == 0 {
		return Result{}, failure(e, a.Name(), "jar contains no class files", nil, nil)
	}
	return Result{Path: output}, nil
}

// Decompiler runs the Fernflower console decompiler. Fernflower writes a
// jar of sources into a destination directory; that jar is unpacked into
// output. Fernflower builds that write loose .java files are accepted too.
type Decompiler struct {
	Tools   *Toolchain
	Command []string
}

func (Decompiler) Edge() Edge   { return JarToJava }
func (Decompiler) Name() string { return "fernflower" }

func (a Decompiler) Run(ctx context.Context, inputs []string, output string) (Result, error) {
	e := a.Edge()
	if err := checkArgs(e, a.Name(), inputs, output, true); err != nil {
		return Result{}, err
	}
	ok, err := ContainsClasses(inputs[0])
	if err != nil {
		return Result{}, failure(e, a.Name(), "inspect jar", err, nil)
	}
	if !ok {
		return Result{}, failure(e, a.Name(), "jar contains no class files", nil, nil)
	}

	staging := output + "_jar"
	if err := os.RemoveAll(staging); err != nil {
		return Result{}, failure(e, a.Name(), "clear staging dir", err, nil)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return Result{}, failure(e, a.Name(), "create staging dir", err, nil)
	}
	defer os.RemoveAll(staging)

	out, err := a.Tools.Exec(ctx, "", a.Command, inputs[0], staging)
	if err != nil {
		return Result{}, failure(e, a.Name(), "decompilation failed", err, out)
	}

	if jar := firstJar(staging); jar != "" {
		if _, err := ExtractJar(jar, output); err != nil {
			return Result{}, failure(e, a.Name(), "unpack decompiled sources", err, out)
		}
	} else if countFiles(staging, ".java") > 0 {
		if err := os.RemoveAll(output); err != nil {
			return Result{}, failure(e, a.Name(), "replace output dir", err, nil)
		}
		if err := os.Rename(staging, output); err != nil {
			return Result{}, failure(e, a.Name(), "move decompiled sources", err, nil)
		}
	}
	if !isDir(output) || countFiles(output, ".java") == 0 {
		return Result{}, failure(e, a.Name(), "no .java sources were generated", nil, out)
	}
	return Result{Path: output}, nil
}

func firstJar(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, ent := range entries {
		if !ent.IsDir() && strings.EqualFold(filepath.Ext(ent.Name()), ".jar") {
			return filepath.Join(dir, ent.Name())
		}
	}
	return ""
}
