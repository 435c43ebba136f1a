package convert

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"jdsx/internal/errs"
	"jdsx/internal/pathutil"
	"jdsx/internal/safeio"
)

// nestedPattern matches base itself and its nested classes (base$Inner,
// base$1) with the given extension. An empty base matches every file.
func nestedPattern(base, ext string) *regexp.Regexp {
	if base == "" {
		return regexp.MustCompile(`^.*` + regexp.QuoteMeta(ext) + `$`)
	}
	return regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(?:\$.*)?` + regexp.QuoteMeta(ext) + `$`)
}

// FindClassFiles returns every .class file under dir whose name is base or
// a nested class of base, sorted. An empty base returns all class files.
func FindClassFiles(dir, base string) ([]string, error) {
	return findNested(dir, base, ".class", true)
}

// FindSmaliFiles is FindClassFiles for .smali files.
func FindSmaliFiles(dir, base string) ([]string, error) {
	return findNested(dir, base, ".smali", true)
}

func findNested(dir, base, ext string, recursive bool) ([]string, error) {
	if err := safeio.RequireExists(dir, safeio.RoleDir, "search dir"); err != nil {
		return nil, err
	}
	re := nestedPattern(base, ext)
	var out []string
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, ent := range entries {
			if ent.Type().IsRegular() && re.MatchString(ent.Name()) {
				out = append(out, filepath.Join(dir, ent.Name()))
			}
		}
		sort.Strings(out)
		return out, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && re.MatchString(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// expandClassInput turns a ClassFiles path into the class files handed to
// the encoder: a directory yields every .class beneath it, a single
// Outer.class yields itself plus its nested-class siblings.
func expandClassInput(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &errs.Error{Code: errs.MissingArtifact, Op: "expand", Message: "class input does not exist", Path: path}
	}
	var files []string
	if info.IsDir() {
		files, err = FindClassFiles(path, "")
	} else {
		name := filepath.Base(path)
		if !strings.EqualFold(filepath.Ext(name), ".class") {
			return []string{path}, nil
		}
		files, err = findNested(filepath.Dir(path), pathutil.StripExt(name), ".class", false)
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &errs.Error{Code: errs.MissingArtifact, Op: "expand", Message: "no .class files found", Path: path}
	}
	return files, nil
}

// expandJavaInput turns a JavaSource path into the .java files handed to
// the compiler.
func expandJavaInput(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &errs.Error{Code: errs.MissingArtifact, Op: "expand", Message: "java input does not exist", Path: path}
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := findNested(path, "", ".java", true)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &errs.Error{Code: errs.MissingArtifact, Op: "expand", Message: "no .java files found", Path: path}
	}
	return files, nil
}
