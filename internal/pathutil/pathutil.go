// Package pathutil derives output and intermediate locations from an input
// path. Nothing here touches the filesystem.
package pathutil

import (
	"path/filepath"
	"strings"

	"jdsx/internal/errs"
)

// Sibling returns the path next to input whose name is input's name with its
// final extension replaced by suffix. suffix may be an extension (".dex") or
// a name suffix ("_smali").
func Sibling(input, suffix string) (string, error) {
	parent, name, err := split(input, "sibling")
	if err != nil {
		return "", err
	}
	if err := checkSegment(suffix, "sibling"); err != nil {
		return "", err
	}
	out := filepath.Join(parent, StripExt(name)+suffix)
	return out, checkCollision(parent, name, out, "sibling")
}

// SiblingDir returns the directory called name next to input.
func SiblingDir(input, name string) (string, error) {
	parent, base, err := split(input, "sibling dir")
	if err != nil {
		return "", err
	}
	if err := checkSegment(name, "sibling dir"); err != nil {
		return "", err
	}
	out := filepath.Join(parent, name)
	return out, checkCollision(parent, base, out, "sibling dir")
}

// StripExt removes the text after the last '.' of a file name. Names that
// start with their only dot, or end with it, are returned unchanged.
func StripExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == "." || ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

func split(input, op string) (parent, name string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", errs.New(errs.InvalidPath, op, "input path is empty")
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", "", &errs.Error{Code: errs.InvalidPath, Op: op, Path: input, Cause: err}
	}
	parent = filepath.Dir(abs)
	name = filepath.Base(abs)
	if parent == abs || name == string(filepath.Separator) || name == "." {
		return "", "", &errs.Error{Code: errs.InvalidPath, Op: op, Message: "input path has no parent directory", Path: input}
	}
	return parent, name, nil
}

func checkSegment(s, op string) error {
	if strings.TrimSpace(s) == "" {
		return errs.New(errs.InvalidPath, op, "suffix is empty")
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." {
		return errs.Newf(errs.InvalidPath, op, "suffix %q must be a single path segment", s)
	}
	return nil
}

func checkCollision(parent, name, out, op string) error {
	if out == filepath.Join(parent, name) {
		return &errs.Error{Code: errs.InvalidPath, Op: op, Message: "derived path collides with input", Path: out}
	}
	return nil
}
