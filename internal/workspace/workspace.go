// Package workspace owns the temporary directories a conversion creates for
// caller-supplied text and isolated inputs.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"jdsx/internal/errs"
)

// Workspace hands out fresh scopes under a root and removes them on Cleanup.
// A Workspace is safe for concurrent use; scopes are never shared.
type Workspace struct {
	root string

	mu     sync.Mutex
	scopes []string
	closed bool
}

// New returns a workspace rooted at root ("" means os.TempDir()).
func New(root string) *Workspace {
	return &Workspace{root: strings.TrimSpace(root)}
}

// Root returns the directory scopes are created under.
func (w *Workspace) Root() string {
	if w.root == "" {
		return os.TempDir()
	}
	return w.root
}

// NewScope creates a fresh directory and registers it for removal.
func (w *Workspace) NewScope(prefix string) (string, error) {
	if w == nil {
		return "", errors.New("workspace is nil")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "jdsx"
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return "", errors.New("workspace is closed")
	}
	if w.root != "" {
		if err := os.MkdirAll(w.root, 0o755); err != nil {
			return "", fmt.Errorf("create temp root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(w.root, prefix+"-")
	if err != nil {
		return "", fmt.Errorf("create scope: %w", err)
	}
	w.scopes = append(w.scopes, dir)
	return dir, nil
}

// Materialize writes text verbatim to fileName inside a fresh scope.
func (w *Workspace) Materialize(text, fileName string) (string, error) {
	const op = "materialize"
	if strings.TrimSpace(text) == "" {
		return "", errs.New(errs.EmptyInput, op, "source text is empty")
	}
	if err := checkFileName(fileName, op); err != nil {
		return "", err
	}
	dir, err := w.NewScope(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Import copies the file at src into a fresh scope so everything derived
// from it lands inside the workspace instead of next to the original.
// Paths already under the workspace root are returned unchanged.
func (w *Workspace) Import(src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	if rel, err := filepath.Rel(w.Root(), abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		return abs, nil
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &errs.Error{Code: errs.MissingArtifact, Op: "import", Message: "input does not exist", Path: src}
	}
	dir, err := w.NewScope("import")
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(abs))
	if info.IsDir() {
		return dst, copyTree(abs, dst)
	}
	return dst, copyFile(abs, dst, info.Mode().Perm())
}

// Scopes returns the scopes created so far.
func (w *Workspace) Scopes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.scopes...)
}

// Cleanup removes every scope. It is best-effort: all scopes are attempted
// and the errors joined. The workspace refuses new scopes afterwards.
func (w *Workspace) Cleanup() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	scopes := w.scopes
	w.scopes = nil
	w.closed = true
	w.mu.Unlock()

	var errList []error
	for _, dir := range scopes {
		if err := os.RemoveAll(dir); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func checkFileName(name, op string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(errs.InvalidArgument, op, "file name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errs.Newf(errs.InvalidArgument, op, "file name %q must be a single path segment", name)
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
