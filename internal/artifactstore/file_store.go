package artifactstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jdsx/internal/safeio"
)

// FileStore keeps published files in a local directory tree:
// <root>/<runID>/<path>.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("artifact root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &FileStore{root: abs}, nil
}

func (s *FileStore) Put(_ context.Context, runID, p string, content []byte) error {
	target, err := s.pathFor(runID, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, content, 0o644)
}

func (s *FileStore) Get(_ context.Context, runID, p string) ([]byte, error) {
	target, err := s.pathFor(runID, p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// GetURL returns a file:// URL for the stored file.
func (s *FileStore) GetURL(_ context.Context, runID, p string) (string, error) {
	target, err := s.pathFor(runID, p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return "file://" + filepath.ToSlash(target), nil
}

func (s *FileStore) List(_ context.Context, runID string) ([]string, error) {
	runID, _, err := cleanKey(runID, "x")
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	sfs, err := safeio.NewSafeFS(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	err = fs.WalkDir(sfs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) pathFor(runID, p string) (string, error) {
	if s == nil || s.root == "" {
		return "", fmt.Errorf("artifact store is not configured")
	}
	runID, p, err := cleanKey(runID, p)
	if err != nil {
		return "", err
	}
	return safeio.Within(filepath.Join(s.root, runID), p)
}
