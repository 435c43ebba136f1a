package artifactstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"jdsx/internal/artifact"
	"jdsx/internal/safeio"
)

// NewRunID returns a fresh publish run ID.
func NewRunID() string {
	return uuid.NewString()
}

// Published records where an artifact's files were stored.
type Published struct {
	RunID string
	Kind  artifact.Kind
	Paths []string
}

// Publish uploads every file of a under runID. A file artifact is stored
// under its base name; a directory artifact keeps its layout below the
// directory's name, e.g. Hello_smali/Hello.smali.
func Publish(ctx context.Context, store Store, runID string, a artifact.Artifact) (Published, error) {
	if store == nil {
		return Published{}, fmt.Errorf("store is nil")
	}
	if runID == "" {
		runID = NewRunID()
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		return Published{}, fmt.Errorf("publish %s: %w", a, err)
	}
	out := Published{RunID: runID, Kind: a.Kind}
	base := filepath.Base(a.Path)

	if !info.IsDir() {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return Published{}, err
		}
		if err := store.Put(ctx, runID, base, data); err != nil {
			return Published{}, fmt.Errorf("put %s: %w", base, err)
		}
		out.Paths = []string{base}
		return out, nil
	}

	sfs, err := safeio.NewSafeFS(a.Path)
	if err != nil {
		return Published{}, err
	}
	err = fs.WalkDir(sfs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return ctx.Err()
		}
		data, err := sfs.SafeReadFile(filepath.FromSlash(p))
		if err != nil {
			return err
		}
		key := path.Join(base, p)
		if err := store.Put(ctx, runID, key, data); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		out.Paths = append(out.Paths, key)
		return nil
	})
	if err != nil {
		return Published{}, err
	}
	return out, nil
}
