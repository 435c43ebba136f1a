// Package artifactstore publishes conversion results to durable storage
// under a run ID.
package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Store persists published files, keyed by run ID and slash-separated path.
type Store interface {
	Put(ctx context.Context, runID, path string, content []byte) error
	Get(ctx context.Context, runID, path string) ([]byte, error)
	// GetURL returns a link to the stored file, or "" when the backend
	// cannot serve links.
	GetURL(ctx context.Context, runID, path string) (string, error)
	List(ctx context.Context, runID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

// cleanKey normalizes runID and p and rejects keys that would escape the
// run's namespace.
func cleanKey(runID, p string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", "", fmt.Errorf("run_id is required")
	}
	if strings.ContainsAny(runID, `/\`) {
		return "", "", fmt.Errorf("invalid run_id: %s", runID)
	}
	p = strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(p), `\`, "/"), "/")
	if p == "" {
		return "", "", fmt.Errorf("path is required")
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", "", fmt.Errorf("invalid artifact path: %s", p)
	}
	return runID, cleaned, nil
}

func objectKey(runID, p string) string {
	return runID + "/" + p
}
