package proofstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes proofs under a base directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (l *LocalStore) Put(_ context.Context, clientKey, proofID string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty proof for %s", clientKey)
	}
	path := filepath.Join(l.dir, filepath.FromSlash(BuildKey(clientKey, proofID, mimeType)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create proof directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write proof %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs), nil
}
