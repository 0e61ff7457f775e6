package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirFetcher retrieves stored messages from a local directory, keyed by
// relative path. It backs dry runs and tests where no bucket is involved.
type DirFetcher struct {
	root string
}

// NewDir creates a DirFetcher rooted at the given directory.
func NewDir(root string) *DirFetcher {
	return &DirFetcher{root: root}
}

// Fetch reads the file at key relative to the fetcher's root.
func (f *DirFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.root, key))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	return data, nil
}
