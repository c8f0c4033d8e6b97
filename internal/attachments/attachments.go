// Package attachments removes stored transaction attachment files.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finpanel/internal/logger"
)

// ErrInvalidPath is returned for paths that escape the store root.
var ErrInvalidPath = errors.New("attachments: invalid path")

// Store deletes attachment files. Deleting a path that does not exist is not an error.
type Store interface {
	Delete(ctx context.Context, path string) error
}

// Purge deletes every path, logging and skipping failures.
func Purge(ctx context.Context, store Store, paths []string) {
	if store == nil {
		return
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := store.Delete(ctx, p); err != nil {
			logger.Get().Warnw("failed to delete attachment", "path", p, "error", err)
		}
	}
}

// Removed returns the entries of before that are missing from after.
func Removed(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, p := range after {
		keep[p] = struct{}{}
	}
	var removed []string
	for _, p := range before {
		if _, ok := keep[p]; !ok {
			removed = append(removed, p)
		}
	}
	return removed
}

// LocalStore keeps attachments under a directory on local disk.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: filepath.Clean(dir)}
}

// Delete removes root/path.
func (s *LocalStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(path))
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, clean), nil
}

var _ Store = (*LocalStore)(nil)
