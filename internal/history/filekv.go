package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxValueBytes caps a single persisted list at roughly the budget a
// browser profile grants a site, so pruning behaves the same against the
// file backend as it would against a stricter one.
const DefaultMaxValueBytes = 5 << 20

// FileKV stores each key as one file under a state directory. Keys are
// flattened to safe file names; values above MaxValueBytes are rejected
// with ErrValueTooLarge so the stores prune instead of growing unbounded.
type FileKV struct {
	dir           string
	maxValueBytes int
}

var _ KV = (*FileKV)(nil)

// NewFileKV creates the state directory if needed and returns a file-backed
// KV. A maxValueBytes of zero applies DefaultMaxValueBytes; pass a negative
// value for no limit.
func NewFileKV(dir string, maxValueBytes int) (*FileKV, error) {
	if maxValueBytes == 0 {
		maxValueBytes = DefaultMaxValueBytes
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &FileKV{dir: dir, maxValueBytes: maxValueBytes}, nil
}

// path maps a key to its backing file. Keys use ":" as a namespace
// separator, which is not portable in file names.
func (f *FileKV) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(f.dir, name+".json")
}

// Get reads the file for key, if present.
func (f *FileKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read state for %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes value to the file for key, enforcing the size limit.
func (f *FileKV) Set(ctx context.Context, key string, value []byte) error {
	if f.maxValueBytes > 0 && len(value) > f.maxValueBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", ErrValueTooLarge, len(value), f.maxValueBytes)
	}
	if err := os.WriteFile(f.path(key), value, 0o600); err != nil {
		return fmt.Errorf("failed to write state for %s: %w", key, err)
	}
	return nil
}

// Delete removes the file for key. A missing file is not an error.
func (f *FileKV) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete state for %s: %w", key, err)
	}
	return nil
}
