package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var _ Storage = (*Local)(nil)

// Local maps blob keys onto a directory tree rooted at dataDir.
type Local struct {
	dataDir string
}

func NewLocal(dataDir string) *Local {
	return &Local{dataDir: dataDir}
}

func (l *Local) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.resolve(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (l *Local) Write(_ context.Context, key string, data []byte) error {
	path := l.resolve(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	err := os.Remove(l.resolve(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(l.resolve(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(l.resolve(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}

// DeleteTree removes an entire key prefix. Used when a source is deleted
// together with its data.
func (l *Local) DeleteTree(_ context.Context, prefix string) error {
	if err := os.RemoveAll(l.resolve(prefix)); err != nil {
		return fmt.Errorf("failed to delete tree %s: %w", prefix, err)
	}
	return nil
}

func (l *Local) resolve(key string) string {
	return filepath.Join(l.dataDir, filepath.FromSlash(key))
}
