package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// File is a readable, seekable handle onto one stored object.
type File interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Backend abstracts the filesystem a table lives on. Paths are the full
// URIs the planner hands down (hdfs://..., s3://..., or plain local
// paths); each backend strips its own scheme and authority.
type Backend interface {
	// Stat returns the object's size in bytes.
	Stat(ctx context.Context, path string) (int64, error)

	// Open opens the object for random-access reads.
	Open(ctx context.Context, path string) (File, error)

	// ReadFile reads the whole object.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// List returns the names of entries directly under a directory.
	List(ctx context.Context, dir string) ([]string, error)
}

// LocalBackend serves tables on the local filesystem. Used for dev and
// tests; production tables live on HDFS or object storage.
type LocalBackend struct{}

// NewLocalBackend creates a local filesystem backend.
func NewLocalBackend() *LocalBackend { return &LocalBackend{} }

// Stat returns the file size.
func (b *LocalBackend) Stat(ctx context.Context, path string) (int64, error) {
	info, err := os.Stat(stripFileScheme(path))
	if err != nil {
		return 0, fmt.Errorf("failed to stat local file: %w", err)
	}
	return info.Size(), nil
}

// Open opens the file.
func (b *LocalBackend) Open(ctx context.Context, path string) (File, error) {
	f, err := os.Open(stripFileScheme(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open local file: %w", err)
	}
	return f, nil
}

// ReadFile reads the whole file.
func (b *LocalBackend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(stripFileScheme(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read local file: %w", err)
	}
	return data, nil
}

// List returns the entry names under a directory.
func (b *LocalBackend) List(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(stripFileScheme(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list local directory: %w", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func stripFileScheme(path string) string {
	const prefix = "file://"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):]
	}
	return filepath.Clean(path)
}
