package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"

	"github.com/colinmarc/hdfs/v2"
)

// HDFSBackend reads table files from HDFS.
type HDFSBackend struct {
	client *hdfs.Client
	config *HDFSConfig
}

// HDFSConfig holds HDFS connection settings, resolved from the scan
// range's storage-access properties.
type HDFSConfig struct {
	NameNodes []string // NameNode addresses
	Username  string   // HDFS user
}

// NewHDFSBackend creates an HDFS backend.
func NewHDFSBackend(config *HDFSConfig) (*HDFSBackend, error) {
	if len(config.NameNodes) == 0 {
		return nil, fmt.Errorf("at least one NameNode is required")
	}

	opts := hdfs.ClientOptions{
		Addresses: config.NameNodes,
		User:      config.Username,
	}

	client, err := hdfs.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create HDFS client: %w", err)
	}

	return &HDFSBackend{
		client: client,
		config: config,
	}, nil
}

// Close closes the HDFS connection.
func (b *HDFSBackend) Close() error {
	return b.client.Close()
}

// Stat returns the file size.
func (b *HDFSBackend) Stat(ctx context.Context, path string) (int64, error) {
	info, err := b.client.Stat(hdfsPath(path))
	if err != nil {
		return 0, fmt.Errorf("failed to stat HDFS file: %w", err)
	}
	return info.Size(), nil
}

// Open opens the file for random-access reads.
func (b *HDFSBackend) Open(ctx context.Context, path string) (File, error) {
	reader, err := b.client.Open(hdfsPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open HDFS file: %w", err)
	}
	return reader, nil
}

// ReadFile reads the whole file.
func (b *HDFSBackend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	reader, err := b.client.Open(hdfsPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open HDFS file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read HDFS file: %w", err)
	}
	return data, nil
}

// List returns the entry names under a directory.
func (b *HDFSBackend) List(ctx context.Context, dir string) ([]string, error) {
	infos, err := b.client.ReadDir(hdfsPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to list HDFS directory: %w", err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	sort.Strings(names)
	return names, nil
}

// hdfsPath strips the scheme and authority from a full hdfs:// URI; the
// client is already bound to the NameNode.
func hdfsPath(path string) string {
	u, err := url.Parse(path)
	if err != nil || u.Scheme == "" {
		return path
	}
	return u.Path
}
