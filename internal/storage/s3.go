package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Backend reads table files from S3-compatible object storage.
type S3Backend struct {
	client *minio.Client
	config *S3Config
}

// S3Config holds object storage settings, resolved from the scan range's
// storage-access properties.
type S3Config struct {
	Endpoint  string // server endpoint, e.g. s3.amazonaws.com or localhost:9000
	AccessKey string
	SecretKey string
	Region    string
	Token     string // session token for temporary credentials
	Secure    bool
}

// NewS3Backend creates an S3 backend.
func NewS3Backend(config *S3Config) (*S3Backend, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, config.Token),
		Secure: config.Secure,
		Region: config.Region,
	}

	client, err := minio.New(config.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Backend{
		client: client,
		config: config,
	}, nil
}

// Stat returns the object's size.
func (b *S3Backend) Stat(ctx context.Context, path string) (int64, error) {
	bucket, key, err := splitS3Path(path)
	if err != nil {
		return 0, err
	}

	info, err := b.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}
	return info.Size, nil
}

// Open opens the object for random-access reads. minio objects support
// seeking, which the parquet footer reader depends on.
func (b *S3Backend) Open(ctx context.Context, path string) (File, error) {
	bucket, key, err := splitS3Path(path)
	if err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// ReadFile reads the whole object.
func (b *S3Backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	obj, err := b.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// List returns the entry names directly under a directory prefix.
func (b *S3Backend) List(ctx context.Context, dir string) ([]string, error) {
	bucket, prefix, err := splitS3Path(dir)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	objectCh := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	})

	names := make([]string, 0)
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		name := strings.TrimPrefix(object.Key, prefix)
		name = strings.TrimSuffix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// splitS3Path splits an s3://bucket/key URI (s3a and s3n schemes are
// treated the same) into bucket and key.
func splitS3Path(path string) (string, string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("invalid object path %q: %w", path, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("object path %q has no bucket", path)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
