// Package blob provides whole-object storage for the silver dataset and the
// analysis artifacts.
//
// Objects are addressed by {bucket, key}. Reads return the full body; writes
// replace the full body. There are no versions, retries or existence checks.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// Content types used for objects written by the stage.
const (
	ContentTypeCSV     = "text/csv"
	ContentTypePNG     = "image/png"
	ContentTypeParquet = "application/vnd.apache.parquet"
)

// Store reads and writes whole objects.
type Store interface {
	// Get returns the object body. A missing object yields an error
	// wrapping errors.ErrBlobNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put replaces the object body.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Backend names accepted by Open.
const (
	BackendS3     = "s3"
	BackendDir    = "dir"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	Region    string
	Endpoint  string
	PathStyle bool
	Root      string
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendS3, "":
		return NewS3Store(ctx, S3Options{
			Region:    opts.Region,
			Endpoint:  opts.Endpoint,
			PathStyle: opts.PathStyle,
		})
	case BackendDir:
		return NewDirStore(opts.Root)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q: %w", opts.Backend, errors.ErrInvalidConfig)
	}
}

// Sink writes artifacts under a fixed bucket and key prefix.
type Sink struct {
	Store  Store
	Bucket string
	Prefix string
}

// Key returns the full key for an artifact name.
func (s Sink) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(strings.TrimSuffix(s.Prefix, "/"), name)
}

// Put writes an artifact and returns the key it was written to.
func (s Sink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := s.Key(name)
	if err := s.Store.Put(ctx, s.Bucket, key, data, contentType); err != nil {
		return "", fmt.Errorf("put artifact %s: %w", key, err)
	}
	return key, nil
}
