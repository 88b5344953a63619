package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// DirStore maps {bucket, key} to <root>/<bucket>/<key> on the local
// filesystem.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at root. The directory is created if
// needed.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("dir store: %w", errors.NewMissingField("storage.root"))
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create root %s: %v: %w", root, err, errors.ErrStorage)
	}
	return &DirStore{root: root}, nil
}

// Root returns the store root directory.
func (d *DirStore) Root() string { return d.root }

func (d *DirStore) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("empty bucket or key: %w", errors.ErrStorage)
	}
	p := filepath.Join(d.root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes root: %w", key, errors.ErrStorage)
	}
	return p, nil
}

// Get implements Store.
func (d *DirStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, errors.NewBlobNotFound(bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", p, err, errors.ErrStorage)
	}
	return data, nil
}

// Put implements Store. The body is written to a temporary file in the
// target directory and renamed over the destination.
func (d *DirStore) Put(ctx context.Context, bucket, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(bucket, key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %v: %w", dir, err, errors.ErrStorage)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file: %v: %w", err, errors.ErrStorage)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %v: %w", tmpName, err, errors.ErrStorage)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %v: %w", tmpName, err, errors.ErrStorage)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %v: %w", p, err, errors.ErrStorage)
	}
	return nil
}
