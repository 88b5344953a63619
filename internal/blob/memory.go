package blob

import (
	"context"
	"sort"
	"sync"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// Object is a stored body with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	puts    int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[memKey(bucket, key)]
	if !ok {
		return nil, errors.NewBlobNotFound(bucket, key)
	}
	return append([]byte(nil), obj.Data...), nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[memKey(bucket, key)] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
	}
	m.puts++
	return nil
}

// Object returns a copy of a stored object.
func (m *MemoryStore) Object(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[memKey(bucket, key)]
	if !ok {
		return Object{}, false
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, true
}

// Keys returns the keys stored in bucket, sorted.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := bucket + "/"
	var keys []string
	for k := range m.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(prefix):])
		}
	}
	sort.Strings(keys)
	return keys
}

// Puts returns the number of successful Put calls.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
