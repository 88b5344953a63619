package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/xtxerr/rcaeda/internal/blob"
)

// FaultStore wraps a store and fails selected calls. A rule matches when
// the key ends with its suffix.
type FaultStore struct {
	blob.Store

	mu      sync.Mutex
	getErrs map[string]error
	putErrs map[string]error
	gets    int
	puts    []string
}

// NewFaultStore wraps s.
func NewFaultStore(s blob.Store) *FaultStore {
	return &FaultStore{
		Store:   s,
		getErrs: make(map[string]error),
		putErrs: make(map[string]error),
	}
}

// FailGet makes Get fail for keys ending with suffix.
func (f *FaultStore) FailGet(suffix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrs[suffix] = err
}

// FailPut makes Put fail for keys ending with suffix.
func (f *FaultStore) FailPut(suffix string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putErrs[suffix] = err
}

func match(rules map[string]error, key string) error {
	for suffix, err := range rules {
		if strings.HasSuffix(key, suffix) {
			return err
		}
	}
	return nil
}

// Get implements blob.Store.
func (f *FaultStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	f.gets++
	err := match(f.getErrs, key)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, bucket, key)
}

// Put implements blob.Store.
func (f *FaultStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	f.mu.Lock()
	err := match(f.putErrs, key)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := f.Store.Put(ctx, bucket, key, data, contentType); err != nil {
		return err
	}
	f.mu.Lock()
	f.puts = append(f.puts, key)
	f.mu.Unlock()
	return nil
}

// Puts returns the keys successfully written, in call order.
func (f *FaultStore) Puts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.puts...)
}

// Gets returns the number of Get calls.
func (f *FaultStore) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}
