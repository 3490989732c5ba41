// Package storagetest provides an in-memory storage.Store for tests.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charlesng35/inspectd/internal/storage"
)

// MemoryStore records blobs in memory and can be told to fail uploads.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	puts    int

	// FailPut, when set, is consulted before every upload.
	FailPut func(key string) error
	// FailDelete makes DeleteMany return the error without deleting.
	FailDelete error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, r io.Reader, key, _ string) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}
	m.mu.Lock()
	m.puts++
	fail := m.FailPut
	m.mu.Unlock()

	if fail != nil {
		if err := fail(key); err != nil {
			return storage.Object{}, err
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Object{}, fmt.Errorf("storagetest: read: %w", err)
	}

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return storage.Object{Key: key, URL: "https://media.test/" + key}, nil
}

func (m *MemoryStore) DeleteMany(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	for _, key := range keys {
		delete(m.objects, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

// Keys lists stored keys, optionally filtered by prefix.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Get returns the stored bytes for key.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Deleted lists every key passed to DeleteMany.
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// Puts counts upload attempts, including failed ones.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

var _ storage.Store = (*MemoryStore)(nil)
