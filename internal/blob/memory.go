package blob

import (
	"context"
	"fmt"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps objects in process memory. It backs local development
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string

	// FailWith makes every Upload return this error when set.
	FailWith error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://blob"
	}
	return &MemoryStore{objects: map[string][]byte{}, baseURL: baseURL}
}

func (m *MemoryStore) Upload(_ context.Context, bucket, path string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[bucket+"/"+path] = buf
	return nil
}

func (m *MemoryStore) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", m.baseURL, bucket, path)
}

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[bucket+"/"+path]
	return data, ok
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
