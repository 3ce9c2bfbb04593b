package store

import (
	"context"
	"sync"
)

// MemoryStore keeps everything in process memory. Used for ephemeral runs
// and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]string
	doc      []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]string)}
}

func (m *MemoryStore) GetSetting(ctx context.Context, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok
}

func (m *MemoryStore) SaveSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) GetClaudeSettings(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.doc...), nil
}

func (m *MemoryStore) SaveClaudeSettings(ctx context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = append([]byte(nil), doc...)
	return nil
}
