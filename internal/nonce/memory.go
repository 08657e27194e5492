package nonce

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore keeps state tokens in process memory. Tokens do not survive a
// restart and are not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore whose tokens live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, shop string) (string, error) {
	token, err := Generate()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup()
	m.entries[shop] = memoryEntry{token: token, expiresAt: m.now().Add(m.ttl)}
	return token, nil
}

// RedeemOnce implements Store.
func (m *MemoryStore) RedeemOnce(_ context.Context, shop string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[shop]
	if !ok {
		return "", ErrNotFound
	}
	delete(m.entries, shop)

	if !m.now().Before(entry.expiresAt) {
		return "", ErrNotFound
	}
	return entry.token, nil
}

// cleanup removes expired entries. Must be called with mu held.
func (m *MemoryStore) cleanup() {
	now := m.now()
	for k, v := range m.entries {
		if !now.Before(v.expiresAt) {
			delete(m.entries, k)
		}
	}
}
