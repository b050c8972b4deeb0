package cache

import (
	"sync"
	"time"
)

// memoryStore is the volatile tier in front of the durable store. It is a
// pure accelerator for the analysis read path: losing it never changes what
// the cache returns, only how fast. Entries are dropped lazily when a read
// finds them expired; there is no background sweep.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload    []byte
	tokenCount int
	expiresAt  time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (m *memoryStore) get(key string) ([]byte, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, 0, false
	}
	if !time.Now().UTC().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, 0, false
	}
	return e.payload, e.tokenCount, true
}

func (m *memoryStore) put(key string, payload []byte, tokenCount int, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{payload: payload, tokenCount: tokenCount, expiresAt: expiresAt}
}

// clear drops all entries and returns how many were removed.
func (m *memoryStore) clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]memoryEntry)
	return n
}
