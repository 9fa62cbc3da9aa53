package history

import (
	"context"
	"sort"
	"sync"
)

// Store persists a device's history between sessions.
type Store interface {
	Load(ctx context.Context, deviceID string) ([]Entry, error)
	Save(ctx context.Context, deviceID string, entries []Entry) error
	Devices(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore keeps history for the process lifetime only.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string][]Entry)}
}

func (m *MemoryStore) Load(_ context.Context, deviceID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.devices[deviceID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, deviceID string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	m.devices[deviceID] = cp
	return nil
}

func (m *MemoryStore) Devices(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }
