package checkpoint

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in a map (not persistent).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Init(context.Context) error { return nil }

func (m *MemoryStore) Save(_ context.Context, rec Record) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Name] = payload
	return nil
}

func (m *MemoryStore) Load(_ context.Context, name string) (Record, bool, error) {
	m.mu.RLock()
	payload, ok := m.records[name]
	m.mu.RUnlock()
	if !ok {
		return Record{}, false, nil
	}
	rec, err := decodeRecord(name, bytes.Clone(payload))
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (m *MemoryStore) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, name)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
