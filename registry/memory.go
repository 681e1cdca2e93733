package registry

import (
	"pagobot/model"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.ClientRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.ClientRecord)}
}

func (m *MemoryStore) Get(key string) (*model.ClientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (m *MemoryStore) Upsert(key string, rec model.ClientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec.Clone()
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return ErrNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *MemoryStore) Find(pred func(model.Client) bool) (*model.Client, error) {
	clients, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := range clients {
		if pred(clients[i]) {
			return &clients[i], nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) List() ([]model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedClients(m.records), nil
}

func sortedClients(records map[string]model.ClientRecord) []model.Client {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]model.Client, 0, len(keys))
	for _, k := range keys {
		out = append(out, model.Client{Key: k, ClientRecord: records[k].Clone()})
	}
	return out
}
