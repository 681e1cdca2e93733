package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"pagobot/model"
	"path/filepath"
	"sync"
)

// FileStore keeps the whole registry in one JSON document mapping key to
// record. Every mutation reads the document, changes one key and rewrites
// the file. The mutex serialises that cycle inside this process; separate
// processes writing the same file still race, last writer wins.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (map[string]model.ClientRecord, error) {
	records := make(map[string]model.ClientRecord)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to read registry file %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", f.path, err)
	}
	for k, rec := range records {
		rec.Normalize()
		records[k] = rec
	}
	return records, nil
}

// save writes to a temp file and renames it over the document so a crash
// never leaves a half-written registry.
func (f *FileStore) save(records map[string]model.ClientRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

func (f *FileStore) Get(key string) (*model.ClientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *FileStore) Upsert(key string, rec model.ClientRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return err
	}
	rec = rec.Clone()
	rec.Normalize()
	records[key] = rec
	return f.save(records)
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := records[key]; !ok {
		return ErrNotFound
	}
	delete(records, key)
	return f.save(records)
}

func (f *FileStore) Find(pred func(model.Client) bool) (*model.Client, error) {
	clients, err := f.List()
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

func (f *FileStore) List() ([]model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records, err := f.load()
	if err != nil {
		return nil, err
	}
	return sortedClients(records), nil
}
