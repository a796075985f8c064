package persist

import (
	"context"
	"sync"
)

// Storage holds at most one Record, last write wins.
type Storage interface {
	// Load returns the stored record. ok is false when nothing was saved.
	Load(ctx context.Context) (r Record, ok bool, err error)
	// Save replaces the stored record.
	Save(ctx context.Context, r Record) error
}

// MemoryStorage is a Storage kept in process memory. It round-trips
// through the JSON encoding so it behaves like durable storage.
type MemoryStorage struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load implements Storage.
func (m *MemoryStorage) Load(ctx context.Context) (Record, bool, error) {
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()

	if data == nil {
		return Record{}, false, nil
	}
	r, err := Decode(data)
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

// Save implements Storage.
func (m *MemoryStorage) Save(ctx context.Context, r Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// SetRaw stores data as-is, e.g. to simulate a corrupt record.
func (m *MemoryStorage) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
}

// Saves returns how many times Save succeeded.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
