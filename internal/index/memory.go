package index

import (
	"context"
	"sync"
)

// StoredRecord is a record held by MemoryIndex.
type StoredRecord struct {
	ID    string
	Class string
	Record
}

// MemoryIndex keeps records in process. Fail, when set, is consulted before
// each insert and its error is returned instead.
type MemoryIndex struct {
	Fail func(rec Record) error

	mu      sync.Mutex
	records []StoredRecord
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) CreateRecord(_ context.Context, className string, rec Record) (string, error) {
	if m.Fail != nil {
		if err := m.Fail(rec); err != nil {
			return "", err
		}
	}
	id, err := NewRecordID()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, StoredRecord{ID: id, Class: className, Record: rec})
	return id, nil
}

// Records returns a copy of every stored record in insertion order.
func (m *MemoryIndex) Records() []StoredRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoredRecord(nil), m.records...)
}

// BySource returns the records whose source equals source.
func (m *MemoryIndex) BySource(source string) []StoredRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StoredRecord
	for _, r := range m.records {
		if r.Source == source {
			out = append(out, r)
		}
	}
	return out
}
