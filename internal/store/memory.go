package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]Record
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]Record), now: time.Now}
}

func (m *Memory) Create(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll := m.records[rec.Collection]
	if coll == nil {
		coll = make(map[string]Record)
		m.records[rec.Collection] = coll
	}
	if _, exists := coll[rec.ID]; exists {
		return Record{}, fmt.Errorf("record %s/%s already exists", rec.Collection, rec.ID)
	}
	now := m.now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.Data = copyData(rec.Data)
	coll[rec.ID] = rec
	return rec, nil
}

func (m *Memory) Update(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.records[rec.Collection][rec.ID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, rec.Collection, rec.ID)
	}
	rec.CreatedAt = old.CreatedAt
	rec.UpdatedAt = m.now()
	rec.Data = copyData(rec.Data)
	m.records[rec.Collection][rec.ID] = rec
	return rec, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[collection][id]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	delete(m.records[collection], id)
	return nil
}

func (m *Memory) GetOne(_ context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[collection][id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	rec.Data = copyData(rec.Data)
	return rec, nil
}

func (m *Memory) GetFullList(_ context.Context, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records[collection]))
	for _, rec := range m.records[collection] {
		rec.Data = copyData(rec.Data)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func copyData(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
