package storage

import (
	"context"
	"sync"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
	carterrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/errors"
)

// Memory implements Storage using an in-memory map. Records are kept encoded so callers never share slices.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ Storage = (*Memory)(nil)

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, name string) (cart.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[name]
	if !ok {
		return cart.Snapshot{}, carterrors.ErrRecordNotFound
	}
	return decode(data)
}

func (m *Memory) Save(_ context.Context, name string, snapshot cart.Snapshot) error {
	data, err := encode(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = data
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, name)
	return nil
}
