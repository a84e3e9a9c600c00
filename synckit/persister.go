package synckit

import (
	"context"
	"sync"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
)

// Persister is the key-value layer stores write their snapshots to.
// Load returns errors.ErrNotFound when the key has never been saved.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
}

// MemoryPersister keeps snapshots in memory. Useful for tests and for
// running without a storage backend.
type MemoryPersister struct {
	mu     sync.RWMutex
	data   map[string][]byte
	saves  int
	closed bool
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[string][]byte)}
}

func (m *MemoryPersister) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errors.E(errors.OpLoad, errors.Component("synckit/memory"), errors.KindClosed, "persister is closed")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryPersister) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.E(errors.OpPersist, errors.Component("synckit/memory"), errors.KindClosed, "persister is closed")
	}
	m.data[key] = append([]byte(nil), value...)
	m.saves++
	return nil
}

func (m *MemoryPersister) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryPersister) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
