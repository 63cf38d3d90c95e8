package entity

import (
	"context"
	"sync"
)

var _ Backend = (*MemBackend)(nil)

// MemBackend is a thread-safe, in-memory [Backend]. Nothing survives the
// process; it backs dry runs and tests. The zero value is ready to use.
type MemBackend struct {
	mu       sync.RWMutex
	entities map[string]Entity
	saves    int
}

// NewMemBackend returns a MemBackend seeded with the given entities.
func NewMemBackend(seed ...Entity) *MemBackend {
	b := &MemBackend{entities: make(map[string]Entity, len(seed))}
	for _, e := range seed {
		b.entities[e.ID] = e.Clone()
	}
	return b
}

// Load implements [Backend.Load].
func (b *MemBackend) Load(_ context.Context) ([]Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entity, 0, len(b.entities))
	for _, e := range b.entities {
		out = append(out, e.Clone())
	}
	return out, nil
}

// Save implements [Backend.Save].
func (b *MemBackend) Save(_ context.Context, e Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entities == nil {
		b.entities = make(map[string]Entity)
	}
	b.entities[e.ID] = e.Clone()
	b.saves++
	return nil
}

// Get returns the stored entity with the given id.
func (b *MemBackend) Get(id string) (Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entities[id]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return e.Clone(), nil
}

// Saves returns how many times Save has been called.
func (b *MemBackend) Saves() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saves
}
