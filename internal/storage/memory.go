package storage

import (
	"context"
	"fmt"
	"sync"

	"tilestream/internal/world"
)

// MemoryStore keeps encoded bodies in a map, so it exercises the same codec
// as the on-disk backends.
type MemoryStore struct {
	mu     sync.RWMutex
	bodies map[world.Coord][]byte
	codec  Codec
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(codec Codec) *MemoryStore {
	return &MemoryStore{
		bodies: make(map[world.Coord][]byte),
		codec:  codec,
	}
}

func (m *MemoryStore) Load(ctx context.Context, coord world.Coord) (world.Grid, error) {
	m.mu.RLock()
	body, ok := m.bodies[coord]
	m.mu.RUnlock()
	if !ok {
		return world.Grid{}, fmt.Errorf("chunk %s: %w", coord, world.ErrNotFound)
	}
	return m.codec.Decode(coord, body)
}

func (m *MemoryStore) Save(ctx context.Context, coord world.Coord, grid world.Grid) error {
	body, err := m.codec.Encode(grid)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.bodies[coord] = body
	m.mu.Unlock()
	return nil
}

// Put stores a raw body without validation.
func (m *MemoryStore) Put(coord world.Coord, body []byte) {
	m.mu.Lock()
	m.bodies[coord] = append([]byte(nil), body...)
	m.mu.Unlock()
}

// Raw returns the stored body for coord.
func (m *MemoryStore) Raw(coord world.Coord) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.bodies[coord]
	return body, ok
}

// Len returns the number of stored chunks.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bodies)
}

func (m *MemoryStore) Close() error { return nil }
