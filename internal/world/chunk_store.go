package world

import (
	"sync"
)

// ChunkStore holds the resident chunks keyed by coordinate.
type ChunkStore struct {
	// Map of chunks indexed by their coordinates
	chunks   map[Coord]*Chunk
	mu       sync.RWMutex
	modCount uint64 // Increases on any chunk add/remove
}

// NewChunkStore creates a new chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[Coord]*Chunk),
	}
}

// Get returns the chunk at coord, if resident.
func (cs *ChunkStore) Get(coord Coord) (*Chunk, bool) {
	cs.mu.RLock()
	chunk, ok := cs.chunks[coord]
	cs.mu.RUnlock()
	return chunk, ok
}

// Has checks if a chunk is resident.
func (cs *ChunkStore) Has(coord Coord) bool {
	cs.mu.RLock()
	_, exists := cs.chunks[coord]
	cs.mu.RUnlock()
	return exists
}

// Insert adds a resolved chunk. It fails with *DuplicateChunkError when the
// coordinate is already resident.
func (cs *ChunkStore) Insert(chunk *Chunk) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.chunks[chunk.coord]; ok {
		return &DuplicateChunkError{Coord: chunk.coord}
	}
	cs.chunks[chunk.coord] = chunk
	cs.modCount++
	return nil
}

// Remove takes a chunk out of the store and hands ownership to the caller.
func (cs *ChunkStore) Remove(coord Coord) (*Chunk, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	chunk, ok := cs.chunks[coord]
	if !ok {
		return nil, false
	}
	delete(cs.chunks, coord)
	cs.modCount++
	return chunk, true
}

// ResidentCoords returns a snapshot of the resident key set.
func (cs *ChunkStore) ResidentCoords() map[Coord]struct{} {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[Coord]struct{}, len(cs.chunks))
	for coord := range cs.chunks {
		out[coord] = struct{}{}
	}
	return out
}

// Len returns the number of resident chunks.
func (cs *ChunkStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// ModCount returns the current modification count of the chunk map.
func (cs *ChunkStore) ModCount() uint64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.modCount
}

// Chunks returns read-only views of every resident chunk, in no particular order.
func (cs *ChunkStore) Chunks() []ChunkView {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	views := make([]ChunkView, 0, len(cs.chunks))
	for _, chunk := range cs.chunks {
		views = append(views, ChunkView{c: chunk})
	}
	return views
}

// AppendChunksInWindow appends views of the resident chunks inside w into dst,
// row by row, and returns the resulting slice.
func (cs *ChunkStore) AppendChunksInWindow(w Window, dst []ChunkView) []ChunkView {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	for _, coord := range w.Coords() {
		if chunk, ok := cs.chunks[coord]; ok {
			dst = append(dst, ChunkView{c: chunk})
		}
	}
	return dst
}

// dirtyChunks lists resident chunks with unsaved edits.
func (cs *ChunkStore) dirtyChunks() []*Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	var out []*Chunk
	for _, chunk := range cs.chunks {
		if chunk.IsDirty() {
			out = append(out, chunk)
		}
	}
	return out
}
