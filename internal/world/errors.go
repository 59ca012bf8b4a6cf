package world

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means nothing is persisted for a coordinate; the chunk is generated instead.
	ErrNotFound = errors.New("chunk not persisted")

	// ErrCorruptChunkData means persisted data exists but fails structural validation.
	ErrCorruptChunkData = errors.New("corrupt chunk data")
)

// CorruptChunkError describes why persisted data for Coord was rejected.
type CorruptChunkError struct {
	Coord  Coord
	Reason string
}

func (e *CorruptChunkError) Error() string {
	return fmt.Sprintf("chunk %s: %s: %s", e.Coord, ErrCorruptChunkData, e.Reason)
}

func (e *CorruptChunkError) Unwrap() error { return ErrCorruptChunkData }

// DuplicateChunkError is returned when a coordinate is inserted twice.
// The streamer never does this; seeing it means a logic bug.
type DuplicateChunkError struct {
	Coord Coord
}

func (e *DuplicateChunkError) Error() string {
	return fmt.Sprintf("chunk %s already resident", e.Coord)
}

// PersistenceWriteError reports a failed save during eviction or flush.
// The in-memory chunk is dropped regardless, so its edits are lost.
type PersistenceWriteError struct {
	Coord Coord
	Err   error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("persist chunk %s: %v", e.Coord, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Err }
