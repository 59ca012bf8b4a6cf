package world

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPersistence keeps grids in a map and can be told to fail.
type memPersistence struct {
	mu      sync.Mutex
	grids   map[Coord]Grid
	loadErr map[Coord]error
	saveErr error
	saves   []Coord
}

func newMemPersistence() *memPersistence {
	return &memPersistence{
		grids:   make(map[Coord]Grid),
		loadErr: make(map[Coord]error),
	}
}

func (m *memPersistence) Load(_ context.Context, c Coord) (Grid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.loadErr[c]; ok {
		return Grid{}, err
	}
	g, ok := m.grids[c]
	if !ok {
		return Grid{}, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *memPersistence) Save(_ context.Context, c Coord, g Grid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.grids[c] = g.Clone()
	m.saves = append(m.saves, c)
	return nil
}

func (m *memPersistence) get(c Coord) (Grid, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grids[c]
	return g, ok
}

// countingGenerator records how many chunks were synthesized.
type countingGenerator struct {
	TerrainGenerator
	calls atomic.Int64
}

func (g *countingGenerator) Generate(c Coord) Grid {
	g.calls.Add(1)
	return g.TerrainGenerator.Generate(c)
}

// gatedGenerator blocks every Generate call until the gate is opened.
type gatedGenerator struct {
	TerrainGenerator
	gate chan struct{}
	once sync.Once
}

func (g *gatedGenerator) Generate(c Coord) Grid {
	<-g.gate
	return g.TerrainGenerator.Generate(c)
}

func (g *gatedGenerator) open() { g.once.Do(func() { close(g.gate) }) }

func quietOptions() StreamerOptions {
	return StreamerOptions{Logger: log.New(io.Discard)}
}

func newTestStreamer(t *testing.T, gen TerrainGenerator, persist Persistence, opts StreamerOptions) *ChunkStreamer {
	t.Helper()
	cs := NewChunkStreamer(NewChunkStore(), gen, persist, opts)
	t.Cleanup(cs.Close)
	return cs
}

// chunkCenter returns the world position of the middle of chunk c.
func chunkCenter(c Coord, size int) mgl64.Vec2 {
	return mgl64.Vec2{float64(c.X*size + size/2), float64(c.Y*size + size/2)}
}

func requireWindow(t *testing.T, store *ChunkStore, w Window) {
	t.Helper()
	resident := store.ResidentCoords()
	require.Len(t, resident, w.Len())
	for _, c := range w.Coords() {
		_, ok := resident[c]
		require.True(t, ok, "missing %v", c)
	}
}

func TestStepSingleChunkMatchesGenerator(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	cs := newTestStreamer(t, gen, nil, quietOptions())

	report := cs.Step(context.Background(), mgl64.Vec2{0, 0}, 0)

	require.NoError(t, report.Err())
	assert.Equal(t, []Coord{{0, 0}}, report.Generated)
	assert.Empty(t, report.Evicted)
	require.Equal(t, 1, cs.Store().Len())

	chunk, ok := cs.Store().Get(Coord{0, 0})
	require.True(t, ok)
	assert.True(t, chunk.Tiles().Equal(gen.Generate(Coord{0, 0})))
	assert.False(t, chunk.IsDirty())
}

func TestStepKeepsWindowInvariant(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(3))
	cs := newTestStreamer(t, gen, newMemPersistence(), quietOptions())
	ctx := context.Background()

	path := []struct {
		pos    mgl64.Vec2
		radius int
	}{
		{mgl64.Vec2{0, 0}, 2},
		{mgl64.Vec2{17, 3}, 2},
		{mgl64.Vec2{-40, 90}, 1},
		{mgl64.Vec2{-40.5, 90}, 3},
		{mgl64.Vec2{1000, -1000}, 0},
		{mgl64.Vec2{1000, -1000}, -5},
	}
	for _, p := range path {
		cs.Step(ctx, p.pos, p.radius)
		requireWindow(t, cs.Store(), WindowAround(p.pos, 16, p.radius))
	}
}

func TestStepIdempotent(t *testing.T) {
	gen := &countingGenerator{TerrainGenerator: mustGenerator(t, DefaultGeneratorOptions(1))}
	cs := newTestStreamer(t, gen, nil, quietOptions())
	ctx := context.Background()
	pos := mgl64.Vec2{5, 5}

	first := cs.Step(ctx, pos, 1)
	require.Len(t, first.Generated, 9)
	mods := cs.Store().ModCount()
	calls := gen.calls.Load()

	second := cs.Step(ctx, pos, 1)
	assert.False(t, second.Changed())
	assert.Equal(t, mods, cs.Store().ModCount())
	assert.Equal(t, calls, gen.calls.Load(), "no resolution on an unchanged window")
}

func TestStepMoveAcrossBoundary(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	cs := newTestStreamer(t, gen, nil, quietOptions())
	ctx := context.Background()

	cs.Step(ctx, chunkCenter(Coord{0, 0}, 16), 1)
	kept := make(map[Coord]*Chunk)
	for _, c := range []Coord{{0, -1}, {0, 0}, {0, 1}, {1, -1}, {1, 0}, {1, 1}} {
		chunk, ok := cs.Store().Get(c)
		require.True(t, ok)
		kept[c] = chunk
	}

	report := cs.Step(ctx, chunkCenter(Coord{1, 0}, 16), 1)

	assert.Equal(t, []Coord{{-1, -1}, {-1, 0}, {-1, 1}}, report.Evicted)
	assert.Equal(t, []Coord{{2, -1}, {2, 0}, {2, 1}}, report.Generated)
	for c, before := range kept {
		after, ok := cs.Store().Get(c)
		require.True(t, ok)
		assert.Same(t, before, after, "chunk %v must survive the move untouched", c)
	}
	requireWindow(t, cs.Store(), Window{Center: Coord{1, 0}, Radius: 1})
}

func TestStepRadiusResize(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	cs := newTestStreamer(t, gen, nil, quietOptions())
	ctx := context.Background()

	grow := cs.Step(ctx, mgl64.Vec2{}, 2)
	assert.Len(t, grow.Generated, 25)

	shrink := cs.Step(ctx, mgl64.Vec2{}, 0)
	assert.Len(t, shrink.Evicted, 24)
	assert.Empty(t, shrink.Generated)
	requireWindow(t, cs.Store(), Window{Radius: 0})
}

func TestEvictDirtyChunkPersists(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	cs := newTestStreamer(t, gen, persist, quietOptions())
	ctx := context.Background()

	cs.Step(ctx, mgl64.Vec2{}, 0)
	chunk, _ := cs.Store().Get(Coord{0, 0})
	edit := TileWater
	if chunk.Tile(3, 4) == TileWater {
		edit = TileSand
	}
	require.True(t, chunk.SetTile(3, 4, edit))
	require.True(t, chunk.IsDirty())

	away := cs.Step(ctx, chunkCenter(Coord{10, 10}, 16), 0)
	require.NoError(t, away.Err())
	assert.Equal(t, []Coord{{0, 0}}, away.Saved)
	assert.Equal(t, []Coord{{0, 0}}, away.Evicted)

	saved, ok := persist.get(Coord{0, 0})
	require.True(t, ok)
	assert.Equal(t, edit, saved.At(3, 4))

	back := cs.Step(ctx, mgl64.Vec2{}, 0)
	assert.Equal(t, []Coord{{0, 0}}, back.Loaded)
	reloaded, _ := cs.Store().Get(Coord{0, 0})
	assert.Equal(t, edit, reloaded.Tile(3, 4))
	assert.False(t, reloaded.IsDirty())
}

func TestEvictCleanChunkSkipsSave(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	cs := newTestStreamer(t, gen, persist, quietOptions())
	ctx := context.Background()

	cs.Step(ctx, mgl64.Vec2{}, 1)
	report := cs.Step(ctx, chunkCenter(Coord{50, 0}, 16), 1)

	assert.Len(t, report.Evicted, 9)
	assert.Empty(t, report.Saved)
	assert.Empty(t, persist.saves)
}

func TestEvictWriteFailureStillEvicts(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	persist.saveErr = errors.New("disk full")
	cs := newTestStreamer(t, gen, persist, quietOptions())
	ctx := context.Background()

	cs.Step(ctx, mgl64.Vec2{}, 0)
	chunk, _ := cs.Store().Get(Coord{0, 0})
	chunk.SetTile(0, 0, TileWater)
	chunk.SetTile(0, 0, TileSand)
	require.True(t, chunk.IsDirty())

	report := cs.Step(ctx, chunkCenter(Coord{3, 0}, 16), 0)

	require.Len(t, report.Errors, 1)
	var werr *PersistenceWriteError
	require.ErrorAs(t, report.Errors[0], &werr)
	assert.Equal(t, Coord{0, 0}, werr.Coord)
	assert.Equal(t, []Coord{{0, 0}}, report.Evicted)
	assert.Empty(t, report.Saved)
	assert.False(t, cs.Store().Has(Coord{0, 0}))
	_, saved := persist.get(Coord{0, 0})
	assert.False(t, saved)
}

func TestEvictDirtyWithoutPersistence(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	cs := newTestStreamer(t, gen, nil, quietOptions())
	ctx := context.Background()

	cs.Step(ctx, mgl64.Vec2{}, 0)
	chunk, _ := cs.Store().Get(Coord{0, 0})
	chunk.SetTile(1, 1, TileWater)
	chunk.SetTile(1, 1, TileSand)

	report := cs.Step(ctx, chunkCenter(Coord{-4, 0}, 16), 0)
	var werr *PersistenceWriteError
	require.ErrorAs(t, report.Err(), &werr)
	assert.False(t, cs.Store().Has(Coord{0, 0}))
}

func TestCorruptChunkFallsBackToGeneration(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	bad := Coord{2, 3}
	persist.loadErr[bad] = &CorruptChunkError{Coord: bad, Reason: "row 4 has 15 tokens"}
	cs := newTestStreamer(t, gen, persist, quietOptions())

	report := cs.Step(context.Background(), chunkCenter(bad, 16), 0)

	require.Len(t, report.Errors, 1)
	assert.ErrorIs(t, report.Errors[0], ErrCorruptChunkData)
	assert.Equal(t, []Coord{bad}, report.Generated)
	assert.Empty(t, report.Loaded)

	chunk, ok := cs.Store().Get(bad)
	require.True(t, ok)
	assert.True(t, chunk.Tiles().Equal(gen.Generate(bad)))
	assert.False(t, chunk.IsDirty(), "the corrupt record is only replaced once the chunk is edited")
	_, overwritten := persist.get(bad)
	assert.False(t, overwritten)
}

func TestResolveRejectsWrongSizeGrid(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	persist.grids[Coord{0, 0}] = FilledGrid(8, TileSand)

	chunk, source, err := NewResolver(persist, gen).Resolve(context.Background(), Coord{0, 0})

	assert.ErrorIs(t, err, ErrCorruptChunkData)
	assert.Equal(t, SourceGenerated, source)
	assert.Equal(t, 16, chunk.Size())
}

func TestResolveIOErrorGenerates(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	ioErr := errors.New("permission denied")
	persist.loadErr[Coord{1, 1}] = ioErr

	chunk, source, err := NewResolver(persist, gen).Resolve(context.Background(), Coord{1, 1})

	assert.ErrorIs(t, err, ioErr)
	assert.NotErrorIs(t, err, ErrCorruptChunkData)
	assert.Equal(t, SourceGenerated, source)
	assert.True(t, chunk.Tiles().Equal(gen.Generate(Coord{1, 1})))
}

func TestResolveLoadsPersisted(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	persist.grids[Coord{-1, 0}] = FilledGrid(16, TileWater)

	chunk, source, err := NewResolver(persist, gen).Resolve(context.Background(), Coord{-1, 0})

	require.NoError(t, err)
	assert.Equal(t, SourceLoaded, source)
	assert.Equal(t, TileWater, chunk.Tile(15, 15))
}

func TestFlushSavesDirtyChunks(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(1))
	persist := newMemPersistence()
	cs := newTestStreamer(t, gen, persist, quietOptions())
	ctx := context.Background()

	cs.Step(ctx, mgl64.Vec2{}, 1)
	chunk, _ := cs.Store().Get(Coord{1, 1})
	chunk.SetTile(2, 2, TileWater)
	chunk.SetTile(2, 2, TileSand)

	require.NoError(t, cs.Flush(ctx))
	assert.Equal(t, []Coord{{1, 1}}, persist.saves)
	assert.False(t, chunk.IsDirty())
	assert.True(t, cs.Store().Has(Coord{1, 1}), "flush keeps chunks resident")

	require.NoError(t, cs.Flush(ctx))
	assert.Len(t, persist.saves, 1)
}

func asyncOptions(workers, queue int) StreamerOptions {
	opts := quietOptions()
	opts.Async = true
	opts.Workers = workers
	opts.QueueSize = queue
	return opts
}

// stepUntil steps at pos until cond holds or the deadline passes.
func stepUntil(t *testing.T, cs *ChunkStreamer, pos mgl64.Vec2, radius int, cond func(StepReport) bool) StepReport {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		r := cs.Step(context.Background(), pos, radius)
		if cond(r) {
			return r
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached; resident=%d pending=%d", cs.Store().Len(), cs.PendingCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAsyncEventuallyMatchesWindow(t *testing.T) {
	gen := mustGenerator(t, DefaultGeneratorOptions(9))
	cs := newTestStreamer(t, gen, newMemPersistence(), asyncOptions(2, 4))
	pos := mgl64.Vec2{-7, 22}

	first := cs.Step(context.Background(), pos, 1)
	assert.Empty(t, first.Generated, "async step must not resolve inline")
	assert.Positive(t, first.Pending)

	stepUntil(t, cs, pos, 1, func(r StepReport) bool {
		return cs.Store().Len() == 9 && r.Pending == 0
	})
	w := WindowAround(pos, 16, 1)
	requireWindow(t, cs.Store(), w)
	for _, c := range w.Coords() {
		chunk, _ := cs.Store().Get(c)
		assert.True(t, chunk.Tiles().Equal(gen.Generate(c)), "chunk %v", c)
	}
}

func TestAsyncMaxJobsPerStep(t *testing.T) {
	gen := &gatedGenerator{TerrainGenerator: mustGenerator(t, DefaultGeneratorOptions(1)), gate: make(chan struct{})}
	opts := asyncOptions(1, 16)
	opts.MaxJobsPerStep = 3
	cs := newTestStreamer(t, gen, nil, opts)
	t.Cleanup(gen.open)

	report := cs.Step(context.Background(), mgl64.Vec2{}, 2)
	assert.Equal(t, 3, report.Pending)

	report = cs.Step(context.Background(), mgl64.Vec2{}, 2)
	assert.Equal(t, 6, report.Pending)
}

func TestAsyncCancelOnEvict(t *testing.T) {
	gen := &gatedGenerator{TerrainGenerator: mustGenerator(t, DefaultGeneratorOptions(1)), gate: make(chan struct{})}
	cs := newTestStreamer(t, gen, nil, asyncOptions(1, 4))
	// Registered after Close, so it runs first and unblocks the worker.
	t.Cleanup(gen.open)

	origin := Coord{0, 0}
	far := Coord{100, 0}

	r := cs.Step(context.Background(), chunkCenter(origin, 16), 0)
	require.Equal(t, 1, r.Pending)
	require.True(t, cs.IsPending(origin))

	r = cs.Step(context.Background(), chunkCenter(far, 16), 0)
	assert.False(t, cs.IsPending(origin), "leaving the window cancels the request")
	assert.True(t, cs.IsPending(far))
	assert.Equal(t, 2, r.Pending, "cancelled ticket stays until its worker reports")

	gen.open()
	stepUntil(t, cs, chunkCenter(far, 16), 0, func(StepReport) bool {
		return cs.Store().Has(far)
	})
	assert.False(t, cs.Store().Has(origin))
	assert.Equal(t, 1, cs.Store().Len())
	assert.Equal(t, 0, cs.PendingCount())
}

func TestAsyncNoDuplicateRequests(t *testing.T) {
	gen := &gatedGenerator{TerrainGenerator: mustGenerator(t, DefaultGeneratorOptions(1)), gate: make(chan struct{})}
	cs := newTestStreamer(t, gen, nil, asyncOptions(1, 4))
	t.Cleanup(gen.open)

	for i := 0; i < 5; i++ {
		r := cs.Step(context.Background(), mgl64.Vec2{}, 0)
		require.Equal(t, 1, r.Pending)
	}

	// Back inside the window while the cancelled ticket is still out: the
	// coordinate is not requested a second time.
	cs.Step(context.Background(), chunkCenter(Coord{9, 9}, 16), 0)
	r := cs.Step(context.Background(), mgl64.Vec2{}, 0)
	assert.False(t, cs.IsPending(Coord{0, 0}))
	assert.Equal(t, 2, r.Pending)

	gen.open()
	stepUntil(t, cs, mgl64.Vec2{}, 0, func(StepReport) bool {
		return cs.Store().Has(Coord{0, 0})
	})
	requireWindow(t, cs.Store(), Window{Radius: 0})
}

func TestAsyncRequestsCentreFirst(t *testing.T) {
	gen := &gatedGenerator{TerrainGenerator: mustGenerator(t, DefaultGeneratorOptions(1)), gate: make(chan struct{})}
	opts := asyncOptions(1, 16)
	opts.MaxJobsPerStep = 1
	cs := newTestStreamer(t, gen, nil, opts)
	t.Cleanup(gen.open)

	pos := chunkCenter(Coord{4, 4}, 16)
	r := cs.Step(context.Background(), pos, 3)
	require.Equal(t, 1, r.Pending)
	assert.True(t, cs.IsPending(Coord{4, 4}), "observer's chunk is queued before the corners")

	cs.Step(context.Background(), pos, 3)
	ring1 := 0
	for _, c := range (Window{Center: Coord{4, 4}, Radius: 1}).Coords() {
		if c != (Coord{4, 4}) && cs.IsPending(c) {
			ring1++
		}
	}
	assert.Equal(t, 1, ring1, "second request comes from the first ring")
}
