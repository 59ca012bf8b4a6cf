package world

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"

	"tilestream/internal/profiling"
)

// StreamerOptions configures a ChunkStreamer.
type StreamerOptions struct {
	// Async moves resolution onto background workers. Step then never blocks
	// on I/O or generation; finished chunks are inserted on a later step.
	Async          bool
	Workers        int
	QueueSize      int
	MaxJobsPerStep int

	Logger  *log.Logger
	Tracker *profiling.Tracker
}

// StepReport describes what one streaming step changed.
type StepReport struct {
	Center    Coord
	Radius    int
	Loaded    []Coord // resolved from persistence
	Generated []Coord // synthesized from the seed
	Evicted   []Coord
	Saved     []Coord // dirty chunks written during eviction
	Pending   int     // resolutions still in flight (async only)
	Errors    []error
	Duration  time.Duration
}

// Changed reports whether the step inserted or evicted anything.
func (r StepReport) Changed() bool {
	return len(r.Loaded)+len(r.Generated)+len(r.Evicted) > 0
}

// Err joins the step's errors, or returns nil.
func (r StepReport) Err() error {
	return errors.Join(r.Errors...)
}

// ChunkStreamer keeps the store's key set equal to the streaming window
// around the observer.
type ChunkStreamer struct {
	store    *ChunkStore
	resolver *Resolver
	persist  Persistence
	size     int

	logger  *log.Logger
	tracker *profiling.Tracker

	async          bool
	jobs           chan job
	results        chan result
	pending        map[Coord]*ticket
	pendingMu      sync.Mutex
	maxPending     int
	maxJobsPerStep int
	nextTicket     uint64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// ticket marks one in-flight resolution. A cancelled ticket stays in the
// pending map until its worker reports back, so a coordinate never has two
// resolutions running at once.
type ticket struct {
	id       uint64
	cancel   context.CancelFunc
	canceled bool
}

type job struct {
	ctx   context.Context
	coord Coord
	id    uint64
}

type result struct {
	coord  Coord
	id     uint64
	chunk  *Chunk
	source Source
	err    error
}

// NewChunkStreamer creates a new chunk streamer. persist may be nil for
// worlds that never save.
func NewChunkStreamer(store *ChunkStore, gen TerrainGenerator, persist Persistence, opts StreamerOptions) *ChunkStreamer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cs := &ChunkStreamer{
		store:    store,
		resolver: NewResolver(persist, gen),
		persist:  persist,
		size:     gen.ChunkSize(),
		logger:   logger.WithPrefix("stream"),
		tracker:  opts.Tracker,
		async:    opts.Async,
		done:     make(chan struct{}),
	}
	cs.ctx, cs.cancel = context.WithCancel(context.Background())

	if cs.async {
		workers := max(opts.Workers, 1)
		queue := max(opts.QueueSize, 1)
		cs.jobs = make(chan job, queue)
		cs.results = make(chan result, queue+workers)
		cs.pending = make(map[Coord]*ticket)
		// Every pending ticket yields exactly one result; capping pending
		// at the result buffer keeps workers from blocking on send.
		cs.maxPending = queue + workers
		cs.maxJobsPerStep = opts.MaxJobsPerStep
		if cs.maxJobsPerStep <= 0 {
			cs.maxJobsPerStep = cs.maxPending
		}
		cs.wg.Add(workers)
		for i := 0; i < workers; i++ {
			go cs.worker()
		}
	}

	return cs
}

// Store returns the resident chunk store.
func (cs *ChunkStreamer) Store() *ChunkStore { return cs.store }

// ChunkSize returns the side length of streamed chunks.
func (cs *ChunkStreamer) ChunkSize() int { return cs.size }

// Close stops the background workers. Step must not be called afterwards.
func (cs *ChunkStreamer) Close() {
	cs.closeOnce.Do(func() {
		cs.closed.Store(true)
		cs.cancel()
		close(cs.done)
		if cs.async {
			close(cs.jobs)
			cs.wg.Wait()
		}
	})
}

func (cs *ChunkStreamer) worker() {
	defer cs.wg.Done()
	for j := range cs.jobs {
		r := result{coord: j.coord, id: j.id}
		if err := j.ctx.Err(); err != nil {
			r.err = err
		} else {
			stop := cs.tracker.Track("world.Resolve")
			r.chunk, r.source, r.err = cs.resolver.Resolve(j.ctx, j.coord)
			stop()
		}
		select {
		case cs.results <- r:
		case <-cs.done:
			return
		}
	}
}

// Step runs one streaming pass for an observer at world position pos with
// view radius radius (negative values are treated as 0).
func (cs *ChunkStreamer) Step(ctx context.Context, pos mgl64.Vec2, radius int) StepReport {
	defer cs.tracker.Track("world.Step")()
	start := time.Now()

	// The window is derived once and is the only input to the diff below.
	w := WindowAround(pos, cs.size, radius)
	report := StepReport{Center: w.Center, Radius: w.Radius}

	if cs.async {
		cs.drainResults(w, &report)
	}

	// Nearest first, so a per-step job cap never starves the observer's own chunk.
	jobsPushed := 0
	for _, coord := range w.RingCoords() {
		if cs.store.Has(coord) {
			continue
		}
		if cs.async {
			if jobsPushed < cs.maxJobsPerStep && cs.request(coord) {
				jobsPushed++
			}
			continue
		}
		cs.resolveInto(ctx, coord, &report)
	}

	cs.evictOutside(ctx, w, &report)

	if cs.async {
		report.Pending = cs.PendingCount()
	}
	sortCoords(report.Loaded)
	sortCoords(report.Generated)
	sortCoords(report.Evicted)
	sortCoords(report.Saved)
	report.Duration = time.Since(start)

	if report.Changed() {
		cs.logger.Debug("step",
			"center", report.Center,
			"radius", report.Radius,
			"loaded", len(report.Loaded),
			"generated", len(report.Generated),
			"evicted", len(report.Evicted),
			"pending", report.Pending,
			"took", report.Duration,
		)
	}
	return report
}

func (cs *ChunkStreamer) resolveInto(ctx context.Context, coord Coord, report *StepReport) {
	defer cs.tracker.Track("world.Resolve")()
	chunk, source, err := cs.resolver.Resolve(ctx, coord)
	cs.install(chunk, source, err, report)
}

func (cs *ChunkStreamer) install(chunk *Chunk, source Source, err error, report *StepReport) {
	coord := chunk.Coord()
	if err != nil {
		report.Errors = append(report.Errors, err)
		cs.logger.Warn("chunk data unusable, generated instead", "coord", coord, "err", err)
	}
	if ierr := cs.store.Insert(chunk); ierr != nil {
		panic(ierr)
	}
	if source == SourceLoaded {
		report.Loaded = append(report.Loaded, coord)
	} else {
		report.Generated = append(report.Generated, coord)
	}
}

func (cs *ChunkStreamer) evictOutside(ctx context.Context, w Window, report *StepReport) {
	defer cs.tracker.Track("world.Evict")()
	for coord := range cs.store.ResidentCoords() {
		if w.Contains(coord) {
			continue
		}
		chunk, ok := cs.store.Remove(coord)
		if !ok {
			continue
		}
		if chunk.IsDirty() {
			if err := cs.save(ctx, chunk); err != nil {
				report.Errors = append(report.Errors, err)
				cs.logger.Warn("evicted chunk without saving, edits lost", "coord", coord, "err", err)
			} else {
				report.Saved = append(report.Saved, coord)
			}
		}
		report.Evicted = append(report.Evicted, coord)
	}

	if cs.async {
		cs.pendingMu.Lock()
		for coord, t := range cs.pending {
			if !t.canceled && !w.Contains(coord) {
				t.canceled = true
				t.cancel()
			}
		}
		cs.pendingMu.Unlock()
	}
}

func (cs *ChunkStreamer) save(ctx context.Context, chunk *Chunk) error {
	if cs.persist == nil {
		return &PersistenceWriteError{Coord: chunk.Coord(), Err: errors.New("no persistence configured")}
	}
	if err := cs.persist.Save(ctx, chunk.Coord(), chunk.tiles); err != nil {
		return &PersistenceWriteError{Coord: chunk.Coord(), Err: err}
	}
	chunk.SetClean()
	return nil
}

// Flush saves every dirty resident chunk and marks it clean.
func (cs *ChunkStreamer) Flush(ctx context.Context) error {
	var errs []error
	for _, chunk := range cs.store.dirtyChunks() {
		if err := cs.save(ctx, chunk); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingCount returns the number of resolutions in flight.
func (cs *ChunkStreamer) PendingCount() int {
	if !cs.async {
		return 0
	}
	cs.pendingMu.Lock()
	defer cs.pendingMu.Unlock()
	return len(cs.pending)
}

// IsPending reports whether coord has a live (not cancelled) resolution in flight.
func (cs *ChunkStreamer) IsPending(coord Coord) bool {
	if !cs.async {
		return false
	}
	cs.pendingMu.Lock()
	defer cs.pendingMu.Unlock()
	t, ok := cs.pending[coord]
	return ok && !t.canceled
}

// request respects the pending cap and returns true if a job was enqueued.
func (cs *ChunkStreamer) request(coord Coord) bool {
	if cs.closed.Load() {
		return false
	}

	cs.pendingMu.Lock()
	if _, ok := cs.pending[coord]; ok {
		// Live or cancelled, one resolution per coordinate at a time.
		cs.pendingMu.Unlock()
		return false
	}
	if len(cs.pending) >= cs.maxPending {
		cs.pendingMu.Unlock()
		return false
	}
	cs.nextTicket++
	ctx, cancel := context.WithCancel(cs.ctx)
	t := &ticket{id: cs.nextTicket, cancel: cancel}
	cs.pending[coord] = t
	cs.pendingMu.Unlock()

	select {
	case cs.jobs <- job{ctx: ctx, coord: coord, id: t.id}:
		return true
	default:
		// queue full: rollback
		cs.pendingMu.Lock()
		delete(cs.pending, coord)
		cs.pendingMu.Unlock()
		cancel()
		return false
	}
}

// drainResults installs finished resolutions that are still wanted.
func (cs *ChunkStreamer) drainResults(w Window, report *StepReport) {
	for {
		select {
		case r := <-cs.results:
			cs.pendingMu.Lock()
			t, ok := cs.pending[r.coord]
			current := ok && t.id == r.id
			if current {
				delete(cs.pending, r.coord)
				t.cancel()
			}
			cs.pendingMu.Unlock()

			if !current || t.canceled || r.chunk == nil || !w.Contains(r.coord) || cs.store.Has(r.coord) {
				continue
			}
			cs.install(r.chunk, r.source, r.err, report)
		default:
			return
		}
	}
}

func sortCoords(cs []Coord) {
	slices.SortFunc(cs, func(a, b Coord) int {
		if a.Y != b.Y {
			return a.Y - b.Y
		}
		return a.X - b.X
	})
}
