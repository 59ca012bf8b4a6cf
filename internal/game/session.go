package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"

	"tilestream/internal/config"
	"tilestream/internal/profiling"
	"tilestream/internal/registry"
	"tilestream/internal/storage"
	"tilestream/internal/world"
)

// Session owns one running world and the observer that streams it.
type Session struct {
	World    *world.World
	Settings *config.RenderSettings
	Registry *registry.Registry
	Tracker  *profiling.Tracker
	Observer *Observer

	backend storage.Backend
	limiter *StepLimiter
	logger  *log.Logger

	Steps int
}

// NewSession wires config → registry → storage → world.
func NewSession(cfg config.Config, logger *log.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	reg := registry.Default()
	if cfg.RegistryDir != "" {
		var err error
		if reg, err = registry.Load(cfg.RegistryDir); err != nil {
			return nil, fmt.Errorf("load tile registry: %w", err)
		}
	}

	genOpts := cfg.GeneratorOptions()
	for _, b := range genOpts.Bands {
		if !reg.Has(b.Tile) {
			return nil, fmt.Errorf("band tile %q is not registered", b.Tile)
		}
	}
	if !reg.Has(genOpts.Default) {
		return nil, fmt.Errorf("default tile %q is not registered", genOpts.Default)
	}
	gen, err := world.NewGenerator(genOpts)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(cfg.StorageOptions(), storage.Codec{Size: cfg.ChunkSize, Tiles: reg})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	tracker := profiling.New()
	streamOpts := cfg.StreamerOptions()
	streamOpts.Logger = logger
	streamOpts.Tracker = tracker

	w, err := world.New(world.Options{
		Generator:   gen,
		Persistence: backend,
		Streamer:    streamOpts,
		Tiles:       reg,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Session{
		World:    w,
		Settings: config.NewRenderSettings(cfg.RenderDistance),
		Registry: reg,
		Tracker:  tracker,
		Observer: &Observer{},
		backend:  backend,
		limiter:  NewStepLimiter(0),
		logger:   logger,
	}, nil
}

// SetStepRate caps Run at rate steps per second; 0 runs unthrottled.
func (s *Session) SetStepRate(rate int) {
	s.limiter.SetRate(rate)
}

// Tick advances the observer and runs one streaming step.
func (s *Session) Tick(ctx context.Context) world.StepReport {
	s.Tracker.Reset()
	pos := s.Observer.Advance()
	report := s.World.Update(ctx, pos, s.Settings.RenderDistance())
	s.Steps++
	return report
}

// Run ticks steps times (forever when steps <= 0) until ctx is done.
// onStep, if set, sees every report.
func (s *Session) Run(ctx context.Context, steps int, onStep func(world.StepReport)) error {
	for i := 0; steps <= 0 || i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		report := s.Tick(ctx)
		if onStep != nil {
			onStep(report)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Position returns the observer's world position.
func (s *Session) Position() mgl64.Vec2 {
	return s.Observer.Position
}

// Close flushes dirty chunks and releases storage.
func (s *Session) Close(ctx context.Context) error {
	s.World.Close()
	var errs []error
	if err := s.World.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("session close", "err", err)
	} else {
		s.logger.Info("session closed", "steps", s.Steps)
	}
	return err
}
