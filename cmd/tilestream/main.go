package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/xlab/closer"

	"tilestream/internal/config"
	"tilestream/internal/game"
	"tilestream/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to world YAML config (defaults are used when empty)")
		steps      = flag.Int("steps", 64, "number of steps to run; 0 runs until interrupted")
		rate       = flag.Int("rate", 30, "steps per second; 0 is unthrottled")
		dx         = flag.Float64("dx", 4, "observer velocity along x, world units per step")
		dy         = flag.Float64("dy", 0, "observer velocity along y, world units per step")
		radius     = flag.Int("radius", -1, "override render distance in chunks")
		ascii      = flag.Bool("ascii", true, "print the resident area after the run")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "tilestream",
	})

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatal("load config", "err", err)
		}
	}
	logger.SetLevel(cfg.Level())
	if *radius >= 0 {
		cfg.RenderDistance = min(*radius, config.MaxRenderDistance)
	}

	session, err := game.NewSession(cfg, logger)
	if err != nil {
		logger.Fatal("start session", "err", err)
	}
	session.Observer.Velocity = mgl64.Vec2{*dx, *dy}
	session.SetStepRate(*rate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	closer.Bind(func() {
		cancel()
		<-done
		flushCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = session.Close(flushCtx)
	})

	go func() {
		defer close(done)
		err := session.Run(ctx, *steps, func(r world.StepReport) {
			for _, e := range r.Errors {
				logger.Warn("step error", "center", r.Center, "err", e)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("run", "err", err)
		}
		if *ascii {
			fmt.Print(RenderASCII(session.World, session.Registry, session.Position()))
		}
		logger.Info("done",
			"steps", session.Steps,
			"resident", session.World.Store().Len(),
			"profile", session.Tracker.TopN(3),
		)
		if ctx.Err() == nil {
			go closer.Close()
		}
	}()

	closer.Hold()
}
