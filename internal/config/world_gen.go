package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"tilestream/internal/storage"
	"tilestream/internal/world"
)

// Config is the world configuration. Generation fields are fixed for a
// world's lifetime; only RenderDistance is meant to change while running.
type Config struct {
	Seed           int64           `yaml:"seed"`
	ChunkSize      int             `yaml:"chunk_size"`
	RenderDistance int             `yaml:"render_distance"`
	Noise          NoiseConfig     `yaml:"noise"`
	Bands          []BandConfig    `yaml:"bands"`
	DefaultTile    string          `yaml:"default_tile"`
	Storage        StorageConfig   `yaml:"storage"`
	Streaming      StreamingConfig `yaml:"streaming"`
	RegistryDir    string          `yaml:"registry_dir"` // empty uses the built-in tiles
	LogLevel       string          `yaml:"log_level"`
}

type NoiseConfig struct {
	Backend     string  `yaml:"backend"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Scale       float64 `yaml:"scale"`
}

type BandConfig struct {
	Tile  string  `yaml:"tile"`
	Below float64 `yaml:"below"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	Ext        string `yaml:"ext"`
	Compress   bool   `yaml:"compress"`
	SQLitePath string `yaml:"sqlite_path"`
}

type StreamingConfig struct {
	Async          bool `yaml:"async"`
	Workers        int  `yaml:"workers"`
	QueueSize      int  `yaml:"queue_size"`
	MaxJobsPerStep int  `yaml:"max_jobs_per_step"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	gen := world.DefaultGeneratorOptions(1)
	bands := make([]BandConfig, 0, len(gen.Bands))
	for _, b := range gen.Bands {
		bands = append(bands, BandConfig{Tile: string(b.Tile), Below: b.Below})
	}
	return Config{
		Seed:           gen.Seed,
		ChunkSize:      gen.ChunkSize,
		RenderDistance: 2,
		Noise: NoiseConfig{
			Backend:     string(gen.Backend),
			Octaves:     gen.Octaves,
			Persistence: gen.Persistence,
			Lacunarity:  gen.Lacunarity,
			Scale:       gen.Scale,
		},
		Bands:       bands,
		DefaultTile: string(gen.Default),
		Storage: StorageConfig{
			Backend: storage.BackendFile,
			Dir:     "world",
		},
		Streaming: StreamingConfig{
			Workers:        4,
			QueueSize:      256,
			MaxJobsPerStep: 64,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.GeneratorOptions().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch world.NoiseBackend(c.Noise.Backend) {
	case world.NoiseValue, world.NoiseSimplex, world.NoisePerlin:
	default:
		errs = append(errs, fmt.Errorf("unknown noise backend %q", c.Noise.Backend))
	}
	if c.RenderDistance < MinRenderDistance || c.RenderDistance > MaxRenderDistance {
		errs = append(errs, fmt.Errorf("render_distance %d outside [%d, %d]", c.RenderDistance, MinRenderDistance, MaxRenderDistance))
	}
	switch c.Storage.Backend {
	case storage.BackendFile, storage.BackendSQLite:
		if c.Storage.Dir == "" && c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.dir is required"))
		}
	case storage.BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Streaming.Async && c.Streaming.Workers < 1 {
		errs = append(errs, fmt.Errorf("streaming.workers must be positive, got %d", c.Streaming.Workers))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// GeneratorOptions converts the generation section.
func (c Config) GeneratorOptions() world.GeneratorOptions {
	bands := make([]world.Band, 0, len(c.Bands))
	for _, b := range c.Bands {
		bands = append(bands, world.Band{Below: b.Below, Tile: world.Tile(b.Tile)})
	}
	return world.GeneratorOptions{
		Seed:        c.Seed,
		ChunkSize:   c.ChunkSize,
		Backend:     world.NoiseBackend(c.Noise.Backend),
		Octaves:     c.Noise.Octaves,
		Persistence: c.Noise.Persistence,
		Lacunarity:  c.Noise.Lacunarity,
		Scale:       c.Noise.Scale,
		Bands:       bands,
		Default:     world.Tile(c.DefaultTile),
	}
}

// StorageOptions converts the storage section.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:    c.Storage.Backend,
		Dir:        c.Storage.Dir,
		Ext:        c.Storage.Ext,
		Compress:   c.Storage.Compress,
		SQLitePath: c.Storage.SQLitePath,
	}
}

// StreamerOptions converts the streaming section. Logger and tracker are
// left for the caller.
func (c Config) StreamerOptions() world.StreamerOptions {
	return world.StreamerOptions{
		Async:          c.Streaming.Async,
		Workers:        c.Streaming.Workers,
		QueueSize:      c.Streaming.QueueSize,
		MaxJobsPerStep: c.Streaming.MaxJobsPerStep,
	}
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
