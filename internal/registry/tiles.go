package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tilestream/internal/world"
)

// TileDefinition defines a tile type and where its texture sits in the atlas.
type TileDefinition struct {
	Name         string `json:"name"`
	TextureIndex int    `json:"textureIndex"`
}

// Registry is the tile vocabulary. Lookups ignore case.
type Registry struct {
	defs  map[string]TileDefinition
	names []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]TileDefinition)}
}

// Default returns the built-in Water, Sand and Grass tiles.
func Default() *Registry {
	r := New()
	for _, def := range []TileDefinition{
		{Name: string(world.TileGrass), TextureIndex: 0},
		{Name: string(world.TileSand), TextureIndex: 1},
		{Name: string(world.TileWater), TextureIndex: 2},
	} {
		_ = r.Register(def)
	}
	return r
}

// Register adds a definition. Names must be valid grid tokens and unique
// regardless of case.
func (r *Registry) Register(def TileDefinition) error {
	if !world.ValidToken(world.Tile(def.Name)) {
		return fmt.Errorf("invalid tile name %q", def.Name)
	}
	if def.TextureIndex < 0 {
		return fmt.Errorf("tile %s: negative texture index %d", def.Name, def.TextureIndex)
	}
	key := strings.ToLower(def.Name)
	if existing, ok := r.defs[key]; ok {
		return fmt.Errorf("tile %s already registered as %s", def.Name, existing.Name)
	}
	r.defs[key] = def
	r.names = append(r.names, def.Name)
	return nil
}

// Load reads every *.json file in dir as one TileDefinition.
func Load(dir string) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no tile definitions in %s", dir)
	}

	r := New()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read tile file: %w", err)
		}
		var def TileDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("could not unmarshal tile json %s: %w", filepath.Base(path), err)
		}
		if err := r.Register(def); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return r, nil
}

// LookupTextureIndex returns the atlas index for a tile name.
func (r *Registry) LookupTextureIndex(name string) (int, bool) {
	def, ok := r.defs[strings.ToLower(name)]
	return def.TextureIndex, ok
}

// Has implements world.TileSet.
func (r *Registry) Has(t world.Tile) bool {
	_, ok := r.defs[strings.ToLower(string(t))]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered tiles.
func (r *Registry) Len() int { return len(r.defs) }
