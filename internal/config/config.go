package config

import "sync"

const (
	MinRenderDistance = 0
	MaxRenderDistance = 32
)

// RenderSettings holds the observer's view radius, which may change at runtime.
type RenderSettings struct {
	mu             sync.RWMutex
	renderDistance int // in chunks
}

// NewRenderSettings creates settings with a clamped starting distance.
func NewRenderSettings(distance int) *RenderSettings {
	s := &RenderSettings{}
	s.SetRenderDistance(distance)
	return s
}

// RenderDistance returns the current render distance in chunks
func (s *RenderSettings) RenderDistance() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderDistance
}

// SetRenderDistance sets the render distance in chunks
func (s *RenderSettings) SetRenderDistance(distance int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clamp to reasonable values
	if distance < MinRenderDistance {
		distance = MinRenderDistance
	}
	if distance > MaxRenderDistance {
		distance = MaxRenderDistance
	}

	s.renderDistance = distance
}
