package game

import "github.com/go-gl/mathgl/mgl64"

// Observer is the single moving viewpoint that drives streaming.
type Observer struct {
	Position mgl64.Vec2
	Velocity mgl64.Vec2 // world units per step
}

// Advance moves the observer by one step and returns the new position.
func (o *Observer) Advance() mgl64.Vec2 {
	o.Position = o.Position.Add(o.Velocity)
	return o.Position
}

// Teleport places the observer at p without changing its velocity.
func (o *Observer) Teleport(p mgl64.Vec2) {
	o.Position = p
}
