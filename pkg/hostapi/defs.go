// Package hostapi is the boundary between the overlay core and the game engine
// that hosts it. The engine implements Engine; the engine's scripting side
// drives the core by sending commands through a Gateway.
package hostapi

import (
	"github.com/foothold/extension/pkg/core"
	"github.com/golang/geo/r3"
)

// Up is the world-up direction of the host engine.
var Up = r3.Vector{X: 0, Y: 1, Z: 0}

// Surface is the collider hit by a probe.
type Surface interface {
	// StandableOverride reports an explicit per-surface standable flag.
	// ok is false when the surface carries no override.
	StandableOverride() (standable bool, ok bool)
}

// Hit is the nearest intersection of a probe segment with the terrain layer.
// Surface may be nil.
type Hit struct {
	Point   r3.Vector
	Normal  r3.Vector
	Surface Surface
}

// Physics answers probe queries against terrain geometry.
type Physics interface {
	// LineCheck returns the nearest terrain hit on the segment from -> to,
	// ignoring trigger volumes.
	LineCheck(from, to r3.Vector) (Hit, bool)
}

// Camera is the player's active camera.
type Camera interface {
	Position() r3.Vector
	// WorldToViewport projects a world point into normalised viewport space:
	// x and y in [0,1] are on screen, z is the depth in front of the camera.
	WorldToViewport(p r3.Vector) r3.Vector
}

// CameraLocator finds the main camera. The camera typically spawns some time
// after the scene loads, so callers retry every tick until ok is true.
type CameraLocator interface {
	MainCamera() (Camera, bool)
}

// Renderable is a primitive renderable owned by the host scene.
type Renderable interface {
	SetActive(active bool)
	SetPosition(p r3.Vector)
	SetColor(c core.Color)
}

// RenderFactory constructs marker renderables. Construction is expensive
// (material duplication) and only happens when pools are rebuilt.
// Renderables are created inactive.
type RenderFactory interface {
	CreateMarker(color core.Color) Renderable
}

// Engine is everything the overlay core needs from its host.
type Engine interface {
	Physics
	CameraLocator
	RenderFactory
}
