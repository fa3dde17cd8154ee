package simhost

import (
	"github.com/foothold/extension/pkg/core"
	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
)

// Renderable is a marker primitive held by the simulated scene.
type Renderable struct {
	ID     int
	Active bool
	Pos    r3.Vector
	Color  core.Color
}

func (r *Renderable) SetActive(active bool)   { r.Active = active }
func (r *Renderable) SetPosition(p r3.Vector) { r.Pos = p }
func (r *Renderable) SetColor(c core.Color)   { r.Color = c }

// Engine implements hostapi.Engine over a Terrain. It is not safe for
// concurrent use, like the host it stands in for.
type Engine struct {
	terrain     *Terrain
	camera      *Camera
	cameraDelay int
	lookups     int
	probes      int
	renderables []*Renderable
}

var _ hostapi.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithCamera places the main camera.
func WithCamera(c *Camera) Option {
	return func(e *Engine) { e.camera = c }
}

// WithCameraDelay makes the first n camera lookups fail, as when the camera
// spawns a few frames after the scene.
func WithCameraDelay(n int) Option {
	return func(e *Engine) { e.cameraDelay = n }
}

// NewEngine creates an engine over terrain. Without WithCamera the camera
// stands two units above the origin looking along -Z.
func NewEngine(terrain *Terrain, opts ...Option) *Engine {
	e := &Engine{terrain: terrain}
	for _, opt := range opts {
		opt(e)
	}
	if e.camera == nil {
		h, _ := terrain.Height(0, 0)
		eye := r3.Vector{Y: h + 2}
		e.camera = NewCamera(eye, eye.Add(r3.Vector{Z: -1}), 60, 16.0/9.0)
	}
	return e
}

// LineCheck probes the terrain and counts the query.
func (e *Engine) LineCheck(from, to r3.Vector) (hostapi.Hit, bool) {
	e.probes++
	return e.terrain.LineCheck(from, to)
}

// MainCamera returns the camera once the configured delay has passed.
func (e *Engine) MainCamera() (hostapi.Camera, bool) {
	e.lookups++
	if e.lookups <= e.cameraDelay {
		return nil, false
	}
	return e.camera, true
}

// CreateMarker creates an inactive renderable.
func (e *Engine) CreateMarker(color core.Color) hostapi.Renderable {
	r := &Renderable{ID: len(e.renderables) + 1, Color: color}
	e.renderables = append(e.renderables, r)
	return r
}

// Camera returns the main camera regardless of the lookup delay.
func (e *Engine) Camera() *Camera { return e.camera }

// Terrain returns the simulated terrain.
func (e *Engine) Terrain() *Terrain { return e.terrain }

// Probes returns the number of LineCheck calls so far.
func (e *Engine) Probes() int { return e.probes }

// CameraLookups returns the number of MainCamera calls so far.
func (e *Engine) CameraLookups() int { return e.lookups }

// Renderables returns every renderable created so far.
func (e *Engine) Renderables() []*Renderable { return e.renderables }

// Visible returns the active renderables.
func (e *Engine) Visible() []*Renderable {
	var out []*Renderable
	for _, r := range e.renderables {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}
