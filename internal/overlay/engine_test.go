package overlay

import (
	"math"
	"testing"

	"github.com/foothold/extension/internal/scan"
	"github.com/foothold/extension/pkg/core"
	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

// smallGrid has 27 samples: x = -1 hits standable ground, x = 0 and 1 hit
// steep ground.
var smallGrid = scan.Grid{Bound: 1, Step: 1, VerticalStep: 1}

type testRenderable struct {
	active bool
	pos    r3.Vector
	color  core.Color
}

func (r *testRenderable) SetActive(a bool)        { r.active = a }
func (r *testRenderable) SetPosition(p r3.Vector) { r.pos = p }
func (r *testRenderable) SetColor(c core.Color)   { r.color = c }

type testCamera struct {
	pos r3.Vector
}

func (c testCamera) Position() r3.Vector { return c.pos }

// WorldToViewport sees everything at or to the right of the camera.
func (c testCamera) WorldToViewport(p r3.Vector) r3.Vector {
	if p.X >= c.pos.X {
		return r3.Vector{X: 0.5, Y: 0.5, Z: 1}
	}
	return r3.Vector{X: 0.5, Y: 0.5, Z: -1}
}

func tilted(deg float64) r3.Vector {
	rad := deg * math.Pi / 180
	return r3.Vector{X: math.Sin(rad), Y: math.Cos(rad)}
}

// testEngine hits ground half a unit below every probe origin: 40° slopes
// left of the camera, 60° slopes elsewhere.
type testEngine struct {
	camera       *testCamera
	cameraAfter  int
	cameraLookup int
	renderables  []*testRenderable
	probes       int
}

func newTestEngine() *testEngine {
	return &testEngine{camera: &testCamera{}}
}

func (e *testEngine) LineCheck(from, _ r3.Vector) (hostapi.Hit, bool) {
	e.probes++
	normal := tilted(60)
	if from.X < e.camera.pos.X {
		normal = tilted(40)
	}
	return hostapi.Hit{Point: from.Sub(r3.Vector{Y: 0.5}), Normal: normal}, true
}

func (e *testEngine) MainCamera() (hostapi.Camera, bool) {
	e.cameraLookup++
	if e.cameraLookup <= e.cameraAfter {
		return nil, false
	}
	return *e.camera, true
}

func (e *testEngine) CreateMarker(c core.Color) hostapi.Renderable {
	r := &testRenderable{color: c, active: true}
	e.renderables = append(e.renderables, r)
	return r
}

func (e *testEngine) activeRenderables() int {
	n := 0
	for _, r := range e.renderables {
		if r.active {
			n++
		}
	}
	return n
}

type reportSink struct {
	reports []core.ScanReport
}

func (s *reportSink) Record(r core.ScanReport) { s.reports = append(s.reports, r) }

type harness struct {
	t      *testing.T
	engine *testEngine
	ctl    *Controller
	sink   *reportSink
	tick   int
}

func newHarness(t *testing.T, settings Settings, opts ...Option) *harness {
	t.Helper()
	h := &harness{t: t, engine: newTestEngine(), sink: &reportSink{}}
	opts = append([]Option{WithGrid(smallGrid), WithRecorders(h.sink)}, opts...)
	ctl, err := New(h.engine, settings, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctl.Close() })
	h.ctl = ctl
	return h
}

// now is the host time of the current tick, in exact tenths of a second.
func (h *harness) now() float64 { return float64(h.tick) / 10 }

// step advances one 0.1 s tick, optionally pressing keys.
func (h *harness) step(keys ...string) {
	h.tick++
	h.ctl.Tick(Frame{Time: h.now(), KeysDown: keys})
	h.checkConservation()
}

// ready loads an overlay scene and lets the camera be found.
func (h *harness) ready() {
	h.ctl.OnSceneLoaded("Level_01")
	h.step()
	require.True(h.t, h.ctl.Status().CameraReady)
}

func (h *harness) checkConservation() {
	h.t.Helper()
	for _, cat := range core.Categories {
		ps := h.ctl.Bank(cat).Status()
		require.Equal(h.t, ps.Constructed, ps.Pool+ps.Active, "%s markers lost or duplicated", cat)
		require.LessOrEqual(h.t, ps.Active, ps.Capacity)
	}
}

func (h *harness) active() int {
	return h.ctl.Bank(core.Standable).Active().Len() + h.ctl.Bank(core.NonStandable).Active().Len()
}

func smallSettings() Settings {
	s := DefaultSettings()
	s.PoolSize = 50
	return s
}
