package overlay

import (
	"context"
	"testing"

	"github.com/foothold/extension/internal/config"
	"github.com/foothold/extension/internal/scan"
	"github.com/foothold/extension/pkg/core"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestController_ToggleScenario(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ready()
	assert.Zero(t, h.active())

	h.step("F")
	assert.Equal(t, core.ScanInProgress, h.ctl.State(), "partition quantum yields first")
	assert.Zero(t, h.active())

	h.step()
	assert.Equal(t, core.Displaying, h.ctl.State())
	assert.Equal(t, 9, h.ctl.Bank(core.Standable).Active().Len())
	assert.Equal(t, 18, h.ctl.Bank(core.NonStandable).Active().Len())
	assert.Equal(t, 27, h.engine.activeRenderables())

	probes := h.engine.probes
	h.step("f")
	assert.Equal(t, core.Idle, h.ctl.State())
	assert.Zero(t, h.active(), "second press returns every marker at once")
	assert.Zero(t, h.engine.activeRenderables())
	assert.Equal(t, probes, h.engine.probes, "no scan runs on the off press")
	assert.Equal(t, 1, h.ctl.Status().ScansRun)

	h.step("F")
	h.step()
	assert.Equal(t, 27, h.active(), "third press scans again")
}

func TestController_FadeAwayScenario(t *testing.T) {
	for _, scanMode := range []core.ScanMode{core.Immediate, core.TimeSliced} {
		t.Run(scanMode.String(), func(t *testing.T) {
			s := DefaultSettings()
			s.Mode = core.FadeAway
			s.ScanMode = scanMode
			h := newHarness(t, s, WithGrid(scan.DefaultGrid))
			h.tick = -2
			h.ready()

			h.step("F")
			start := h.now()
			require.Equal(t, 0.0, start)
			for h.active() == 0 {
				h.step()
			}
			assert.Equal(t, 1.0, h.ctl.Status().Alpha)
			for _, r := range h.engine.renderables {
				if r.active {
					require.InDelta(t, 1, r.color.A, 1e-6, "markers appear fully opaque")
				}
			}

			for h.now() < start+6 {
				require.Positive(t, h.active(), "markers still shown at t=%v", h.now())
				h.step()
			}
			assert.Equal(t, start+6, h.now())
			assert.Zero(t, h.active(), "all markers back in their pools after 6 s")
			assert.Zero(t, h.engine.activeRenderables())
			assert.Equal(t, core.Idle, h.ctl.State())
			assert.Equal(t, 3000, h.ctl.Bank(core.Standable).Pool().Len())
			assert.Equal(t, 3000, h.ctl.Bank(core.NonStandable).Pool().Len())
		})
	}
}

func TestController_FadeStates(t *testing.T) {
	s := smallSettings()
	s.Mode = core.FadeAway
	s.ScanMode = core.Immediate
	h := newHarness(t, s)
	h.tick = -2
	h.ready()

	h.step("F")
	start := h.now()
	assert.Equal(t, core.Displaying, h.ctl.State())

	for h.now() < start+3 {
		h.step()
		assert.Equal(t, core.Displaying, h.ctl.State(), "opaque until 3 s after the scan started")
	}
	h.step()
	assert.Equal(t, core.FadingOut, h.ctl.State())
	assert.InDelta(t, 1-0.1/3, h.ctl.Status().Alpha, 1e-9)

	for h.now() < start+4.5 {
		h.step()
	}
	assert.InDelta(t, 0.5, h.ctl.Status().Alpha, 1e-9)
	for _, r := range h.engine.renderables {
		if r.active {
			assert.InDelta(t, 0.5, r.color.A, 1e-6)
		}
	}

	// a press while fading rescans at full opacity
	h.step("F")
	assert.Equal(t, core.Displaying, h.ctl.State())
	assert.Equal(t, 1.0, h.ctl.Status().Alpha)
	assert.Equal(t, 27, h.active())
}

func TestController_FadeThrottle(t *testing.T) {
	s := smallSettings()
	s.Mode = core.FadeAway
	s.ScanMode = core.Immediate
	h := newHarness(t, s)
	h.ready()

	h.ctl.Tick(Frame{Time: 10, KeysDown: []string{"F"}})
	h.ctl.Tick(Frame{Time: 13.5})
	a := h.ctl.Status().Alpha
	assert.InDelta(t, 1-0.5/3, a, 1e-9)

	h.ctl.Tick(Frame{Time: 13.54})
	assert.Equal(t, a, h.ctl.Status().Alpha, "updates faster than 20 Hz are skipped")
	h.ctl.Tick(Frame{Time: 13.56})
	assert.Less(t, h.ctl.Status().Alpha, a)
}

func TestController_TriggerRescansAndIgnoresPressesWhileScanning(t *testing.T) {
	s := smallSettings()
	s.Mode = core.Trigger
	h := newHarness(t, s)
	h.ready()

	h.step("F")
	require.Equal(t, core.ScanInProgress, h.ctl.State())
	probes := h.engine.probes

	assert.False(t, h.ctl.Activate(h.now()), "re-entrant activation is ignored")
	h.step("F")
	assert.Equal(t, core.Displaying, h.ctl.State())
	assert.Equal(t, 27, h.engine.probes-probes, "the in-flight scan finished, nothing else ran")
	assert.Equal(t, 1, h.ctl.Status().ScansRun)

	h.step()
	h.step()
	assert.Equal(t, 27, h.active(), "trigger markers persist")

	h.step("F")
	h.step()
	assert.Equal(t, 2, h.ctl.Status().ScansRun)
	assert.Equal(t, 27, h.active(), "a rescan replaces the previous markers")
	require.Len(t, h.sink.reports, 2)
	assert.NotEqual(t, h.sink.reports[0].ID, h.sink.reports[1].ID)
}

func TestController_CameraRetry(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.engine.cameraAfter = 3
	h.ctl.OnSceneLoaded("Airport")

	for range 3 {
		h.step("F")
		assert.False(t, h.ctl.Status().CameraReady)
		assert.Equal(t, core.Idle, h.ctl.State(), "no scan without a camera")
	}
	assert.False(t, h.ctl.Activate(h.now()))

	h.step("F")
	assert.True(t, h.ctl.Status().CameraReady)
	assert.Equal(t, core.Idle, h.ctl.State(), "the tick that finds the camera does nothing else")
	assert.Equal(t, 4, h.engine.cameraLookup)

	h.step("F")
	assert.Equal(t, core.ScanInProgress, h.ctl.State())
	assert.Equal(t, 4, h.engine.cameraLookup, "lookup stops once found")
}

func TestController_InactiveScene(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ctl.OnSceneLoaded("MainMenu")

	h.step("F")
	h.step("F")
	st := h.ctl.Status()
	assert.False(t, st.SceneActive)
	assert.Equal(t, "MainMenu", st.Scene)
	assert.Zero(t, h.engine.cameraLookup, "no work outside overlay scenes")
	assert.Zero(t, st.Standable.Constructed)
	assert.Empty(t, h.engine.renderables)
}

func TestController_SceneLoadCancelsScan(t *testing.T) {
	h := newHarness(t, smallSettings(), WithGrid(scan.DefaultGrid))
	h.ready()

	h.step("F")
	for range 12 {
		h.step()
	}
	require.Equal(t, core.ScanInProgress, h.ctl.State())
	require.Positive(t, h.active())
	placed := h.engine.renderables

	h.ctl.OnSceneLoaded("Level_02")
	assert.Equal(t, core.Idle, h.ctl.State())
	assert.False(t, h.ctl.Status().CameraReady)
	for _, r := range placed {
		assert.False(t, r.active, "markers placed by the cancelled scan are released")
	}
	require.Len(t, h.sink.reports, 1)
	assert.True(t, h.sink.reports[0].Cancelled)
	assert.Equal(t, 13, h.sink.reports[0].Steps)
	assert.Zero(t, h.ctl.Status().ScansRun)

	st := h.ctl.Status()
	assert.Equal(t, core.PoolStatus{Pool: 50, Constructed: 50, Capacity: 50}, st.Standable)
	assert.Len(t, h.engine.renderables, 200, "pools rebuilt for the new scene")

	h.step("F")
	assert.Equal(t, core.Idle, h.ctl.State(), "camera is looked up again first")
}

func TestController_CancelScan(t *testing.T) {
	h := newHarness(t, smallSettings(), WithGrid(scan.DefaultGrid))
	h.ready()
	assert.False(t, h.ctl.CancelScan())

	h.step("F")
	for range 10 {
		h.step()
	}
	require.True(t, h.ctl.CancelScan())
	assert.Equal(t, core.Idle, h.ctl.State())
	assert.Zero(t, h.active())
	h.step()
	assert.Zero(t, h.active(), "a cancelled scan places nothing more")
}

func TestController_Deactivate(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ready()
	h.step("F")
	h.step()
	require.Equal(t, 27, h.active())

	h.ctl.Deactivate()
	assert.Zero(t, h.active())
	assert.Equal(t, core.Idle, h.ctl.State())

	h.step("F")
	assert.Equal(t, core.ScanInProgress, h.ctl.State(), "toggle flag was reset, the next press turns the overlay on")
}

func TestController_PoolExhaustion(t *testing.T) {
	s := smallSettings()
	s.PoolSize = 5
	s.ScanMode = core.Immediate
	h := newHarness(t, s)
	h.ready()

	h.step("F")
	assert.Equal(t, 5, h.ctl.Bank(core.Standable).Active().Len())
	assert.Equal(t, 5, h.ctl.Bank(core.NonStandable).Active().Len())

	require.Len(t, h.sink.reports, 1)
	r := h.sink.reports[0]
	assert.Equal(t, core.CategoryCounts{Standable: 5, NonStandable: 5}, r.Placed)
	assert.Equal(t, core.CategoryCounts{Standable: 4, NonStandable: 13}, r.Dropped)
	assert.Equal(t, 27, r.Samples)
	assert.Equal(t, 1, r.Steps)
	assert.Equal(t, "Level_01", r.Scene)
}

func TestController_ScanReport(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.engine.camera.pos = r3.Vector{X: 100, Y: 2, Z: -3}
	h.ready()

	h.step("F")
	h.step()
	require.Len(t, h.sink.reports, 1)
	r := h.sink.reports[0]
	assert.Equal(t, r3.Vector{X: 100, Y: 2, Z: -3}, r.Focal)
	assert.Equal(t, 0.2, r.StartedAt)
	assert.Equal(t, 0.3, r.FinishedAt)
	assert.Equal(t, 2, r.Steps)
	assert.Equal(t, 18, r.Visible)
	assert.Equal(t, 9, r.Hidden)
	assert.Equal(t, core.Toggle, r.Mode)
	assert.Equal(t, core.TimeSliced, r.ScanMode)
	assert.False(t, r.Cancelled)

	for _, rd := range h.engine.renderables {
		if rd.active {
			assert.Equal(t, 0.5, rd.pos.Y-float64(int(rd.pos.Y)), "markers sit at the probe hit point")
		}
	}
}

func TestController_SetModeLeavingFadeRestoresOpacity(t *testing.T) {
	s := smallSettings()
	s.Mode = core.FadeAway
	s.ScanMode = core.Immediate
	h := newHarness(t, s)
	h.ready()

	h.step("F")
	for range 40 {
		h.step()
	}
	require.Equal(t, core.FadingOut, h.ctl.State())
	shown := []*testRenderable{}
	for _, r := range h.engine.renderables {
		if r.active {
			shown = append(shown, r)
		}
	}
	require.NotEmpty(t, shown)

	h.ctl.SetMode(core.Toggle)
	assert.Equal(t, core.Toggle, h.ctl.Mode())
	assert.Equal(t, core.Idle, h.ctl.State())
	for _, r := range shown {
		assert.False(t, r.active)
		assert.InDelta(t, 1, r.color.A, 1e-6, "opacity restored before release")
	}
	assert.Equal(t, 1.0, h.ctl.Status().Alpha)

	h.ctl.SetMode(core.Toggle)
	assert.Equal(t, core.Toggle, h.ctl.Settings().Mode)
}

func TestController_SetModeCancelsScan(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ready()
	h.step("F")
	require.Equal(t, core.ScanInProgress, h.ctl.State())

	h.ctl.SetMode(core.Trigger)
	assert.Equal(t, core.Idle, h.ctl.State())
	require.Len(t, h.sink.reports, 1)
	assert.True(t, h.sink.reports[0].Cancelled)
}

func TestController_SetColorsRebuildsOnlyChangedBanks(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ready()
	h.step("F")
	h.step()
	require.Len(t, h.engine.renderables, 100)

	h.ctl.SetColors(core.Green, core.Red)
	assert.Zero(t, h.active())
	assert.Len(t, h.engine.renderables, 150, "only the standable bank is rebuilt")
	assert.Equal(t, core.Green, h.ctl.Bank(core.Standable).Color())
	assert.Equal(t, core.Red, h.ctl.Bank(core.NonStandable).Color())
	for _, r := range h.engine.renderables[100:] {
		assert.Equal(t, core.Green, r.color)
	}

	h.ctl.SetColors(core.Green, core.Red)
	assert.Len(t, h.engine.renderables, 150, "unchanged colors rebuild nothing")

	h.ctl.SetColors(core.Green.WithAlpha(0.4), core.Red)
	assert.Len(t, h.engine.renderables, 150, "alpha alone is not a color change")

	h.step("F")
	h.step()
	assert.Equal(t, 27, h.active())
}

func TestController_SetColorsOutsideScene(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ctl.SetColors(core.Green, core.Magenta)
	assert.Empty(t, h.engine.renderables)

	h.ready()
	assert.Equal(t, core.Green, h.ctl.Bank(core.Standable).Color())
	assert.Equal(t, core.Magenta, h.ctl.Bank(core.NonStandable).Color())
}

func TestController_ApplySettings(t *testing.T) {
	h := newHarness(t, smallSettings())
	h.ready()

	s := smallSettings()
	s.ActivationKey = "G"
	s.PoolSize = 10
	s.Mode = core.Trigger
	s.Debug = true
	h.ctl.ApplySettings(s)

	st := h.ctl.Status()
	assert.Equal(t, core.Trigger, st.Mode)
	assert.Equal(t, 10, st.Standable.Capacity)
	assert.Equal(t, 10, st.NonStandable.Pool)
	assert.True(t, h.ctl.Settings().Debug)

	h.step("F")
	assert.Equal(t, core.Idle, h.ctl.State(), "old key no longer activates")
	h.step("g")
	assert.Equal(t, core.ScanInProgress, h.ctl.State())
}

func TestController_OutOfRangePoolSize(t *testing.T) {
	s := smallSettings()
	s.PoolSize = 1 << 50
	_, err := New(newTestEngine(), s)
	assert.ErrorIs(t, err, config.ErrInvalid)

	h := newHarness(t, smallSettings())
	h.ready()
	before := h.ctl.Status()

	s = smallSettings()
	s.PoolSize = 1 << 50
	s.Mode = core.Trigger
	require.NotPanics(t, func() { h.ctl.ApplySettings(s) })

	st := h.ctl.Status()
	assert.Equal(t, core.Trigger, st.Mode, "other fields still apply")
	assert.Equal(t, before.Standable.Capacity, st.Standable.Capacity)
	assert.Equal(t, smallSettings().PoolSize, h.ctl.Settings().PoolSize)
}

func TestController_StatusSnapshot(t *testing.T) {
	h := newHarness(t, smallSettings())
	st := h.ctl.Status()
	assert.Equal(t, core.Idle, st.State)
	assert.Equal(t, core.Toggle, st.Mode)
	assert.Equal(t, 1.0, st.Alpha)

	h.ready()
	h.step("F")
	st = h.ctl.Status()
	assert.True(t, st.Scanning)
	assert.Equal(t, core.ScanInProgress, st.State)
	assert.Equal(t, 50, st.Standable.Pool)
}

func TestController_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	s := smallSettings()
	s.PoolSize = 5
	h := newHarness(t, s, WithMeter(mp.Meter("test")))
	h.ready()
	h.step("F")
	h.step()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	got := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			got[m.Name] = m.Data
		}
	}

	scans, ok := got["overlay.scans.completed"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, scans.DataPoints, 1)
	assert.Equal(t, int64(1), scans.DataPoints[0].Value)

	dropped, ok := got["overlay.markers.dropped"].(metricdata.Sum[int64])
	require.True(t, ok)
	total := int64(0)
	for _, dp := range dropped.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(17), total)

	steps, ok := got["overlay.scan.steps"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, steps.DataPoints, 1)
	assert.Equal(t, int64(2), steps.DataPoints[0].Sum)

	active, ok := got["overlay.active.size"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 2)
	for _, dp := range active.DataPoints {
		assert.Equal(t, int64(5), dp.Value)
	}
	_, ok = got["overlay.pool.size"].(metricdata.Gauge[int64])
	assert.True(t, ok)
}

func TestFadeAlpha(t *testing.T) {
	const t0 = 12.0
	assert.Equal(t, 1.0, FadeAlpha(t0, t0))
	assert.Equal(t, 1.0, FadeAlpha(t0+3, t0))
	assert.Equal(t, 0.5, FadeAlpha(t0+4.5, t0))
	assert.Equal(t, 0.0, FadeAlpha(t0+6, t0))
	assert.Equal(t, 0.0, FadeAlpha(t0+60, t0))

	prev := 1.0
	for dt := 0.0; dt <= 7; dt += 0.01 {
		a := FadeAlpha(t0+dt, t0)
		require.LessOrEqual(t, a, prev, "non-increasing at dt=%v", dt)
		require.GreaterOrEqual(t, a, 0.0)
		prev = a
	}
}
