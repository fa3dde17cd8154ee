package overlay

import "github.com/foothold/extension/pkg/core"

// modeStrategy isolates what the activation key does in each mode.
type modeStrategy interface {
	mode() core.Mode
	// activate handles a key press. The controller has already rejected
	// presses during a scan or without a camera.
	activate(c *Controller, now float64)
	// update runs once per tick after the scan step.
	update(c *Controller, now float64)
	// leave runs before markers are cleared because of a mode change,
	// deactivation or scene change.
	leave(c *Controller)
}

func newModeStrategy(m core.Mode) modeStrategy {
	switch m {
	case core.FadeAway:
		return &fadeMode{}
	case core.Trigger:
		return &triggerMode{}
	default:
		return &toggleMode{}
	}
}

// toggleMode flips between showing a fresh scan and showing nothing.
type toggleMode struct {
	on bool
}

func (*toggleMode) mode() core.Mode { return core.Toggle }

func (m *toggleMode) activate(c *Controller, now float64) {
	m.on = !m.on
	if m.on {
		c.startScan(now)
		return
	}
	c.returnAll()
	c.state = core.Idle
}

func (*toggleMode) update(*Controller, float64) {}

func (m *toggleMode) leave(*Controller) { m.on = false }

// triggerMode rescans on every press; markers stay until the next press.
type triggerMode struct{}

func (triggerMode) mode() core.Mode                     { return core.Trigger }
func (triggerMode) activate(c *Controller, now float64) { c.startScan(now) }
func (triggerMode) update(*Controller, float64)         {}
func (triggerMode) leave(*Controller)                   {}

// fadeMode rescans on every press and fades the result out.
type fadeMode struct{}

func (fadeMode) mode() core.Mode { return core.FadeAway }

func (fadeMode) activate(c *Controller, now float64) { c.startScan(now) }

func (fadeMode) update(c *Controller, now float64) {
	if c.state != core.Displaying && c.state != core.FadingOut {
		return
	}
	if now-c.lastAlphaChange < FadeInterval {
		return
	}
	c.lastAlphaChange = now

	alpha := FadeAlpha(now, c.lastScanTime)
	c.setAlpha(alpha)
	switch {
	case alpha <= 0:
		c.returnAll()
		c.state = core.Idle
		c.log.Debug("Fade complete, markers returned to pools")
	case alpha < 1:
		c.state = core.FadingOut
	}
}

// leave restores full opacity so released markers are reusable as-is.
func (fadeMode) leave(c *Controller) { c.setAlpha(1) }
