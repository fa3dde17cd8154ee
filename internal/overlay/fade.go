package overlay

const (
	// FadeDelay is how long after scan start markers stay fully opaque.
	FadeDelay = 3.0
	// FadeDuration is how long the linear fade to transparent takes.
	FadeDuration = 3.0
	// FadeInterval is the minimum host time between two opacity updates.
	FadeInterval = 0.05
)

// FadeAlpha is the marker opacity at host time now for a scan started at start.
func FadeAlpha(now, start float64) float64 {
	t := (now - (start + FadeDelay)) / FadeDuration
	switch {
	case t <= 0:
		return 1
	case t >= 1:
		return 0
	default:
		return 1 - t
	}
}
