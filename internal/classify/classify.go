// Package classify decides whether the ground under a sample point is a
// foothold.
package classify

import (
	"github.com/foothold/extension/pkg/core"
	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
)

const (
	// ProbeLength is how far below the sample point the probe reaches.
	ProbeLength = 1.0
	// MinAngle is the slope in degrees at or below which ground counts as flat.
	MinAngle = 30.0
	// SteepAngle is the slope in degrees from which ground is too steep to stand on.
	SteepAngle = 50.0
)

// Result is the outcome of one probe. Point, Normal and Angle are only
// meaningful when the probe hit something.
type Result struct {
	Class  core.Classification
	Hit    bool
	Point  r3.Vector
	Normal r3.Vector
	Angle  float64
}

// Classifier probes straight down from sample points.
type Classifier struct {
	physics hostapi.Physics
}

func New(physics hostapi.Physics) *Classifier {
	return &Classifier{physics: physics}
}

// Classify probes from sample to ProbeLength below it.
// A surface that explicitly opts out of standing yields NoHit; a surface that
// opts in is still subject to the slope test.
func (c *Classifier) Classify(sample r3.Vector) Result {
	hit, ok := c.physics.LineCheck(sample, sample.Sub(hostapi.Up.Mul(ProbeLength)))
	if !ok {
		return Result{Class: core.NoHit}
	}

	res := Result{Hit: true, Point: hit.Point, Normal: hit.Normal}
	if hit.Surface != nil {
		if standable, set := hit.Surface.StandableOverride(); set && !standable {
			res.Class = core.NoHit
			return res
		}
	}

	res.Angle = hostapi.Up.Angle(hit.Normal).Degrees()
	res.Class = ClassifyAngle(res.Angle)
	return res
}

// ClassifyAngle maps the angle between world-up and a surface normal to a
// classification: flat ground is not marked, moderate slopes are standable
// and steep ones are not.
func ClassifyAngle(deg float64) core.Classification {
	switch {
	case deg <= MinAngle:
		return core.NoHit
	case deg < SteepAngle:
		return core.ClassStandable
	default:
		return core.ClassNonStandable
	}
}
