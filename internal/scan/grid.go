// Package scan plans the sample points of an overlay scan and runs the
// visibility-prioritised, time-sliced scan task.
package scan

import "github.com/golang/geo/r3"

// Grid describes the sampling volume around the focal point.
type Grid struct {
	// Bound is the half extent of the cube on every axis.
	Bound float64
	// Step is the spacing along x and z.
	Step float64
	// VerticalStep is the spacing along y.
	VerticalStep float64
}

// DefaultGrid samples a 20 unit cube at 0.5 horizontal and 1.0 vertical spacing.
var DefaultGrid = Grid{Bound: 10, Step: 0.5, VerticalStep: 1}

// Planner turns a focal point into the absolute sample positions of a scan.
// The grid offsets are computed once.
type Planner struct {
	grid    Grid
	offsets []r3.Vector
}

// NewPlanner caches the offsets of g in x-major, then y, then z order.
// Coordinates accumulate from -Bound while they do not exceed Bound.
func NewPlanner(g Grid) *Planner {
	p := &Planner{grid: g}
	if g.Step <= 0 || g.VerticalStep <= 0 || g.Bound < 0 {
		return p
	}
	for x := -g.Bound; x <= g.Bound; x += g.Step {
		for y := -g.Bound; y <= g.Bound; y += g.VerticalStep {
			for z := -g.Bound; z <= g.Bound; z += g.Step {
				p.offsets = append(p.offsets, r3.Vector{X: x, Y: y, Z: z})
			}
		}
	}
	return p
}

func (p *Planner) Grid() Grid { return p.grid }

// Count is the number of samples per scan; it does not depend on the focal point.
func (p *Planner) Count() int { return len(p.offsets) }

// Plan returns every sample position around focal in grid order. Scans use
// Each or a Task; Plan is the allocating form for callers that want the
// whole set at once.
func (p *Planner) Plan(focal r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(p.offsets))
	for i, off := range p.offsets {
		out[i] = focal.Add(off)
	}
	return out
}

// Each calls fn for every sample position around focal in grid order without
// allocating.
func (p *Planner) Each(focal r3.Vector, fn func(r3.Vector)) {
	for _, off := range p.offsets {
		fn(focal.Add(off))
	}
}
