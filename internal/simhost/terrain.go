// Package simhost is a headless host engine: a heightfield terrain with
// per-region surface overrides, a perspective camera and recorded
// renderables. The CLI drives sessions against it and tests use it as the
// engine behind a controller.
package simhost

import (
	"math"

	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Region is an axis-aligned area of the XZ plane whose surface carries an
// explicit standable flag.
type Region struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
	Standable  bool
}

func (r Region) contains(x, z float64) bool {
	return x >= r.MinX && x <= r.MaxX && z >= r.MinZ && z <= r.MaxZ
}

// surface is the collider of a hit. A zero override means none.
type surface struct {
	standable bool
	override  bool
}

func (s surface) StandableOverride() (bool, bool) { return s.standable, s.override }

// Terrain is a regular heightfield over the XZ plane. Heights are sampled at
// grid vertices and interpolated bilinearly between them.
type Terrain struct {
	originX, originZ float64
	cell             float64
	heights          *mat.Dense // rows follow z, columns follow x
	regions          []Region
}

// NewTerrain samples height(x, z) on a cols x rows vertex grid starting at
// (originX, originZ) with the given cell size.
func NewTerrain(originX, originZ, cell float64, cols, rows int, height func(x, z float64) float64) *Terrain {
	if cols < 2 {
		cols = 2
	}
	if rows < 2 {
		rows = 2
	}
	h := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			h.Set(r, c, height(originX+float64(c)*cell, originZ+float64(r)*cell))
		}
	}
	return &Terrain{originX: originX, originZ: originZ, cell: cell, heights: h}
}

// Flat returns a level terrain of the given half extent at height y.
func Flat(extent, y float64) *Terrain {
	n := int(math.Ceil(2*extent)) + 1
	return NewTerrain(-extent, -extent, 1, n, n, func(_, _ float64) float64 { return y })
}

// Slope returns a plane rising along +X at deg degrees, passing through y=0 at x=0.
func Slope(extent, deg float64) *Terrain {
	k := math.Tan(deg * math.Pi / 180)
	n := int(math.Ceil(2*extent)) + 1
	return NewTerrain(-extent, -extent, 1, n, n, func(x, _ float64) float64 { return k * x })
}

// Hills returns rolling terrain with slopes steep enough to produce both
// marker categories.
func Hills(extent float64) *Terrain {
	n := int(math.Ceil(4*extent)) + 1
	return NewTerrain(-extent, -extent, 0.5, n, n, func(x, z float64) float64 {
		return 3*math.Sin(x/3) + 2*math.Cos(z/2.5)
	})
}

// AddRegion marks an area with a surface override.
func (t *Terrain) AddRegion(r Region) {
	t.regions = append(t.regions, r)
}

// Bounds returns the XZ extent covered by the heightfield.
func (t *Terrain) Bounds() (minX, minZ, maxX, maxZ float64) {
	rows, cols := t.heights.Dims()
	return t.originX, t.originZ, t.originX + float64(cols-1)*t.cell, t.originZ + float64(rows-1)*t.cell
}

// Height returns the interpolated terrain height at (x, z). ok is false
// outside the heightfield.
func (t *Terrain) Height(x, z float64) (float64, bool) {
	rows, cols := t.heights.Dims()
	fx := (x - t.originX) / t.cell
	fz := (z - t.originZ) / t.cell
	if fx < 0 || fz < 0 || fx > float64(cols-1) || fz > float64(rows-1) {
		return 0, false
	}

	c0 := min(int(fx), cols-2)
	r0 := min(int(fz), rows-2)
	tx := fx - float64(c0)
	tz := fz - float64(r0)

	h00 := t.heights.At(r0, c0)
	h10 := t.heights.At(r0, c0+1)
	h01 := t.heights.At(r0+1, c0)
	h11 := t.heights.At(r0+1, c0+1)
	near := h00 + (h10-h00)*tx
	far := h01 + (h11-h01)*tx
	return near + (far-near)*tz, true
}

// Normal returns the unit surface normal at (x, z) from central differences.
func (t *Terrain) Normal(x, z float64) r3.Vector {
	d := t.cell / 2
	hx0 := t.heightOr(x-d, z, x, z)
	hx1 := t.heightOr(x+d, z, x, z)
	hz0 := t.heightOr(x, z-d, x, z)
	hz1 := t.heightOr(x, z+d, x, z)
	n := r3.Vector{X: -(hx1 - hx0) / (2 * d), Y: 1, Z: -(hz1 - hz0) / (2 * d)}
	return n.Normalize()
}

// heightOr samples (x, z), clamping to (fx, fz) at the heightfield edge.
func (t *Terrain) heightOr(x, z, fx, fz float64) float64 {
	if h, ok := t.Height(x, z); ok {
		return h
	}
	h, _ := t.Height(fx, fz)
	return h
}

func (t *Terrain) surfaceAt(x, z float64) hostapi.Surface {
	for i := len(t.regions) - 1; i >= 0; i-- {
		if t.regions[i].contains(x, z) {
			return surface{standable: t.regions[i].Standable, override: true}
		}
	}
	return surface{}
}

// march resolution relative to the cell size, and bisection depth.
const (
	marchDivisions = 4
	refineSteps    = 24
)

// LineCheck returns the first point where the segment from -> to meets the
// terrain. Parts of the segment outside the heightfield never hit.
func (t *Terrain) LineCheck(from, to r3.Vector) (hostapi.Hit, bool) {
	seg := to.Sub(from)
	n := int(math.Ceil(seg.Norm() / (t.cell / marchDivisions)))
	if n < 1 {
		n = 1
	}

	below := func(f float64) bool {
		p := from.Add(seg.Mul(f))
		h, ok := t.Height(p.X, p.Z)
		return ok && p.Y <= h
	}

	prev := 0.0
	if below(prev) {
		return t.hit(from), true
	}
	for i := 1; i <= n; i++ {
		cur := float64(i) / float64(n)
		if !below(cur) {
			prev = cur
			continue
		}
		lo, hi := prev, cur
		for j := 0; j < refineSteps; j++ {
			mid := (lo + hi) / 2
			if below(mid) {
				hi = mid
			} else {
				lo = mid
			}
		}
		p := from.Add(seg.Mul(hi))
		if h, ok := t.Height(p.X, p.Z); ok {
			p.Y = h
		}
		return t.hit(p), true
	}
	return hostapi.Hit{}, false
}

func (t *Terrain) hit(p r3.Vector) hostapi.Hit {
	return hostapi.Hit{Point: p, Normal: t.Normal(p.X, p.Z), Surface: t.surfaceAt(p.X, p.Z)}
}
