package simhost

import (
	"math"

	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Camera is a right-handed perspective camera with world-up Y.
type Camera struct {
	pos      r3.Vector
	forward  r3.Vector
	fovY     float64 // radians
	aspect   float64
	near     float64
	far      float64
	viewProj *mat.Dense
}

// NewCamera creates a camera at pos looking at target. fovDeg is the
// vertical field of view.
func NewCamera(pos, target r3.Vector, fovDeg, aspect float64) *Camera {
	c := &Camera{
		pos:    pos,
		fovY:   fovDeg * math.Pi / 180,
		aspect: aspect,
		near:   0.1,
		far:    1000,
	}
	c.LookAt(pos, target)
	return c
}

// LookAt moves the camera and recomputes its view-projection matrix.
func (c *Camera) LookAt(pos, target r3.Vector) {
	c.pos = pos
	c.forward = target.Sub(pos).Normalize()

	up := hostapi.Up
	if math.Abs(c.forward.Dot(up)) > 0.999 {
		up = r3.Vector{Z: -1}
	}
	right := c.forward.Cross(up).Normalize()
	camUp := right.Cross(c.forward)

	view := mat.NewDense(4, 4, []float64{
		right.X, right.Y, right.Z, -right.Dot(pos),
		camUp.X, camUp.Y, camUp.Z, -camUp.Dot(pos),
		-c.forward.X, -c.forward.Y, -c.forward.Z, c.forward.Dot(pos),
		0, 0, 0, 1,
	})

	f := 1 / math.Tan(c.fovY/2)
	depth := c.far - c.near
	proj := mat.NewDense(4, 4, []float64{
		f / c.aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, -(c.far + c.near) / depth, -2 * c.far * c.near / depth,
		0, 0, -1, 0,
	})

	c.viewProj = mat.NewDense(4, 4, nil)
	c.viewProj.Mul(proj, view)
}

// Position returns the camera position.
func (c *Camera) Position() r3.Vector { return c.pos }

// Forward returns the unit view direction.
func (c *Camera) Forward() r3.Vector { return c.forward }

// WorldToViewport projects p: x and y in [0,1] are on screen, z is the
// distance in front of the camera (negative behind it).
func (c *Camera) WorldToViewport(p r3.Vector) r3.Vector {
	var clip mat.VecDense
	clip.MulVec(c.viewProj, mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1}))

	w := clip.AtVec(3)
	if w == 0 {
		return r3.Vector{X: 0.5, Y: 0.5, Z: 0}
	}
	return r3.Vector{
		X: (clip.AtVec(0)/w + 1) / 2,
		Y: (clip.AtVec(1)/w + 1) / 2,
		Z: w,
	}
}
