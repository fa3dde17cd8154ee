package scan

import "github.com/golang/geo/r3"

// Viewport projects world points into normalised viewport coordinates.
// hostapi.Camera satisfies it.
type Viewport interface {
	WorldToViewport(p r3.Vector) r3.Vector
}

// InView reports whether a viewport-space point is on screen and in front of
// the camera.
func InView(v r3.Vector) bool {
	return v.X >= 0 && v.X <= 1 && v.Y >= 0 && v.Y <= 1 && v.Z > 0
}

// Partition splits points into those the camera sees and the rest, keeping
// the input order within each part. It is the one-shot form of the partition
// a Task runs in quanta.
func Partition(points []r3.Vector, vp Viewport) (visible, hidden []r3.Vector) {
	return partitionAround(r3.Vector{}, points, vp, nil, nil)
}

// partitionAround appends focal+off for every offset to visible or hidden.
func partitionAround(focal r3.Vector, offsets []r3.Vector, vp Viewport, visible, hidden []r3.Vector) ([]r3.Vector, []r3.Vector) {
	for _, off := range offsets {
		pt := focal.Add(off)
		if InView(vp.WorldToViewport(pt)) {
			visible = append(visible, pt)
		} else {
			hidden = append(hidden, pt)
		}
	}
	return visible, hidden
}
