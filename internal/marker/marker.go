// Package marker holds the pooled visual markers of the overlay: the
// per-category Pool of idle markers, the ActiveSet of displayed ones and the
// Bank pairing the two.
package marker

import (
	"github.com/foothold/extension/pkg/core"
	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
)

// Marker is one reusable visual indicator backed by a host renderable.
// Its color is fixed at construction; only alpha and position change.
type Marker struct {
	id       uint64
	category core.Category
	color    core.Color
	alpha    float64
	position r3.Vector
	active   bool
	r        hostapi.Renderable
}

func (m *Marker) ID() uint64              { return m.id }
func (m *Marker) Category() core.Category { return m.category }
func (m *Marker) Color() core.Color       { return m.color }
func (m *Marker) Alpha() float64          { return m.alpha }
func (m *Marker) Position() r3.Vector     { return m.position }
func (m *Marker) Active() bool            { return m.active }

func (m *Marker) show(pos r3.Vector, alpha float64) {
	m.position = pos
	m.r.SetPosition(pos)
	m.setAlpha(alpha)
	m.active = true
	m.r.SetActive(true)
}

func (m *Marker) hide() {
	if !m.active {
		return
	}
	m.active = false
	m.r.SetActive(false)
}

func (m *Marker) setAlpha(a float64) {
	c := m.color.WithAlpha(a)
	m.alpha = float64(c.A)
	m.r.SetColor(c)
}

// Builder constructs markers through the host render factory. Marker IDs are
// unique per Builder.
type Builder struct {
	render hostapi.RenderFactory
	next   uint64
}

func NewBuilder(render hostapi.RenderFactory) *Builder {
	return &Builder{render: render}
}

// Build creates an inactive, fully opaque marker of the given category and color.
func (b *Builder) Build(cat core.Category, color core.Color) *Marker {
	b.next++
	r := b.render.CreateMarker(color)
	r.SetActive(false)
	return &Marker{id: b.next, category: cat, color: color, alpha: 1, r: r}
}

// Built returns how many markers this builder has constructed.
func (b *Builder) Built() uint64 {
	return b.next
}
