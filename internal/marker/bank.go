package marker

import (
	"github.com/foothold/extension/pkg/core"
	"github.com/golang/geo/r3"
)

// Bank pairs the pool and the active set of one category. Every marker it
// constructed is in exactly one of the two.
type Bank struct {
	category    core.Category
	color       core.Color
	alpha       float64
	constructed int
	pool        *Pool
	active      *ActiveSet
}

// NewBank creates an empty bank. Call Rebuild to construct markers.
func NewBank(cat core.Category, capacity int) *Bank {
	return &Bank{
		category: cat,
		color:    core.DefaultColor(cat),
		alpha:    1,
		pool:     NewPool(cat, capacity),
		active:   NewActiveSet(capacity),
	}
}

func (b *Bank) Category() core.Category { return b.category }
func (b *Bank) Color() core.Color       { return b.color }
func (b *Bank) Alpha() float64          { return b.alpha }
func (b *Bank) Constructed() int        { return b.constructed }
func (b *Bank) Pool() *Pool             { return b.pool }
func (b *Bank) Active() *ActiveSet      { return b.active }

// Place shows a pooled marker at pos with the bank's current alpha.
// It returns false when the pool is exhausted.
func (b *Bank) Place(pos r3.Vector) bool {
	m, ok := b.pool.Acquire()
	if !ok {
		return false
	}
	m.show(pos, b.alpha)
	b.active.Add(m)
	return true
}

// ReturnAll moves every active marker back to the pool and returns how many
// moved. Calling it again with nothing active is a no-op.
func (b *Bank) ReturnAll() int {
	returned := 0
	for _, m := range b.active.Drain() {
		if err := b.pool.Release(m); err != nil {
			// only reachable if the conservation invariant is already broken
			m.hide()
			continue
		}
		returned++
	}
	return returned
}

// SetAlpha sets the opacity of every active marker and of markers placed later.
func (b *Bank) SetAlpha(a float64) {
	b.alpha = min(max(a, 0), 1)
	b.active.Each(func(m *Marker) { m.setAlpha(b.alpha) })
}

// Rebuild hides any active markers, then replaces the pool contents with
// count fresh markers of color.
func (b *Bank) Rebuild(color core.Color, count int, builder *Builder) int {
	for _, m := range b.active.Drain() {
		m.hide()
	}
	b.color = color
	b.constructed = b.pool.Refill(count, func() *Marker {
		return builder.Build(b.category, color)
	})
	return b.constructed
}

// Discard forgets every marker without touching host renderables. Used when
// the host scene that owned them is gone.
func (b *Bank) Discard() {
	b.active.Drain()
	b.pool.Clear()
	b.constructed = 0
}

func (b *Bank) Status() core.PoolStatus {
	return core.PoolStatus{
		Pool:        b.pool.Len(),
		Active:      b.active.Len(),
		Constructed: b.constructed,
		Capacity:    b.pool.Capacity(),
	}
}
