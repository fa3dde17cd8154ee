package marker

import (
	"errors"
	"fmt"

	"github.com/foothold/extension/pkg/core"
)

var (
	// ErrPoolFull is returned by Release when the pool already holds capacity markers.
	ErrPoolFull = errors.New("marker pool is full")
	// ErrWrongCategory is returned by Release for a marker of another category.
	ErrWrongCategory = errors.New("marker belongs to another category")
)

// Pool is the FIFO of inactive markers of one category. Acquire takes from
// the front and Release appends at the back.
type Pool struct {
	category core.Category
	capacity int
	items    []*Marker
	head     int
}

// NewPool creates an empty pool. capacity is clamped to at least 1.
func NewPool(cat core.Category, capacity int) *Pool {
	return &Pool{category: cat, capacity: max(capacity, 1)}
}

func (p *Pool) Category() core.Category { return p.category }
func (p *Pool) Capacity() int           { return p.capacity }
func (p *Pool) Len() int                { return len(p.items) - p.head }

// Acquire removes and returns the front marker. ok is false when the pool is
// empty; nothing is allocated in either case.
func (p *Pool) Acquire() (m *Marker, ok bool) {
	if p.Len() == 0 {
		return nil, false
	}
	m = p.items[p.head]
	p.items[p.head] = nil
	p.head++
	if p.head == len(p.items) {
		p.items = p.items[:0]
		p.head = 0
	}
	return m, true
}

// Release deactivates m and puts it at the back of the pool.
func (p *Pool) Release(m *Marker) error {
	if m == nil {
		return nil
	}
	if m.category != p.category {
		return fmt.Errorf("%w: %s marker %d into %s pool", ErrWrongCategory, m.category, m.id, p.category)
	}
	if p.Len() >= p.capacity {
		return fmt.Errorf("%w: capacity %d", ErrPoolFull, p.capacity)
	}
	m.hide()
	if p.head > 0 && len(p.items) == cap(p.items) {
		n := copy(p.items, p.items[p.head:])
		clear(p.items[n:])
		p.items = p.items[:n]
		p.head = 0
	}
	p.items = append(p.items, m)
	return nil
}

// Refill drops the current contents and constructs min(count, capacity)
// markers with build. It returns the number constructed.
func (p *Pool) Refill(count int, build func() *Marker) int {
	p.Clear()
	n := min(max(count, 0), p.capacity)
	if cap(p.items) < n {
		p.items = make([]*Marker, 0, n)
	}
	for range n {
		p.items = append(p.items, build())
	}
	return n
}

// Clear forgets every pooled marker. Host renderables are left alone.
func (p *Pool) Clear() {
	clear(p.items)
	p.items = p.items[:0]
	p.head = 0
}
