package marker

// ActiveSet holds the displayed markers of one category in placement order.
type ActiveSet struct {
	items []*Marker
}

// preallocLimit caps the slice preallocated by NewActiveSet; larger sets grow
// on demand.
const preallocLimit = 4096

func NewActiveSet(capacity int) *ActiveSet {
	return &ActiveSet{items: make([]*Marker, 0, min(max(capacity, 0), preallocLimit))}
}

func (s *ActiveSet) Add(m *Marker) {
	s.items = append(s.items, m)
}

func (s *ActiveSet) Len() int {
	return len(s.items)
}

// Each calls fn for every active marker in placement order. fn must not
// modify the set.
func (s *ActiveSet) Each(fn func(*Marker)) {
	for _, m := range s.items {
		fn(m)
	}
}

// Drain empties the set and returns a snapshot of what it held, so callers
// can move markers elsewhere while iterating.
func (s *ActiveSet) Drain() []*Marker {
	if len(s.items) == 0 {
		return nil
	}
	out := make([]*Marker, len(s.items))
	copy(out, s.items)
	clear(s.items)
	s.items = s.items[:0]
	return out
}
