package marker

import (
	"testing"

	"github.com/foothold/extension/pkg/core"
	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderable struct {
	active   bool
	position r3.Vector
	color    core.Color
}

func (r *fakeRenderable) SetActive(a bool)        { r.active = a }
func (r *fakeRenderable) SetPosition(p r3.Vector) { r.position = p }
func (r *fakeRenderable) SetColor(c core.Color)   { r.color = c }

type fakeFactory struct {
	created []*fakeRenderable
}

func (f *fakeFactory) CreateMarker(c core.Color) hostapi.Renderable {
	r := &fakeRenderable{active: true, color: c}
	f.created = append(f.created, r)
	return r
}

func newTestBank(t *testing.T, cat core.Category, capacity int) (*Bank, *fakeFactory) {
	t.Helper()
	f := &fakeFactory{}
	b := NewBank(cat, capacity)
	require.Equal(t, capacity, b.Rebuild(core.DefaultColor(cat), capacity, NewBuilder(f)))
	return b, f
}

func assertConserved(t *testing.T, b *Bank) {
	t.Helper()
	st := b.Status()
	assert.Equal(t, st.Constructed, st.Pool+st.Active, "pool + active must equal constructed")
	assert.LessOrEqual(t, st.Active, st.Capacity)
}

func TestBuilder_BuildsInactiveMarkers(t *testing.T) {
	f := &fakeFactory{}
	b := NewBuilder(f)

	m1 := b.Build(core.Standable, core.Green)
	m2 := b.Build(core.NonStandable, core.Magenta)

	assert.Equal(t, uint64(1), m1.ID())
	assert.Equal(t, uint64(2), m2.ID())
	assert.Equal(t, uint64(2), b.Built())
	assert.False(t, m1.Active())
	assert.Equal(t, 1.0, m1.Alpha())
	assert.Equal(t, core.Magenta, m2.Color())
	require.Len(t, f.created, 2)
	assert.False(t, f.created[0].active, "renderables start hidden")
}

func TestPool_CapacityThreeScenario(t *testing.T) {
	b, _ := newTestBank(t, core.Standable, 3)
	p := b.Pool()

	var got []*Marker
	for range 3 {
		m, ok := p.Acquire()
		require.True(t, ok)
		got = append(got, m)
	}
	_, ok := p.Acquire()
	assert.False(t, ok, "fourth acquire on an exhausted pool")

	require.NoError(t, p.Release(got[0]))
	m, ok := p.Acquire()
	assert.True(t, ok)
	assert.Same(t, got[0], m)
	_, ok = p.Acquire()
	assert.False(t, ok, "one release allows exactly one acquire")
}

func TestPool_FIFO(t *testing.T) {
	b, _ := newTestBank(t, core.NonStandable, 4)
	p := b.Pool()

	a, _ := p.Acquire()
	c, _ := p.Acquire()
	require.NoError(t, p.Release(c))
	require.NoError(t, p.Release(a))

	var ids []uint64
	for {
		m, ok := p.Acquire()
		if !ok {
			break
		}
		ids = append(ids, m.ID())
	}
	assert.Equal(t, []uint64{3, 4, 2, 1}, ids)
}

func TestPool_ReleaseErrors(t *testing.T) {
	b, _ := newTestBank(t, core.Standable, 2)
	other := NewBuilder(&fakeFactory{}).Build(core.NonStandable, core.Red)

	assert.ErrorIs(t, b.Pool().Release(other), ErrWrongCategory)

	extra := NewBuilder(&fakeFactory{}).Build(core.Standable, core.White)
	assert.ErrorIs(t, b.Pool().Release(extra), ErrPoolFull)
	assert.Equal(t, 2, b.Pool().Len())

	assert.NoError(t, b.Pool().Release(nil))
}

func TestPool_RefillClampsToCapacity(t *testing.T) {
	p := NewPool(core.Standable, 5)
	builder := NewBuilder(&fakeFactory{})
	build := func() *Marker { return builder.Build(core.Standable, core.White) }

	assert.Equal(t, 5, p.Refill(50, build))
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 2, p.Refill(2, build))
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 0, p.Refill(-1, build))

	p.Clear()
	assert.Zero(t, p.Len())
	assert.Equal(t, 1, NewPool(core.Standable, 0).Capacity())
}

func TestPool_ReleaseAfterWrapCompacts(t *testing.T) {
	b, _ := newTestBank(t, core.Standable, 3)
	p := b.Pool()
	for range 10 {
		m, ok := p.Acquire()
		require.True(t, ok)
		require.NoError(t, p.Release(m))
		assert.Equal(t, 3, p.Len())
	}
}

func TestBank_PlaceAndReturnAll(t *testing.T) {
	b, f := newTestBank(t, core.Standable, 3)

	placed := 0
	for i := range 5 {
		if b.Place(r3.Vector{X: float64(i)}) {
			placed++
		}
		assertConserved(t, b)
	}
	assert.Equal(t, 3, placed, "exhaustion is a silent skip")
	assert.Equal(t, 3, b.Active().Len())
	assert.True(t, f.created[2].active)
	assert.Equal(t, r3.Vector{X: 2}, f.created[2].position)

	assert.Equal(t, 3, b.ReturnAll())
	assertConserved(t, b)
	assert.Equal(t, 0, b.ReturnAll(), "second return-all is a no-op")
	assert.Equal(t, 3, b.Pool().Len())
	for _, r := range f.created {
		assert.False(t, r.active)
	}
}

func TestBank_Alpha(t *testing.T) {
	b, f := newTestBank(t, core.NonStandable, 2)
	require.True(t, b.Place(r3.Vector{}))

	b.SetAlpha(0.25)
	assert.InDelta(t, 0.25, f.created[0].color.A, 1e-6)
	assert.True(t, f.created[0].color.SameHue(core.Red))

	require.True(t, b.Place(r3.Vector{Y: 1}))
	assert.InDelta(t, 0.25, f.created[1].color.A, 1e-6, "new markers adopt the current alpha")

	b.SetAlpha(7)
	assert.Equal(t, 1.0, b.Alpha())
}

func TestBank_RebuildAndDiscard(t *testing.T) {
	b, f := newTestBank(t, core.Standable, 2)
	require.True(t, b.Place(r3.Vector{}))

	assert.Equal(t, 2, b.Rebuild(core.Green, 2, NewBuilder(f)))
	assert.Equal(t, core.Green, b.Color())
	assert.False(t, f.created[0].active, "active markers are hidden on rebuild")
	assert.Len(t, f.created, 4)
	assertConserved(t, b)

	m, _ := b.Pool().Acquire()
	assert.Equal(t, core.Green, m.Color())
	require.NoError(t, b.Pool().Release(m))

	b.Discard()
	assert.Equal(t, core.PoolStatus{Capacity: 2}, b.Status())
}

func TestActiveSet_DrainIsSnapshot(t *testing.T) {
	s := NewActiveSet(2)
	builder := NewBuilder(&fakeFactory{})
	m1 := builder.Build(core.Standable, core.White)
	m2 := builder.Build(core.Standable, core.White)
	s.Add(m1)
	s.Add(m2)

	var seen []uint64
	s.Each(func(m *Marker) { seen = append(seen, m.ID()) })
	assert.Equal(t, []uint64{1, 2}, seen)

	snap := s.Drain()
	assert.Equal(t, []*Marker{m1, m2}, snap)
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Drain())
}
