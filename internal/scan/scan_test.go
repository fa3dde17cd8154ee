package scan

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfSpace sees every point with X >= 0.
type halfSpace struct{}

func (halfSpace) WorldToViewport(p r3.Vector) r3.Vector {
	if p.X >= 0 {
		return r3.Vector{X: 0.5, Y: 0.5, Z: 1}
	}
	return r3.Vector{X: -0.5, Y: 0.5, Z: 1}
}

func TestPlanner_DefaultCount(t *testing.T) {
	p := NewPlanner(DefaultGrid)
	assert.Equal(t, 35301, p.Count())
	assert.Equal(t, DefaultGrid, p.Grid())
}

func TestPlanner_FocalIndependence(t *testing.T) {
	p := NewPlanner(DefaultGrid)
	for _, focal := range []r3.Vector{{}, {X: 1234.5, Y: -7, Z: 0.25}, {X: -1e4, Y: 1e4, Z: 3}} {
		pts := p.Plan(focal)
		require.Len(t, pts, 35301)
		assert.Equal(t, focal.Add(r3.Vector{X: -10, Y: -10, Z: -10}), pts[0])
		assert.Equal(t, focal.Add(r3.Vector{X: -10, Y: -10, Z: -9.5}), pts[1])
		assert.Equal(t, focal.Add(r3.Vector{X: 10, Y: 10, Z: 10}), pts[len(pts)-1])
	}
}

func TestPlanner_OrderXThenYThenZ(t *testing.T) {
	p := NewPlanner(Grid{Bound: 1, Step: 1, VerticalStep: 2})
	want := []r3.Vector{
		{X: -1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 0}, {X: -1, Y: -1, Z: 1},
		{X: -1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: 0}, {X: -1, Y: 1, Z: 1},
		{X: 0, Y: -1, Z: -1}, {X: 0, Y: -1, Z: 0}, {X: 0, Y: -1, Z: 1},
		{X: 0, Y: 1, Z: -1}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 1},
		{X: 1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: 0}, {X: 1, Y: -1, Z: 1},
		{X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 1},
	}
	if diff := cmp.Diff(want, p.Plan(r3.Vector{})); diff != "" {
		t.Errorf("plan order mismatch (-want +got):\n%s", diff)
	}

	var each []r3.Vector
	p.Each(r3.Vector{}, func(v r3.Vector) { each = append(each, v) })
	assert.Equal(t, want, each)
}

func TestPlanner_DegenerateGrid(t *testing.T) {
	assert.Zero(t, NewPlanner(Grid{Bound: 1, Step: 0, VerticalStep: 1}).Count())
	assert.Equal(t, 1, NewPlanner(Grid{Bound: 0, Step: 1, VerticalStep: 1}).Count())
}

func TestInView(t *testing.T) {
	assert.True(t, InView(r3.Vector{X: 0, Y: 1, Z: 0.1}))
	assert.True(t, InView(r3.Vector{X: 1, Y: 0, Z: 50}))
	assert.False(t, InView(r3.Vector{X: 0.5, Y: 0.5, Z: 0}), "on the camera plane")
	assert.False(t, InView(r3.Vector{X: 0.5, Y: 0.5, Z: -1}), "behind the camera")
	assert.False(t, InView(r3.Vector{X: 1.01, Y: 0.5, Z: 1}))
	assert.False(t, InView(r3.Vector{X: 0.5, Y: -0.01, Z: 1}))
}

func TestPartition_KeepsOrder(t *testing.T) {
	pts := []r3.Vector{{X: -1}, {X: 2}, {X: 0}, {X: -3}, {X: 5}}
	visible, hidden := Partition(pts, halfSpace{})

	if diff := cmp.Diff([]r3.Vector{{X: 2}, {X: 0}, {X: 5}}, visible); diff != "" {
		t.Errorf("visible (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]r3.Vector{{X: -1}, {X: -3}}, hidden); diff != "" {
		t.Errorf("hidden (-want +got):\n%s", diff)
	}
}

func TestTask_DefaultGridStepCount(t *testing.T) {
	task := NewTask(NewPlanner(DefaultGrid))
	assert.True(t, task.Done(), "a new task is idle")

	var visited []r3.Vector
	task.Start(r3.Vector{}, halfSpace{}, func(v r3.Vector) { visited = append(visited, v) })
	require.Equal(t, PhasePartition, task.Phase())

	for range 7 {
		require.False(t, task.Step())
		assert.Equal(t, PhasePartition, task.Phase())
	}
	require.False(t, task.Step())
	assert.Equal(t, PhaseVisible, task.Phase(), "partition yields before placing")
	assert.Equal(t, 21*21*41, task.Visible())
	assert.Equal(t, 20*21*41, task.Hidden())
	assert.Empty(t, visited)

	steps := task.Steps()
	for !task.Step() {
	}
	assert.Equal(t, 44, task.Steps())
	assert.Equal(t, 36, task.Steps()-steps)
	assert.Equal(t, 35301, task.Processed())
	assert.False(t, task.Cancelled())
	require.Len(t, visited, 35301)

	for i, v := range visited {
		if i < task.Visible() {
			require.GreaterOrEqual(t, v.X, 0.0, "visible samples first")
		} else {
			require.Less(t, v.X, 0.0)
		}
	}
	assert.True(t, task.Step(), "stepping a finished task is a no-op")
	assert.Equal(t, 44, task.Steps())
}

func TestTask_MatchesOneShotPartition(t *testing.T) {
	p := NewPlanner(Grid{Bound: 3, Step: 0.5, VerticalStep: 1})
	focal := r3.Vector{X: -0.75, Y: 2, Z: 4}

	visible, hidden := Partition(p.Plan(focal), halfSpace{})
	want := append(visible, hidden...)

	var got []r3.Vector
	task := NewTask(p)
	task.Start(focal, halfSpace{}, func(v r3.Vector) { got = append(got, v) })
	for !task.Step() {
	}

	assert.Equal(t, len(visible), task.Visible())
	assert.Equal(t, len(hidden), task.Hidden())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("visit order (-want +got):\n%s", diff)
	}
}

func TestTask_PlacementCrossesBoundary(t *testing.T) {
	task := NewTask(NewPlanner(DefaultGrid))
	visited := 0
	task.Start(r3.Vector{}, halfSpace{}, func(r3.Vector) { visited++ })

	for task.Phase() == PhasePartition {
		task.Step()
	}
	for range 18 {
		task.Step()
	}
	assert.Equal(t, 18000, visited)
	assert.Equal(t, PhaseVisible, task.Phase())

	task.Step()
	assert.Equal(t, 19000, visited, "one quantum spans both lists")
	assert.Equal(t, PhaseHidden, task.Phase())
}

func TestTask_ExactQuantumFinishesWithoutEmptyStep(t *testing.T) {
	// 10 x 10 x 10 samples, exactly one placement quantum
	p := NewPlanner(Grid{Bound: 4.5, Step: 1, VerticalStep: 1})
	require.Equal(t, PlacementQuantum, p.Count())

	task := NewTask(p)
	task.Start(r3.Vector{}, halfSpace{}, func(r3.Vector) {})
	assert.False(t, task.Step())
	assert.True(t, task.Step())
	assert.Equal(t, 2, task.Steps())
}

func TestTask_Cancel(t *testing.T) {
	task := NewTask(NewPlanner(DefaultGrid))
	visited := 0
	task.Start(r3.Vector{X: 3}, halfSpace{}, func(r3.Vector) { visited++ })

	for range 10 {
		task.Step()
	}
	task.Cancel()
	assert.True(t, task.Cancelled())
	assert.Equal(t, PhaseDone, task.Phase())

	before := visited
	assert.True(t, task.Step())
	assert.Equal(t, before, visited)

	task.Start(r3.Vector{}, halfSpace{}, func(r3.Vector) { visited++ })
	assert.False(t, task.Cancelled(), "start resets the task")
	assert.Zero(t, task.Processed())
	assert.Equal(t, r3.Vector{}, task.Focal())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "partition", PhasePartition.String())
	assert.Equal(t, "done", PhaseDone.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
