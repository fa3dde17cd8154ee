package scan

import (
	"fmt"

	"github.com/golang/geo/r3"
)

const (
	// PartitionQuantum is the number of samples one Step projects.
	PartitionQuantum = 5000
	// PlacementQuantum is the number of samples one Step visits.
	PlacementQuantum = 1000
)

// Phase is the position of a Task in its pipeline.
type Phase uint8

const (
	PhasePartition Phase = iota
	PhaseVisible
	PhaseHidden
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePartition:
		return "partition"
	case PhaseVisible:
		return "visible"
	case PhaseHidden:
		return "hidden"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Task is a resumable scan. Each Step does one bounded quantum of work and
// returns; the caller steps it once per frame until Done.
//
// The first steps partition the samples into visible and hidden lists. The
// remaining steps hand visible samples to the visit function first, then
// hidden ones; a placement step may cross from the visible to the hidden list.
type Task struct {
	planner *Planner
	focal   r3.Vector
	vp      Viewport
	visit   func(r3.Vector)

	phase     Phase
	cursor    int
	visible   []r3.Vector
	hidden    []r3.Vector
	processed int
	steps     int
	cancelled bool
}

// NewTask returns an idle task bound to a planner. Call Start to begin a scan.
// The partition buffers are reused across scans.
func NewTask(p *Planner) *Task {
	return &Task{
		planner: p,
		phase:   PhaseDone,
		visible: make([]r3.Vector, 0, p.Count()),
		hidden:  make([]r3.Vector, 0, p.Count()),
	}
}

// Start resets the task for a scan around focal. visit is called once per sample.
func (t *Task) Start(focal r3.Vector, vp Viewport, visit func(r3.Vector)) {
	t.focal = focal
	t.vp = vp
	t.visit = visit
	t.phase = PhasePartition
	t.cursor = 0
	t.visible = t.visible[:0]
	t.hidden = t.hidden[:0]
	t.processed = 0
	t.steps = 0
	t.cancelled = false
}

// Step performs one quantum and reports whether the task is finished.
func (t *Task) Step() bool {
	if t.phase == PhaseDone {
		return true
	}
	t.steps++

	if t.phase == PhasePartition {
		offsets := t.planner.offsets
		end := min(t.cursor+PartitionQuantum, len(offsets))
		t.visible, t.hidden = partitionAround(t.focal, offsets[t.cursor:end], t.vp, t.visible, t.hidden)
		t.cursor = end
		if t.cursor == len(offsets) {
			t.phase = PhaseVisible
			t.cursor = 0
			t.settle()
		}
		return t.phase == PhaseDone
	}

	for budget := PlacementQuantum; budget > 0 && t.phase != PhaseDone; budget-- {
		list := t.visible
		if t.phase == PhaseHidden {
			list = t.hidden
		}
		t.visit(list[t.cursor])
		t.cursor++
		t.processed++
		t.settle()
	}
	return t.phase == PhaseDone
}

// settle moves past exhausted lists.
func (t *Task) settle() {
	if t.phase == PhaseVisible && t.cursor >= len(t.visible) {
		t.phase = PhaseHidden
		t.cursor = 0
	}
	if t.phase == PhaseHidden && t.cursor >= len(t.hidden) {
		t.phase = PhaseDone
	}
}

// Cancel stops the task; later Steps do nothing.
func (t *Task) Cancel() {
	if t.phase != PhaseDone {
		t.cancelled = true
	}
	t.phase = PhaseDone
}

func (t *Task) Phase() Phase     { return t.phase }
func (t *Task) Done() bool       { return t.phase == PhaseDone }
func (t *Task) Cancelled() bool  { return t.cancelled }
func (t *Task) Steps() int       { return t.steps }
func (t *Task) Processed() int   { return t.processed }
func (t *Task) Focal() r3.Vector { return t.focal }
func (t *Task) Visible() int     { return len(t.visible) }
func (t *Task) Hidden() int      { return len(t.hidden) }
func (t *Task) Total() int       { return t.planner.Count() }
