package core

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

// CategoryCounts holds one counter per marker category.
type CategoryCounts struct {
	Standable    int `json:"standable"`
	NonStandable int `json:"nonStandable"`
}

// Add increments the counter of cat by n.
func (c *CategoryCounts) Add(cat Category, n int) {
	if cat == NonStandable {
		c.NonStandable += n
		return
	}
	c.Standable += n
}

// Get returns the counter of cat.
func (c CategoryCounts) Get(cat Category) int {
	if cat == NonStandable {
		return c.NonStandable
	}
	return c.Standable
}

// Total returns the sum over both categories.
func (c CategoryCounts) Total() int {
	return c.Standable + c.NonStandable
}

// ScanReport summarises one completed (or cancelled) scan.
type ScanReport struct {
	ID       uuid.UUID
	Scene    string
	Mode     Mode
	ScanMode ScanMode
	Focal    r3.Vector

	// StartedAt and FinishedAt are host clock seconds.
	StartedAt  float64
	FinishedAt float64
	// Wall is the real time spent inside scan steps.
	Wall time.Duration

	Steps     int
	Samples   int
	Visible   int
	Hidden    int
	NoHit     int
	Placed    CategoryCounts
	Dropped   CategoryCounts
	Cancelled bool
}

// PoolStatus is the occupancy of one marker category.
type PoolStatus struct {
	Pool        int `json:"pool"`
	Active      int `json:"active"`
	Constructed int `json:"constructed"`
	Capacity    int `json:"capacity"`
}

// Status is a read-only snapshot of the controller, safe to hand to other goroutines.
type Status struct {
	Scene        string     `json:"scene"`
	SceneActive  bool       `json:"sceneActive"`
	CameraReady  bool       `json:"cameraReady"`
	Mode         Mode       `json:"mode"`
	State        State      `json:"state"`
	Scanning     bool       `json:"scanning"`
	Alpha        float64    `json:"alpha"`
	Standable    PoolStatus `json:"standable"`
	NonStandable PoolStatus `json:"nonStandable"`
	ScansRun     int        `json:"scansRun"`
}

// Pool returns the pool status of cat.
func (s Status) Pool(cat Category) PoolStatus {
	if cat == NonStandable {
		return s.NonStandable
	}
	return s.Standable
}
