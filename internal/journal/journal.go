// Package journal keeps a session log of finished scans. Reports are
// converted to Entry rows on the tick goroutine and written to a Backend by
// a background writer.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/foothold/extension/pkg/core"
	"github.com/golang/geo/r3"
	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// Backend is the interface all journal stores must satisfy.
type Backend interface {
	Init() error
	Close() error

	// Write appends entries and assigns their IDs.
	Write(entries []Entry) error
	// Entries returns every entry of a session in write order.
	Entries(session string) ([]Entry, error)
}

// Entry is one journaled scan.
type Entry struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	CreatedAt  time.Time      `json:"createdAt"`
	Session    string         `json:"session" gorm:"size:36;index:idx_journal_session"`
	ScanID     string         `json:"scanId" gorm:"size:36;uniqueIndex"`
	Scene      string         `json:"scene" gorm:"size:127"`
	Mode       string         `json:"mode" gorm:"size:16"`
	ScanMode   string         `json:"scanMode" gorm:"size:16"`
	Focal      string         `json:"focal" gorm:"size:127"` // WKT POINT Z
	StartedAt  float64        `json:"startedAt"`             // host seconds
	FinishedAt float64        `json:"finishedAt"`
	WallMs     float64        `json:"wallMs"`
	Steps      int            `json:"steps"`
	Samples    int            `json:"samples"`
	Visible    int            `json:"visible"`
	Hidden     int            `json:"hidden"`
	NoHit      int            `json:"noHit"`
	Summary    datatypes.JSON `json:"summary"`
	Cancelled  bool           `json:"cancelled"`
}

func (*Entry) TableName() string {
	return "scan_journal"
}

// CategorySummary is the per-category part of Entry.Summary.
type CategorySummary struct {
	Placed  int `json:"placed"`
	Dropped int `json:"dropped"`
}

// Summary is stored as JSON in Entry.Summary.
type Summary struct {
	Standable    CategorySummary `json:"standable"`
	NonStandable CategorySummary `json:"nonStandable"`
}

// NewEntry converts a scan report.
func NewEntry(session string, r core.ScanReport) (Entry, error) {
	summary, err := json.Marshal(Summary{
		Standable:    CategorySummary{Placed: r.Placed.Standable, Dropped: r.Dropped.Standable},
		NonStandable: CategorySummary{Placed: r.Placed.NonStandable, Dropped: r.Dropped.NonStandable},
	})
	if err != nil {
		return Entry{}, fmt.Errorf("encoding summary: %w", err)
	}

	return Entry{
		Session:    session,
		ScanID:     r.ID.String(),
		Scene:      r.Scene,
		Mode:       r.Mode.String(),
		ScanMode:   r.ScanMode.String(),
		Focal:      FocalWKT(r.Focal),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		WallMs:     float64(r.Wall) / float64(time.Millisecond),
		Steps:      r.Steps,
		Samples:    r.Samples,
		Visible:    r.Visible,
		Hidden:     r.Hidden,
		NoHit:      r.NoHit,
		Summary:    datatypes.JSON(summary),
		Cancelled:  r.Cancelled,
	}, nil
}

// FocalWKT encodes a focal point as a WKT POINT Z.
func FocalWKT(v r3.Vector) string {
	pt := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: v.X, Y: v.Y}, Z: v.Z, Type: geom.DimXYZ})
	return pt.AsText()
}

// FocalPoint decodes Entry.Focal.
func (e Entry) FocalPoint() (r3.Vector, error) {
	g, err := geom.UnmarshalWKT(e.Focal)
	if err != nil {
		return r3.Vector{}, fmt.Errorf("decoding focal point: %w", err)
	}
	if !g.IsPoint() {
		return r3.Vector{}, fmt.Errorf("decoding focal point: %s is not a point", g.Type())
	}
	c, ok := g.MustAsPoint().Coordinates()
	if !ok {
		return r3.Vector{}, fmt.Errorf("decoding focal point: empty point")
	}
	return r3.Vector{X: c.X, Y: c.Y, Z: c.Z}, nil
}

// DecodeSummary decodes Entry.Summary.
func (e Entry) DecodeSummary() (Summary, error) {
	var s Summary
	if err := json.Unmarshal(e.Summary, &s); err != nil {
		return s, fmt.Errorf("decoding summary: %w", err)
	}
	return s, nil
}
