package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a mode name does not match any activation mode.
var ErrUnknownMode = errors.New("unknown activation mode")

// ErrUnknownScanMode is returned when a scan mode name is not recognised.
var ErrUnknownScanMode = errors.New("unknown scan mode")

// Category is the visual category of a marker.
type Category uint8

const (
	Standable Category = iota
	NonStandable
)

// Categories lists every marker category in display order.
var Categories = [...]Category{Standable, NonStandable}

func (c Category) String() string {
	switch c {
	case Standable:
		return "standable"
	case NonStandable:
		return "nonStandable"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Classification is the outcome of a single ground probe.
type Classification uint8

const (
	NoHit Classification = iota
	ClassStandable
	ClassNonStandable
)

func (c Classification) String() string {
	switch c {
	case NoHit:
		return "noHit"
	case ClassStandable:
		return "standable"
	case ClassNonStandable:
		return "nonStandable"
	default:
		return fmt.Sprintf("classification(%d)", uint8(c))
	}
}

// Category maps a hit classification to the marker category that displays it.
// ok is false for NoHit.
func (c Classification) Category() (cat Category, ok bool) {
	switch c {
	case ClassStandable:
		return Standable, true
	case ClassNonStandable:
		return NonStandable, true
	default:
		return 0, false
	}
}

// Mode selects how the activation key behaves.
type Mode uint8

const (
	// Toggle: press once to show the markers, press again to hide them.
	Toggle Mode = iota
	// FadeAway: every press rescans; markers fade out 3 seconds after the scan started.
	FadeAway
	// Trigger: every press rescans; markers stay until the next press.
	Trigger
)

func (m Mode) String() string {
	switch m {
	case Toggle:
		return "toggle"
	case FadeAway:
		return "fadeAway"
	case Trigger:
		return "trigger"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses a mode name case-insensitively. "fade", "fade_away" and
// "fadeaway" all select FadeAway.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "toggle":
		return Toggle, nil
	case "fadeaway", "fade":
		return FadeAway, nil
	case "trigger":
		return Trigger, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// ScanMode selects between the blocking scan and the time-sliced scan.
type ScanMode uint8

const (
	TimeSliced ScanMode = iota
	Immediate
)

func (m ScanMode) String() string {
	if m == Immediate {
		return "immediate"
	}
	return "timeSliced"
}

// ParseScanMode parses "timeSliced" or "immediate", case-insensitively.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timesliced", "sliced", "":
		return TimeSliced, nil
	case "immediate", "blocking":
		return Immediate, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScanMode, s)
}

// State is the lifecycle state of the visualization controller.
type State uint8

const (
	Idle State = iota
	ScanInProgress
	Displaying
	FadingOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ScanInProgress:
		return "scanInProgress"
	case Displaying:
		return "displaying"
	case FadingOut:
		return "fadingOut"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// MarshalText renders the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
