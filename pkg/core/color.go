package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColor is returned when a color name is not one of the offered choices.
var ErrUnknownColor = errors.New("unknown marker color")

// Color is a linear RGBA color with components in [0,1].
type Color struct {
	R, G, B, A float32
}

// Named marker colors.
var (
	White   = Color{R: 1, G: 1, B: 1, A: 1}
	Green   = Color{R: 0, G: 1, B: 0, A: 1}
	Red     = Color{R: 1, G: 0, B: 0, A: 1}
	Magenta = Color{R: 1, G: 0, B: 1, A: 1}
)

// WithAlpha returns c with its alpha replaced by a, clamped to [0,1].
func (c Color) WithAlpha(a float64) Color {
	switch {
	case a < 0:
		a = 0
	case a > 1:
		a = 1
	}
	c.A = float32(a)
	return c
}

// SameHue reports whether two colors are equal when alpha is ignored.
func (c Color) SameHue(o Color) bool {
	return c.R == o.R && c.G == o.G && c.B == o.B
}

func (c Color) String() string {
	return fmt.Sprintf("rgba(%.2f,%.2f,%.2f,%.2f)", c.R, c.G, c.B, c.A)
}

// standableChoices and nonStandableChoices are the colors an operator can pick
// per category. The first entry of each is the default.
var (
	standableChoices    = []string{"white", "green"}
	nonStandableChoices = []string{"red", "magenta"}
)

var namedColors = map[string]Color{
	"white":   White,
	"green":   Green,
	"red":     Red,
	"magenta": Magenta,
}

// ParseCategoryColor resolves the configured color name for a marker category.
// Only the two choices offered for that category are accepted.
func ParseCategoryColor(cat Category, name string) (Color, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	choices := standableChoices
	if cat == NonStandable {
		choices = nonStandableChoices
	}
	for _, choice := range choices {
		if choice == name {
			return namedColors[name], nil
		}
	}
	return Color{}, fmt.Errorf("%w: %q for %s markers (want one of %v)", ErrUnknownColor, name, cat, choices)
}

// DefaultColor returns the default marker color of a category.
func DefaultColor(cat Category) Color {
	if cat == NonStandable {
		return Red
	}
	return White
}
