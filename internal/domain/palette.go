package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColor is returned for a color name missing from the palette.
var ErrUnknownColor = errors.New("unknown color")

// Color is one named palette entry.
type Color struct {
	Name string
	Hex  string
}

// Palette maps symbolic color names to display colors and lists the
// categories offered to users.
type Palette struct {
	// Colors in display order.
	Colors []Color

	// Default is used when a highlight is created without a color.
	Default string

	// Categories always contains UncategorizedCategory.
	Categories []string

	// Source is where the palette came from ("builtin" or a file path).
	Source string
}

// DefaultPalette returns the built-in palette.
func DefaultPalette() *Palette {
	return &Palette{
		Colors: []Color{
			{Name: "yellow", Hex: "#ffeb3b"},
			{Name: "green", Hex: "#a5d6a7"},
			{Name: "blue", Hex: "#90caf9"},
			{Name: "pink", Hex: "#f48fb1"},
			{Name: "orange", Hex: "#ffcc80"},
			{Name: "purple", Hex: "#ce93d8"},
		},
		Default:    "yellow",
		Categories: []string{UncategorizedCategory},
		Source:     "builtin",
	}
}

// Resolve returns the hex value for a color name.
// An empty name resolves to the default color.
func (p *Palette) Resolve(name string) (Color, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = p.Default
	}
	for _, c := range p.Colors {
		if c.Name == name {
			return c, nil
		}
	}
	return Color{}, fmt.Errorf("%w %q", ErrUnknownColor, name)
}

// HasCategory reports whether category is offered by the palette.
func (p *Palette) HasCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}
