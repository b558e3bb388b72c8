package palette

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/hilite/internal/domain"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Mapper converts a palette file to a domain.Palette
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapPalette validates config and builds the palette.
// Invalid colors are skipped; a palette without any valid color is an error.
func (m *Mapper) MapPalette(config *FileConfig, source string) (*domain.Palette, error) {
	if config == nil {
		return nil, fmt.Errorf("empty palette config")
	}

	p := &domain.Palette{Source: source}

	seen := make(map[string]bool, len(config.Colors))
	for _, c := range config.Colors {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		hex := strings.ToLower(strings.TrimSpace(c.Hex))
		if name == "" || seen[name] || !hexColor.MatchString(hex) {
			continue
		}
		seen[name] = true
		p.Colors = append(p.Colors, domain.Color{Name: name, Hex: hex})
	}

	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no valid colors found in palette config")
	}

	// Default falls back to the first color
	p.Default = strings.ToLower(strings.TrimSpace(config.Default))
	if !seen[p.Default] {
		p.Default = p.Colors[0].Name
	}

	p.Categories = mapCategories(config.Categories)

	return p, nil
}

// mapCategories trims and dedups categories, keeping the uncategorized
// sentinel first.
func mapCategories(raw []string) []string {
	out := []string{domain.UncategorizedCategory}
	seen := map[string]bool{domain.UncategorizedCategory: true}
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
