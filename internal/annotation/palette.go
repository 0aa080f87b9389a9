package annotation

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Default annotation colors.
const (
	DefaultColor         = "#FFD400"
	DefaultSelectedColor = "#00E5FF"
)

// Palette assigns display colors to annotation types and derives the
// selection highlight.
type Palette struct {
	base     colorful.Color
	selected colorful.Color
	byType   map[Type]colorful.Color
}

// NewPalette builds a palette from hex colors. Each type gets the base color
// rotated around the HCL hue circle so types stay distinguishable at equal
// lightness.
func NewPalette(baseHex, selectedHex string) (*Palette, error) {
	base, err := colorful.Hex(baseHex)
	if err != nil {
		return nil, fmt.Errorf("annotation color %q: %w", baseHex, err)
	}
	sel, err := colorful.Hex(selectedHex)
	if err != nil {
		return nil, fmt.Errorf("selected color %q: %w", selectedHex, err)
	}

	p := &Palette{base: base, selected: sel, byType: make(map[Type]colorful.Color, len(Types))}
	h, c, l := base.Hcl()
	step := 360.0 / float64(len(Types))
	for i, t := range Types {
		hue := math.Mod(h+float64(i)*step, 360)
		p.byType[t] = colorful.Hcl(hue, c, l).Clamped()
	}
	return p, nil
}

// MustPalette is NewPalette for known-good constants.
func MustPalette(baseHex, selectedHex string) *Palette {
	p, err := NewPalette(baseHex, selectedHex)
	if err != nil {
		panic(err)
	}
	return p
}

// For returns the hex color for type t.
func (p *Palette) For(t Type) string {
	if c, ok := p.byType[t]; ok {
		return c.Hex()
	}
	return p.base.Hex()
}

// Highlight returns the display color of a selected annotation drawn in
// hex, blended toward the selection color in Lab space.
func (p *Palette) Highlight(hex string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return p.selected.Hex()
	}
	return c.BlendLab(p.selected, 0.65).Clamped().Hex()
}

// Selected returns the selection color.
func (p *Palette) Selected() string {
	return p.selected.Hex()
}
