package annotation

import (
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestNewPalette(t *testing.T) {
	p, err := NewPalette(DefaultColor, DefaultSelectedColor)
	if err != nil {
		t.Fatalf("NewPalette failed: %v", err)
	}

	seen := make(map[string]Type)
	for _, typ := range Types {
		hex := p.For(typ)
		if _, err := colorful.Hex(hex); err != nil {
			t.Errorf("%s: invalid color %q", typ, hex)
		}
		if other, dup := seen[hex]; dup {
			t.Errorf("%s and %s share color %s", typ, other, hex)
		}
		seen[hex] = typ
	}

	if p.Selected() != "#00e5ff" {
		t.Errorf("selected: got %s", p.Selected())
	}
	if h := p.Highlight(p.For(Length)); h == p.For(Length) {
		t.Error("highlight should differ from the base color")
	}
}

func TestNewPalette_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		base, selHex string
	}{
		{"bad base", "yellow", DefaultSelectedColor},
		{"bad selection", DefaultColor, "#12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPalette(tt.base, tt.selHex); err == nil {
				t.Error("NewPalette should fail")
			}
		})
	}
}
