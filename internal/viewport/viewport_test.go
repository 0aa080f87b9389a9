package viewport

import (
	"math"
	"testing"

	"github.com/ironsheep/frameview/internal/geometry"
)

func near(a, b geometry.Point, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
	}{
		{"identity", Identity()},
		{"panned", Transform{X: 37, Y: -12, Scale: 1}},
		{"zoomed", Transform{X: 5, Y: 9, Scale: 2.5}},
		{"rotated", Transform{Scale: 1.3, Rotation: 33}},
		{"flipped", Transform{Scale: 0.7, FlipH: true, FlipV: true, Rotation: 270}},
	}

	points := []geometry.Point{
		geometry.Pt(0, 0), geometry.Pt(511, 511), geometry.Pt(100.25, 7.5), geometry.Pt(256, 0),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(512, 512, 800, 600, 0, 0)
			m.Set(tt.tr)
			for _, p := range points {
				back := m.ImageToScreen(m.ScreenToImage(p))
				if !near(back, p, 1e-6) {
					t.Errorf("screen round trip of %v: got %v", p, back)
				}
				img := m.ScreenToImage(m.ImageToScreen(p))
				if !near(img, p, 1e-6) {
					t.Errorf("image round trip of %v: got %v", p, img)
				}
			}
		})
	}
}

func TestIdentityCentersImage(t *testing.T) {
	m := New(100, 50, 300, 200, 0, 0)
	got := m.ImageToScreen(geometry.Pt(50, 25))
	if !near(got, geometry.Pt(150, 100), 1e-9) {
		t.Errorf("image center maps to %v, want (150,100)", got)
	}
}

func TestFlipH(t *testing.T) {
	m := New(100, 100, 100, 100, 0, 0)
	m.Set(Transform{Scale: 1, FlipH: true})
	got := m.ImageToScreen(geometry.Pt(10, 20))
	if !near(got, geometry.Pt(90, 20), 1e-9) {
		t.Errorf("flipped point: got %v, want (90,20)", got)
	}
}

func TestScaleClamped(t *testing.T) {
	m := New(10, 10, 10, 10, 0, 0)
	m.Set(Transform{Scale: 0})
	if m.Scale() != DefaultMinScale {
		t.Errorf("Scale: got %v, want %v", m.Scale(), DefaultMinScale)
	}
	m.Set(Transform{Scale: -4})
	if m.Scale() <= 0 {
		t.Errorf("Scale must stay positive, got %v", m.Scale())
	}

	capped := New(10, 10, 10, 10, 0.5, 4)
	capped.Set(Transform{Scale: 10})
	if capped.Scale() != 4 {
		t.Errorf("Scale: got %v, want 4", capped.Scale())
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	m := New(512, 512, 512, 512, 0, 0)
	anchor := geometry.Pt(100, 300)
	before := m.ScreenToImage(anchor)
	m.ZoomAt(2, anchor)
	after := m.ScreenToImage(anchor)
	if !near(before, after, 1e-9) {
		t.Errorf("anchor drifted: before %v, after %v", before, after)
	}
	if m.Scale() != 2 {
		t.Errorf("Scale: got %v, want 2", m.Scale())
	}
}

func TestRotateNormalizes(t *testing.T) {
	m := New(10, 10, 10, 10, 0, 0)
	m.Rotate(-90)
	if got := m.Transform().Rotation; got != 270 {
		t.Errorf("Rotation: got %v, want 270", got)
	}
	m.Rotate(450)
	if got := m.Transform().Rotation; got != 0 {
		t.Errorf("Rotation: got %v, want 0", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tr := Transform{Scale: 1, Window: &Window{Center: 40, Width: 400}}
	c := tr.Clone()
	c.Window.Width = 10
	if tr.Window.Width != 400 {
		t.Error("Clone shares the window override")
	}
	if tr.Equal(c) {
		t.Error("Equal should report differing windows")
	}
}

func TestFit(t *testing.T) {
	m := New(512, 256, 256, 256, 0, 0)
	m.Pan(10, 10)
	m.Fit()
	tr := m.Transform()
	if tr.Scale != 0.5 || tr.X != 0 || tr.Y != 0 {
		t.Errorf("Fit: got %+v", tr)
	}
}
