package viewer

import (
	"fmt"
	"sort"

	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/radiometric"
	"github.com/ironsheep/frameview/internal/viewport"
)

// Presets are named CT windows.
var Presets = map[string]viewport.Window{
	"ct-abdomen": {Center: 40, Width: 400},
	"ct-lung":    {Center: -600, Width: 1500},
	"ct-bone":    {Center: 400, Width: 1800},
	"ct-brain":   {Center: 40, Width: 80},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// update applies fn to the mapper and records the result in the history
// when the transform actually changed.
func (s *Session) update(fn func(m *viewport.Mapper) error) error {
	s.mu.Lock()
	if s.cache == nil {
		s.mu.Unlock()
		return ErrNoSeries
	}
	before := s.mapper.Transform()
	if err := fn(s.mapper); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := !before.Equal(s.mapper.Transform())
	if changed {
		s.commit()
	}
	s.mu.Unlock()

	if changed {
		s.changed()
	}
	return nil
}

// ZoomAt multiplies the zoom by factor, keeping the image point under the
// screen anchor in place.
func (s *Session) ZoomAt(factor float64, anchor geometry.Point) error {
	if factor <= 0 {
		return fmt.Errorf("zoom factor must be positive, got %v", factor)
	}
	return s.update(func(m *viewport.Mapper) error {
		m.ZoomAt(factor, anchor)
		return nil
	})
}

// Pan shifts the view by a screen-space delta.
func (s *Session) Pan(dx, dy float64) error {
	return s.update(func(m *viewport.Mapper) error {
		m.Pan(dx, dy)
		return nil
	})
}

// Rotate adds deg degrees of clockwise rotation.
func (s *Session) Rotate(deg float64) error {
	return s.update(func(m *viewport.Mapper) error {
		m.Rotate(deg)
		return nil
	})
}

// FlipH mirrors the image left to right.
func (s *Session) FlipH() error {
	return s.update(func(m *viewport.Mapper) error {
		t := m.Transform()
		t.FlipH = !t.FlipH
		m.Set(t)
		return nil
	})
}

// FlipV mirrors the image top to bottom.
func (s *Session) FlipV() error {
	return s.update(func(m *viewport.Mapper) error {
		t := m.Transform()
		t.FlipV = !t.FlipV
		m.Set(t)
		return nil
	})
}

// Invert toggles photometric inversion.
func (s *Session) Invert() error {
	return s.update(func(m *viewport.Mapper) error {
		t := m.Transform()
		t.Invert = !t.Invert
		m.Set(t)
		return nil
	})
}

// SetWindow overrides the frame window. The width is floored at
// radiometric.MinWidth.
func (s *Session) SetWindow(center, width float64) error {
	return s.update(func(m *viewport.Mapper) error {
		t := m.Transform()
		t.Window = &viewport.Window{Center: center, Width: radiometric.ClampWidth(width)}
		m.Set(t)
		return nil
	})
}

// ApplyPreset sets the window to a named preset.
func (s *Session) ApplyPreset(name string) error {
	w, ok := Presets[name]
	if !ok {
		return fmt.Errorf("unknown window preset %q", name)
	}
	return s.SetWindow(w.Center, w.Width)
}

// ResetWindow drops the window override so each frame uses its own default.
func (s *Session) ResetWindow() error {
	return s.update(func(m *viewport.Mapper) error {
		t := m.Transform()
		t.Window = nil
		m.Set(t)
		return nil
	})
}

// ResetView restores the fitted, unrotated, unflipped view and the default
// window.
func (s *Session) ResetView() error {
	return s.update(func(m *viewport.Mapper) error {
		m.Set(viewport.Identity())
		m.Fit()
		return nil
	})
}

// SetViewportSize records the size of the display surface. It is layout, not
// view state, so it is not recorded in the history.
func (s *Session) SetViewportSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid viewport size %dx%d", w, h)
	}
	s.mu.Lock()
	s.mapper.SetViewportSize(w, h)
	s.mu.Unlock()
	s.changed()
	return nil
}
