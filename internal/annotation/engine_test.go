package annotation

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/pixeldata"
	"github.com/ironsheep/frameview/internal/radiometric"
)

// ctFrame is a 512x512 unsigned CT frame of constant raw value 1064
// (40 HU with intercept -1024).
func ctFrame(spacing [2]float64) *pixeldata.Frame {
	f := &pixeldata.Frame{
		InstanceID:   "inst-1",
		Width:        512,
		Height:       512,
		Unsigned:     make([]uint16, 512*512),
		Slope:        1,
		Intercept:    -1024,
		WindowCenter: 40,
		WindowWidth:  400,
		PixelSpacing: spacing,
	}
	for i := range f.Unsigned {
		f.Unsigned[i] = 1064
	}
	return f
}

func newTestEngine(t *testing.T, spacing [2]float64) *Engine {
	t.Helper()
	n := 0
	e := New(Options{NewID: func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}})
	e.SetRaster("inst-1", radiometric.NewSampler(ctFrame(spacing)))
	return e
}

// dragPath performs down at the first point, moves through the rest and
// releases at the last.
func dragPath(e *Engine, tool Type, pts ...geometry.Point) Change {
	e.SetTool(tool)
	e.PointerDown(pts[0], 1)
	for _, p := range pts[1:] {
		e.PointerMove(p, 1)
	}
	return e.PointerUp(pts[len(pts)-1], 1)
}

// clicks performs a down/up pair at each point.
func clicks(e *Engine, tool Type, pts ...geometry.Point) Change {
	e.SetTool(tool)
	var c Change
	for _, p := range pts {
		e.PointerMove(p, 1)
		e.PointerDown(p, 1)
		c = e.PointerUp(p, 1)
	}
	return c
}

func only(t *testing.T, e *Engine) Annotation {
	t.Helper()
	list := e.Annotations()
	if len(list) != 1 {
		t.Fatalf("annotations: got %d, want 1", len(list))
	}
	return list[0]
}

func TestLength(t *testing.T) {
	tests := []struct {
		name    string
		spacing [2]float64
		label   string
		length  float64
	}{
		{"with spacing", [2]float64{0.5, 0.5}, "50.0 mm", 50},
		{"without spacing", [2]float64{}, "100.0 px", 100},
		{"anisotropic", [2]float64{2, 0.5}, "50.0 mm", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.spacing)
			if c := dragPath(e, Length, geometry.Pt(0, 0), geometry.Pt(100, 0)); c != Committed {
				t.Fatalf("change: got %v, want committed", c)
			}
			a := only(t, e)
			if a.Label() != tt.label {
				t.Errorf("label: got %q, want %q", a.Label(), tt.label)
			}
			if a.Stats.Length != tt.length {
				t.Errorf("length: got %v, want %v", a.Stats.Length, tt.length)
			}
			if a.Index != 1 || a.ID != "a1" || a.InstanceID != "inst-1" {
				t.Errorf("identity: got index %d id %s instance %s", a.Index, a.ID, a.InstanceID)
			}
			if e.Selected() != "a1" {
				t.Errorf("new annotation should be selected, got %q", e.Selected())
			}
		})
	}
}

func TestSingleShot_Discards(t *testing.T) {
	tests := []struct {
		name string
		tool Type
		pts  []geometry.Point
	}{
		{"click without move", Length, []geometry.Point{{X: 10, Y: 10}}},
		{"freehand too short", Freehand, []geometry.Point{{X: 10, Y: 10}, {X: 20, Y: 20}}},
		{"leaves raster", Length, []geometry.Point{{X: 10, Y: 10}, {X: 600, Y: 10}}},
		{"negative coordinate", Rectangle, []geometry.Point{{X: 10, Y: 10}, {X: -1, Y: 40}}},
		{"on far edge", Ellipse, []geometry.Point{{X: 10, Y: 10}, {X: 512, Y: 40}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, [2]float64{0.5, 0.5})
			if c := dragPath(e, tt.tool, tt.pts...); c == Committed {
				t.Error("shape should be discarded")
			}
			if e.Len() != 0 || e.Busy() {
				t.Errorf("engine should be empty and idle, got %d annotations busy=%v", e.Len(), e.Busy())
			}
		})
	}
}

func TestSingleShot_ReleasePointCompletesShape(t *testing.T) {
	tests := []struct {
		name  string
		tool  Type
		moves []geometry.Point
		up    geometry.Point
		want  []geometry.Point
	}{
		{"length without move events", Length, nil, geometry.Pt(100, 0),
			[]geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}},
		{"rectangle released past last move", Rectangle, []geometry.Point{{X: 20, Y: 20}}, geometry.Pt(40, 30),
			[]geometry.Point{{X: 0, Y: 0}, {X: 40, Y: 30}}},
		{"freehand release appends", Freehand, []geometry.Point{{X: 30, Y: 0}, {X: 30, Y: 30}}, geometry.Pt(0, 30),
			[]geometry.Point{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 30}, {X: 0, Y: 30}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, [2]float64{0.5, 0.5})
			e.SetTool(tt.tool)
			e.PointerDown(geometry.Pt(0, 0), 1)
			for _, p := range tt.moves {
				e.PointerMove(p, 1)
			}
			if c := e.PointerUp(tt.up, 1); c != Committed {
				t.Fatalf("change: got %v, want committed", c)
			}
			a := only(t, e)
			if len(a.Points) != len(tt.want) {
				t.Fatalf("points: got %v, want %v", a.Points, tt.want)
			}
			for i := range tt.want {
				if a.Points[i] != tt.want[i] {
					t.Errorf("point %d: got %v, want %v", i, a.Points[i], tt.want[i])
				}
			}
		})
	}
}

func TestEllipse_MeanHU(t *testing.T) {
	e := newTestEngine(t, [2]float64{0.5, 0.5})
	if c := dragPath(e, Ellipse, geometry.Pt(100, 100), geometry.Pt(150, 150), geometry.Pt(200, 160)); c != Committed {
		t.Fatalf("change: got %v, want committed", c)
	}
	a := only(t, e)
	if a.Label() != "Mean: 40 HU" {
		t.Errorf("label: got %q, want %q", a.Label(), "Mean: 40 HU")
	}
	r := a.Stats.Region
	if r == nil {
		t.Fatal("region stats missing")
	}
	if r.Mean != 40 || r.Min != 40 || r.Max != 40 {
		t.Errorf("region: got %+v", r)
	}
	if want := geometry.Round(float64(r.Count)*0.25, 2); a.Stats.Area != want {
		t.Errorf("area: got %v, want %v", a.Stats.Area, want)
	}
	// Inscribed in a 100x60 box: roughly pi*50*30 pixels.
	if approx := math.Pi * 50 * 30; math.Abs(float64(r.Count)-approx) > approx*0.02 {
		t.Errorf("pixel count %d far from %.0f", r.Count, approx)
	}
}

func TestRectangleAndFreehand_Area(t *testing.T) {
	tests := []struct {
		name      string
		tool      Type
		pts       []geometry.Point
		count     int
		perimeter float64
	}{
		{"rectangle", Rectangle, []geometry.Point{{X: 10, Y: 10}, {X: 20, Y: 20}}, 100, 0},
		{"rectangle reversed", Rectangle, []geometry.Point{{X: 20, Y: 20}, {X: 10, Y: 10}}, 100, 0},
		{"freehand square", Freehand, []geometry.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 10, Y: 20}}, 100, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, [2]float64{0.5, 0.5})
			if c := dragPath(e, tt.tool, tt.pts...); c != Committed {
				t.Fatalf("change: got %v, want committed", c)
			}
			a := only(t, e)
			if a.Stats.Region == nil || a.Stats.Region.Count != tt.count {
				t.Fatalf("region: got %+v, want %d pixels", a.Stats.Region, tt.count)
			}
			if a.Stats.Area != float64(tt.count)*0.25 {
				t.Errorf("area: got %v, want %v", a.Stats.Area, float64(tt.count)*0.25)
			}
			if a.Stats.Region.Mean != 40 {
				t.Errorf("mean: got %v, want 40", a.Stats.Region.Mean)
			}
			if a.Stats.Perimeter != tt.perimeter {
				t.Errorf("perimeter: got %v, want %v", a.Stats.Perimeter, tt.perimeter)
			}
		})
	}
}

func TestAngle_Stages(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	e.SetTool(Angle)

	steps := []struct {
		p     geometry.Point
		stage Stage
	}{
		{geometry.Pt(110, 100), StageAwaitingVertex},
		{geometry.Pt(100, 100), StageAwaitingSecondArm},
		{geometry.Pt(100, 90), StageReleasing},
	}
	for i, s := range steps {
		e.PointerMove(s.p, 1)
		if c := e.PointerDown(s.p, 1); c != Preview {
			t.Fatalf("click %d: got %v, want preview", i, c)
		}
		if _, stage, _ := e.Draft(); stage != s.stage {
			t.Fatalf("click %d: stage %v, want %v", i, stage, s.stage)
		}
		if i < len(steps)-1 {
			if c := e.PointerUp(s.p, 1); c != NoChange {
				t.Fatalf("release %d: got %v, want none", i, c)
			}
		}
	}
	if c := e.PointerUp(geometry.Pt(100, 90), 1); c != Committed {
		t.Fatalf("final release: got %v, want committed", c)
	}
	a := only(t, e)
	if a.Stats.Angle != 90 || a.Label() != "90.0°" {
		t.Errorf("angle: got %v %q", a.Stats.Angle, a.Label())
	}
	if a.Points[1] != geometry.Pt(100, 100) {
		t.Errorf("vertex: got %v", a.Points[1])
	}
}

func TestAngle_PreviewFollowsPointer(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	e.SetTool(Angle)
	e.PointerDown(geometry.Pt(10, 10), 1)
	e.PointerUp(geometry.Pt(10, 10), 1)
	if c := e.PointerMove(geometry.Pt(40, 40), 1); c != Preview {
		t.Fatalf("move: got %v, want preview", c)
	}
	d, _, ok := e.Draft()
	if !ok || d.Points[1] != geometry.Pt(40, 40) {
		t.Errorf("preview arm: got %v", d.Points)
	}
	if e.Len() != 0 {
		t.Error("draft must not be committed")
	}
}

func TestCobbsAngle(t *testing.T) {
	rad := 30 * math.Pi / 180
	tests := []struct {
		name string
		pts  []geometry.Point
	}{
		{"thirty degrees", []geometry.Point{
			{X: 0, Y: 0}, {X: 100, Y: 0},
			{X: 200, Y: 200}, {X: 200 + 100*math.Cos(rad), Y: 200 + 100*math.Sin(rad)},
		}},
		{"obtuse reported acute", []geometry.Point{
			{X: 0, Y: 0}, {X: 100, Y: 0},
			{X: 300, Y: 300}, {X: 300 - 100*math.Cos(rad), Y: 300 + 100*math.Sin(rad)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, [2]float64{0.5, 0.5})
			if c := clicks(e, CobbsAngle, tt.pts...); c != Committed {
				t.Fatalf("change: got %v, want committed", c)
			}
			a := only(t, e)
			if a.Label() != "30.0°" {
				t.Errorf("label: got %q, want 30.0°", a.Label())
			}
			if len(a.Points) != 4 {
				t.Errorf("points: got %d, want 4", len(a.Points))
			}
		})
	}
}

func TestCobbsAngle_StageSequence(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	e.SetTool(CobbsAngle)
	want := []Stage{
		StageAwaitingFirstLineEnd,
		StageAwaitingSecondLineStart,
		StageAwaitingSecondLineEnd,
		StageReleasing,
	}
	for i, s := range want {
		p := geometry.Pt(float64(10+i*20), 50)
		e.PointerDown(p, 1)
		if _, stage, _ := e.Draft(); stage != s {
			t.Fatalf("click %d: stage %v, want %v", i, stage, s)
		}
		if i < len(want)-1 {
			e.PointerUp(p, 1)
		}
	}
	if c := e.Cancel(); c != Preview {
		t.Errorf("cancel: got %v, want preview", c)
	}
	if e.Busy() || e.Len() != 0 {
		t.Error("cancel should drop the draft")
	}
}

func TestPointTools(t *testing.T) {
	e := newTestEngine(t, [2]float64{0.5, 0.5})

	e.SetTool(HU)
	if c := e.PointerDown(geometry.Pt(5.5, 7.2), 1); c != Committed {
		t.Fatalf("hu: got %v, want committed", c)
	}
	hu, _ := e.Get("a1")
	if hu.Stats.HU == nil || *hu.Stats.HU != 40 || hu.Label() != "40 HU" {
		t.Errorf("hu: got %v %q", hu.Stats.HU, hu.Label())
	}

	if c := e.PointerDown(geometry.Pt(-1, 300), 1); c == Committed {
		t.Error("hu outside raster should be discarded")
	}

	e.SetTool(Text)
	e.PointerDown(geometry.Pt(300, 300), 1)
	txt, ok := e.Get("a2")
	if !ok || txt.Text != DefaultText || txt.Label() != DefaultText {
		t.Fatalf("text: got %+v", txt)
	}
	if c, err := e.SetText("a2", "Lesion"); err != nil || c != Committed {
		t.Fatalf("SetText: got %v %v", c, err)
	}
	if txt, _ = e.Get("a2"); txt.Label() != "Lesion" {
		t.Errorf("label: got %q", txt.Label())
	}
	if _, err := e.SetText("a1", "x"); !errors.Is(err, ErrNotText) {
		t.Errorf("SetText on hu: got %v, want ErrNotText", err)
	}
	if _, err := e.SetRotation("nope", 45); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRotation unknown: got %v, want ErrNotFound", err)
	}
	if c, _ := e.SetRotation("a2", 45); c != Committed {
		t.Errorf("SetRotation: got %v", c)
	}
}

func TestEdit_HandleDrag(t *testing.T) {
	e := newTestEngine(t, [2]float64{0.5, 0.5})
	dragPath(e, Length, geometry.Pt(100, 100), geometry.Pt(200, 100))
	e.SetTool(None)

	e.PointerDown(geometry.Pt(200.5, 100.5), 1)
	e.PointerMove(geometry.Pt(250, 100), 1)
	if c := e.PointerUp(geometry.Pt(250, 100), 1); c != Committed {
		t.Fatalf("change: got %v, want committed", c)
	}
	a := only(t, e)
	if a.Points[0] != geometry.Pt(100, 100) || a.Points[1] != geometry.Pt(250, 100) {
		t.Errorf("points: got %v", a.Points)
	}
	if a.Label() != "75.0 mm" {
		t.Errorf("label: got %q", a.Label())
	}
}

func TestEdit_BodyTranslate(t *testing.T) {
	e := newTestEngine(t, [2]float64{0.5, 0.5})
	dragPath(e, Rectangle, geometry.Pt(100, 100), geometry.Pt(200, 200))

	// Any tool edits when the press lands on an existing shape.
	e.PointerDown(geometry.Pt(150, 102), 1)
	e.PointerMove(geometry.Pt(160, 107), 1)
	if c := e.PointerUp(geometry.Pt(160, 107), 1); c != Committed {
		t.Fatalf("change: got %v, want committed", c)
	}
	a := only(t, e)
	if a.Points[0] != geometry.Pt(110, 105) || a.Points[1] != geometry.Pt(210, 205) {
		t.Errorf("points: got %v", a.Points)
	}
}

func TestEdit_OutOfBoundsReverts(t *testing.T) {
	e := newTestEngine(t, [2]float64{0.5, 0.5})
	dragPath(e, Length, geometry.Pt(100, 100), geometry.Pt(200, 100))
	before := only(t, e)

	e.SetTool(None)
	e.PointerDown(geometry.Pt(200, 100), 1)
	e.PointerMove(geometry.Pt(600, 100), 1)
	if c := e.PointerUp(geometry.Pt(600, 100), 1); c == Committed {
		t.Fatal("out-of-bounds edit must not commit")
	}
	after := only(t, e)
	if after.Points[1] != before.Points[1] || after.Label() != before.Label() {
		t.Errorf("edit should revert: got %v %q", after.Points, after.Label())
	}
}

func TestHitTest_ZoomNormalized(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		hit   bool
	}{
		{"unzoomed", 1, true},
		{"zoomed in", 4, false},
		{"zoomed out", 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, [2]float64{})
			dragPath(e, Length, geometry.Pt(100, 100), geometry.Pt(200, 100))
			e.SetTool(None)
			// 3 image pixels off the segment: 3 screen px at scale 1, 12 at scale 4.
			e.PointerDown(geometry.Pt(150, 103), tt.scale)
			if e.Busy() != tt.hit {
				t.Errorf("hit: got %v, want %v", e.Busy(), tt.hit)
			}
		})
	}
}

func TestHitTest_EllipseBoundaryAndMarkers(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	dragPath(e, Ellipse, geometry.Pt(100, 100), geometry.Pt(200, 160))
	e.SetTool(None)

	tests := []struct {
		name string
		p    geometry.Point
		hit  bool
	}{
		{"on boundary", geometry.Pt(150, 101), true},
		{"near right extreme", geometry.Pt(203, 130), true},
		{"center", geometry.Pt(150, 130), false},
		{"far outside", geometry.Pt(250, 130), false},
	}
	for _, tt := range tests {
		e.Cancel()
		e.PointerDown(tt.p, 1)
		if e.Busy() != tt.hit {
			t.Errorf("%s: hit %v, want %v", tt.name, e.Busy(), tt.hit)
		}
	}
	e.Cancel()

	// Markers use the larger radius.
	e.SetTool(HU)
	e.PointerDown(geometry.Pt(400, 400), 1)
	e.SetTool(None)
	e.PointerDown(geometry.Pt(412, 400), 1)
	if !e.Busy() {
		t.Error("marker should be hit within the marker radius")
	}
}

func TestHitTest_TopmostFirst(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	dragPath(e, Length, geometry.Pt(100, 100), geometry.Pt(200, 100))
	dragPath(e, Length, geometry.Pt(150, 50), geometry.Pt(150, 150))
	e.SetTool(None)
	e.Select("")

	e.PointerDown(geometry.Pt(150, 100), 1)
	if e.Selected() != "a2" {
		t.Errorf("selected: got %q, want a2 (topmost)", e.Selected())
	}
}

func TestHitTest_OtherInstanceIgnored(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	dragPath(e, Length, geometry.Pt(100, 100), geometry.Pt(200, 100))

	e.SetRaster("inst-2", radiometric.NewSampler(ctFrame([2]float64{})))
	e.SetTool(None)
	e.PointerDown(geometry.Pt(100, 100), 1)
	if e.Busy() {
		t.Error("annotations of another instance must not be hit")
	}
	if len(e.Visible()) != 0 || e.Len() != 1 {
		t.Errorf("visible %d total %d, want 0 and 1", len(e.Visible()), e.Len())
	}
}

func TestDelete_Reindex(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	for i := 0; i < 4; i++ {
		y := float64(10 + 40*i)
		dragPath(e, Length, geometry.Pt(10, y), geometry.Pt(100, y))
	}

	steps := []struct {
		id       string
		order    []string
		selected string
	}{
		{"a2", []string{"a1", "a3", "a4"}, "a3"},
		{"a4", []string{"a1", "a3"}, "a3"},
		{"a1", []string{"a3"}, "a3"},
		{"a3", nil, ""},
	}
	for _, s := range steps {
		if c, err := e.Delete(s.id); err != nil || c != Committed {
			t.Fatalf("Delete(%s): got %v %v", s.id, c, err)
		}
		list := e.Annotations()
		if len(list) != len(s.order) {
			t.Fatalf("after %s: got %d annotations, want %d", s.id, len(list), len(s.order))
		}
		for i, a := range list {
			if a.ID != s.order[i] || a.Index != i+1 {
				t.Errorf("after %s: position %d is %s#%d, want %s#%d", s.id, i, a.ID, a.Index, s.order[i], i+1)
			}
		}
		if e.Selected() != s.selected {
			t.Errorf("after %s: selected %q, want %q", s.id, e.Selected(), s.selected)
		}
	}

	if _, err := e.Delete("a1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting twice: got %v, want ErrNotFound", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	e := newTestEngine(t, [2]float64{0.5, 0.5})
	dragPath(e, Length, geometry.Pt(0, 0), geometry.Pt(100, 0))
	snap := e.Snapshot()

	snap[0].Points[0] = geometry.Pt(99, 99)
	if a := only(t, e); a.Points[0] != geometry.Pt(0, 0) {
		t.Fatal("snapshot must not alias engine state")
	}

	snap = e.Snapshot()
	e.Delete("a1")
	e.Restore(snap)
	a := only(t, e)
	if a.ID != "a1" || a.Label() != "50.0 mm" {
		t.Errorf("restored: got %+v", a)
	}
	// The selection moved away on delete and is not resurrected.
	if e.Selected() != "" {
		t.Errorf("selected: got %q", e.Selected())
	}
}

func TestSubscribe(t *testing.T) {
	e := newTestEngine(t, [2]float64{})
	var got []EventKind
	cancel := e.Subscribe(func(ev Event) { got = append(got, ev.Kind) })

	dragPath(e, Length, geometry.Pt(0, 0), geometry.Pt(100, 0))
	e.Delete("a1")
	e.Clear()
	cancel()
	dragPath(e, Length, geometry.Pt(0, 0), geometry.Pt(100, 0))

	want := []EventKind{Created, Deleted, Cleared}
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types {
		got, err := ParseType(string(typ))
		if err != nil || got != typ {
			t.Errorf("ParseType(%q): got %v %v", typ, got, err)
		}
	}
	if got, err := ParseType("none"); err != nil || got != None {
		t.Errorf("ParseType(none): got %v %v", got, err)
	}
	if _, err := ParseType("lasso"); err == nil {
		t.Error("ParseType should reject unknown tools")
	}
}
