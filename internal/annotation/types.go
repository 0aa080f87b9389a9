package annotation

import (
	"fmt"

	"github.com/ironsheep/frameview/internal/geometry"
	"github.com/ironsheep/frameview/internal/radiometric"
)

// Type identifies an annotation kind. It doubles as the drawing tool.
type Type string

const (
	None       Type = "" // select and edit only
	Length     Type = "length"
	Ellipse    Type = "ellipse"
	Rectangle  Type = "rectangle"
	Freehand   Type = "freehand"
	Text       Type = "text"
	Angle      Type = "angle"
	CobbsAngle Type = "cobbsAngle"
	HU         Type = "hu"
)

// Types lists every drawable type in palette order.
var Types = []Type{Length, Ellipse, Rectangle, Freehand, Text, Angle, CobbsAngle, HU}

// ParseType validates a tool name. The empty string and "none" select None.
func ParseType(s string) (Type, error) {
	if s == "" || s == "none" {
		return None, nil
	}
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return None, fmt.Errorf("unknown annotation type %q", s)
}

// class groups types by how they are drawn.
type class int

const (
	classSingleShot class = iota
	classPoint
	classMultiClick
)

func (t Type) class() class {
	switch t {
	case Text, HU:
		return classPoint
	case Angle, CobbsAngle:
		return classMultiClick
	default:
		return classSingleShot
	}
}

// pointCount is the number of points a finished annotation of type t has.
// Freehand reports its minimum.
func (t Type) pointCount() int {
	switch t {
	case Text, HU:
		return 1
	case Angle:
		return 3
	case CobbsAngle:
		return 4
	case Freehand:
		return 3
	default:
		return 2
	}
}

// isRegion reports whether t encloses an area.
func (t Type) isRegion() bool {
	return t == Ellipse || t == Rectangle || t == Freehand
}

// Stats holds the measurements of an annotation. Only the fields that apply
// to its type are set.
type Stats struct {
	Length    float64            `json:"length,omitempty"`
	Angle     float64            `json:"angle,omitempty"`
	Area      float64            `json:"area,omitempty"`
	Perimeter float64            `json:"perimeter,omitempty"`
	Unit      string             `json:"unit,omitempty"` // "mm" or "px"
	Region    *radiometric.Stats `json:"region,omitempty"`
	HU        *float64           `json:"hu,omitempty"`
}

// Annotation is one measurement or marker.
type Annotation struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	InstanceID string           `json:"instanceId"`
	Points     []geometry.Point `json:"points"`
	Stats      Stats            `json:"stats"`
	Labels     []string         `json:"labels,omitempty"`
	Index      int              `json:"index"` // 1-based display index
	Color      string           `json:"color"`
	Text       string           `json:"text,omitempty"`
	Rotation   float64          `json:"rotation,omitempty"`
}

// Clone returns a deep copy of a.
func (a Annotation) Clone() Annotation {
	c := a
	c.Points = append([]geometry.Point(nil), a.Points...)
	c.Labels = append([]string(nil), a.Labels...)
	if a.Stats.Region != nil {
		r := *a.Stats.Region
		c.Stats.Region = &r
	}
	if a.Stats.HU != nil {
		v := *a.Stats.HU
		c.Stats.HU = &v
	}
	return c
}

// Label returns the primary label line, or "" when there is none.
func (a Annotation) Label() string {
	if len(a.Labels) == 0 {
		return ""
	}
	return a.Labels[0]
}

// Stage is the position of an in-progress annotation within its creation
// sequence.
type Stage int

const (
	StageIdle Stage = iota
	StageDragging
	StageAwaitingVertex
	StageAwaitingSecondArm
	StageAwaitingFirstLineEnd
	StageAwaitingSecondLineStart
	StageAwaitingSecondLineEnd
	StageReleasing
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDragging:
		return "dragging"
	case StageAwaitingVertex:
		return "awaiting-vertex"
	case StageAwaitingSecondArm:
		return "awaiting-second-arm"
	case StageAwaitingFirstLineEnd:
		return "awaiting-first-line-end"
	case StageAwaitingSecondLineStart:
		return "awaiting-second-line-start"
	case StageAwaitingSecondLineEnd:
		return "awaiting-second-line-end"
	case StageReleasing:
		return "releasing"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Change reports what a command did to the engine state.
type Change int

const (
	NoChange  Change = iota
	Preview          // a draft or drag moved
	Selection        // selection changed
	Committed        // the annotation list changed
)

func (c Change) String() string {
	switch c {
	case Preview:
		return "preview"
	case Selection:
		return "selection"
	case Committed:
		return "committed"
	default:
		return "none"
	}
}

// EventKind classifies change notifications.
type EventKind int

const (
	Created EventKind = iota
	Edited
	Deleted
	Selected
	Cleared
	Restored
)

func (k EventKind) String() string {
	return [...]string{"created", "edited", "deleted", "selected", "cleared", "restored"}[k]
}

// Event is delivered to subscribers after a committed change.
type Event struct {
	Kind EventKind
	ID   string // empty for Cleared and Restored
}
