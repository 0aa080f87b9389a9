// Package history keeps the undo/redo stack of a viewing session.
//
// Each entry is a deep-copied value snapshot of the annotation list and the
// view transform. The stack has a cursor at the entry matching the current
// state; -1 means the current state is the base (the canonical empty state
// of the series). Pushing discards every entry after the cursor.
package history

import (
	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/viewport"
)

// Entry is an immutable snapshot.
type Entry struct {
	Annotations []annotation.Annotation
	Transform   viewport.Transform
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	c := Entry{Transform: e.Transform.Clone()}
	if e.Annotations != nil {
		c.Annotations = make([]annotation.Annotation, len(e.Annotations))
		for i := range e.Annotations {
			c.Annotations[i] = e.Annotations[i].Clone()
		}
	}
	return c
}

// Manager is the snapshot stack. It is not safe for concurrent use.
type Manager struct {
	base    Entry
	entries []Entry
	cursor  int
}

// New creates an empty stack whose base state is base.
func New(base Entry) *Manager {
	return &Manager{base: base.Clone(), cursor: -1}
}

// Push records a committed state, truncating any redo entries.
func (m *Manager) Push(e Entry) {
	m.entries = append(m.entries[:m.cursor+1], e.Clone())
	m.cursor = len(m.entries) - 1
}

// Undo steps back one entry and returns the state to restore. Undoing the
// first entry returns the base state; ok is false when there is nothing to
// undo.
func (m *Manager) Undo() (e Entry, ok bool) {
	if m.cursor < 0 {
		return Entry{}, false
	}
	m.cursor--
	if m.cursor < 0 {
		return m.base.Clone(), true
	}
	return m.entries[m.cursor].Clone(), true
}

// Redo steps forward one entry; ok is false when there is none.
func (m *Manager) Redo() (e Entry, ok bool) {
	if m.cursor+1 >= len(m.entries) {
		return Entry{}, false
	}
	m.cursor++
	return m.entries[m.cursor].Clone(), true
}

// CanUndo reports whether Undo would succeed.
func (m *Manager) CanUndo() bool { return m.cursor >= 0 }

// CanRedo reports whether Redo would succeed.
func (m *Manager) CanRedo() bool { return m.cursor+1 < len(m.entries) }

// Len returns the number of recorded entries, including redo entries.
func (m *Manager) Len() int { return len(m.entries) }

// Reset clears the stack and installs a new base state.
func (m *Manager) Reset(base Entry) {
	m.base = base.Clone()
	m.entries = nil
	m.cursor = -1
}
