package viewer

import (
	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/framecache"
	"github.com/ironsheep/frameview/internal/viewport"
)

// State is a read-only snapshot of a session for the shell.
type State struct {
	SeriesLength int    `json:"series_length"`
	Index        int    `json:"index"`
	InstanceID   string `json:"instance_id,omitempty"`
	FrameReady   bool   `json:"frame_ready"`
	FrameError   string `json:"frame_error,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`

	Transform viewport.Transform `json:"transform"`
	Window    *viewport.Window   `json:"window,omitempty"`

	Tool        annotation.Type         `json:"tool"`
	Annotations []annotation.Annotation `json:"annotations"`
	Selected    string                  `json:"selected,omitempty"`
	Draft       *annotation.Annotation  `json:"draft,omitempty"`
	DraftStage  string                  `json:"draft_stage,omitempty"`

	CanUndo  bool                `json:"can_undo"`
	CanRedo  bool                `json:"can_redo"`
	Progress framecache.Progress `json:"progress"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SeriesLength: len(s.instances),
		Index:        s.index,
		Transform:    s.mapper.Transform(),
		Tool:         s.engine.Tool(),
		Annotations:  s.engine.Annotations(),
		Selected:     s.engine.Selected(),
		CanUndo:      s.history.CanUndo(),
		CanRedo:      s.history.CanRedo(),
	}
	if s.cache != nil {
		st.InstanceID = s.instances[s.index].ID
		st.Progress = s.cache.Progress()
	}
	if s.frame != nil {
		st.FrameReady = true
		st.Width, st.Height = s.frame.Width, s.frame.Height
		w := s.window(s.frame)
		st.Window = &w
	}
	if s.frameErr != nil {
		st.FrameError = s.frameErr.Error()
	}
	if d, stage, ok := s.engine.Draft(); ok {
		st.Draft = &d
		st.DraftStage = stage.String()
	}
	return st
}
