// Package editor implements the in-page editing session: the registry of
// editable elements, the state machine tracking which element is being
// edited, the per-element content snapshots, and the batched save protocol.
package editor

import (
	"log/slog"
	"sort"
	"sync"
)

// Mode is the session's authoring mode.
type Mode string

const (
	ModeViewer Mode = "viewer"
	ModeAuthor Mode = "author"
)

// State is a snapshot of the session's observable state.
type State struct {
	Mode      Mode
	EditingID string // empty when no element is being edited
	Saving    bool
}

// EventType identifies a session state change for the UI collaborator.
type EventType string

const (
	EventModeChanged    EventType = "mode-changed"
	EventEditingChanged EventType = "editing-changed"
	EventDirtyChanged   EventType = "dirty-changed"
)

// Event is pushed to the session's notifier after a state transition
// completes. The UI renders from events; it never mutates session state.
type Event struct {
	Type      EventType
	Mode      Mode
	EditingID string
	Dirty     bool
}

// Session is the editing state machine. All transitions are serialized by
// an internal mutex: one transition fully completes, and its event is
// emitted, before the next input is processed.
type Session struct {
	mu        sync.Mutex
	reg       *Registry
	snapshots map[string]string
	mode      Mode
	editingID string
	saving    bool

	notify func(Event)
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithNotify sets the state-change notifier. Called outside the session
// lock, after the transition that caused it.
func WithNotify(fn func(Event)) SessionOption {
	return func(s *Session) { s.notify = fn }
}

// WithSessionLogger sets a custom logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a Session over the given registry, starting in viewer
// mode with no snapshots.
func NewSession(reg *Registry, opts ...SessionOption) *Session {
	s := &Session{
		reg:       reg,
		snapshots: make(map[string]string),
		mode:      ModeViewer,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Mode: s.mode, EditingID: s.editingID, Saving: s.saving}
}

// EnterAuthorMode moves the session to the author state. No-op when already
// there.
func (s *Session) EnterAuthorMode() {
	s.mu.Lock()
	if s.mode == ModeAuthor {
		s.mu.Unlock()
		return
	}
	s.mode = ModeAuthor
	s.mu.Unlock()

	s.emit(Event{Type: EventModeChanged, Mode: ModeAuthor})
}

// EnterViewerMode moves the session to the viewer state from any state. An
// in-progress edit is stopped first (its affordance removed).
func (s *Session) EnterViewerMode() {
	s.mu.Lock()
	if s.mode == ModeViewer {
		s.mu.Unlock()
		return
	}
	stopped := s.stopEditingLocked()
	s.mode = ModeViewer
	s.mu.Unlock()

	if stopped {
		s.emit(Event{Type: EventEditingChanged, Mode: ModeViewer})
	}
	s.emit(Event{Type: EventModeChanged, Mode: ModeViewer})
}

// StartEditing makes id the edited element. Valid only in author mode and
// only for registered ids; at most one element is ever in edit state, so a
// previous edit target is stopped first. The element's content is captured
// into the snapshot on first entry only.
func (s *Session) StartEditing(id string) error {
	s.mu.Lock()
	if s.mode != ModeAuthor {
		s.mu.Unlock()
		s.logger.Warn("editor: start editing outside author mode", "id", id)
		return ErrNotAuthor
	}
	if s.editingID == id {
		s.mu.Unlock()
		return nil
	}

	el, ok := s.reg.Get(id)
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("editor: element not found", "id", id)
		return ErrElementNotFound
	}

	// Capture before touching the previous edit: a failed capture must
	// leave the session exactly as it was, previous edit included.
	if _, have := s.snapshots[id]; !have {
		contentNow, err := el.Content()
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("editor: snapshot capture failed", "id", id, "error", err)
			return err
		}
		s.snapshots[id] = contentNow
	}

	s.stopEditingLocked()

	if err := el.SetEditable(true); err != nil {
		s.logger.Warn("editor: set editable failed", "id", id, "error", err)
	}
	s.editingID = id
	s.mu.Unlock()

	s.emit(Event{Type: EventEditingChanged, Mode: ModeAuthor, EditingID: id})
	return nil
}

// StopEditing ends the current edit, removing the element's affordance.
// No-op when nothing is being edited.
func (s *Session) StopEditing() {
	s.mu.Lock()
	stopped := s.stopEditingLocked()
	mode := s.mode
	s.mu.Unlock()

	if stopped {
		s.emit(Event{Type: EventEditingChanged, Mode: mode})
	}
}

// stopEditingLocked removes the edit affordance from the current element
// and clears editingID. Reports whether anything changed.
func (s *Session) stopEditingLocked() bool {
	if s.editingID == "" {
		return false
	}
	if el, ok := s.reg.Get(s.editingID); ok {
		if err := el.SetEditable(false); err != nil {
			s.logger.Warn("editor: remove affordance failed", "id", s.editingID, "error", err)
		}
	}
	s.editingID = ""
	return true
}

// Reset restores the edited element's content to its snapshot. Valid only
// while an element is being edited; editing state is unchanged.
func (s *Session) Reset() error {
	s.mu.Lock()
	id := s.editingID
	if id == "" {
		s.mu.Unlock()
		return ErrNotEditing
	}
	snap, have := s.snapshots[id]
	el, ok := s.reg.Get(id)
	s.mu.Unlock()

	if !have || !ok {
		return ErrElementNotFound
	}
	if err := el.SetContent(snap); err != nil {
		return err
	}

	s.emit(Event{Type: EventDirtyChanged, Mode: ModeAuthor, EditingID: id, Dirty: s.HasDirty()})
	return nil
}

// Dirty reports whether id's live content differs from its snapshot. An
// element with no snapshot is never dirty.
func (s *Session) Dirty(id string) bool {
	s.mu.Lock()
	snap, have := s.snapshots[id]
	s.mu.Unlock()
	if !have {
		return false
	}

	el, ok := s.reg.Get(id)
	if !ok {
		return false
	}
	contentNow, err := el.Content()
	if err != nil {
		s.logger.Warn("editor: dirtiness read failed", "id", id, "error", err)
		return false
	}
	return contentNow != snap
}

// DirtyIDs returns the ids of all dirty elements in sorted order.
func (s *Session) DirtyIDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var dirty []string
	for _, id := range ids {
		if s.Dirty(id) {
			dirty = append(dirty, id)
		}
	}
	sort.Strings(dirty)
	return dirty
}

// HasDirty reports whether any element has unsaved changes. The UI gates
// its save action on it.
func (s *Session) HasDirty() bool {
	return len(s.DirtyIDs()) > 0
}

// Snapshot returns the stored snapshot for id, if any.
func (s *Session) Snapshot(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	return snap, ok
}

func (s *Session) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}
