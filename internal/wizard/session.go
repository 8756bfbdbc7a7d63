package wizard

import (
	"errors"
	"sync"
)

var (
	// ErrDraftLocked is returned while the draft is seeded from a prior plan:
	// derived fields stay read-only until the reference is explicitly cleared.
	ErrDraftLocked = errors.New("draft is locked to its referenced plan")
	// ErrSubmitPending is returned when a submit is already in flight.
	ErrSubmitPending = errors.New("a submission is already pending")
)

// Session holds one wizard's mutable state: the draft, its undo history, the
// visible tab, and the submit latch. A session belongs to exactly one user
// and one browser tab; all access is serialized through its mutex.
type Session struct {
	ID     string
	UserID string

	mu         sync.Mutex
	draft      Draft
	history    *History[Draft]
	tab        Tab
	submitting bool
}

// NewSession mounts a wizard with the plan type's default draft.
func NewSession(id, userID, planTypeID string) *Session {
	draft := DefaultDraft(planTypeID)
	return &Session{
		ID:      id,
		UserID:  userID,
		draft:   draft,
		history: NewHistory(draft),
		tab:     TabGeneral,
	}
}

// NewSeededSession mounts a wizard pre-filled from a prior plan. The draft
// stays locked until ClearReference.
func NewSeededSession(id, userID string, seed Draft, referencedFrom string) *Session {
	seed.ReferencedFrom = referencedFrom
	return &Session{
		ID:      id,
		UserID:  userID,
		draft:   seed,
		history: NewHistory(seed),
		tab:     TabGeneral,
	}
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) Tab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Apply replaces the draft with update's result and records the new value as
// an undo snapshot. The update must treat its argument as immutable and
// return a complete draft. Invalid results are rejected whole: the draft and
// the history stay untouched.
func (s *Session) Apply(update func(Draft) Draft) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft.ReferencedFrom != "" {
		return s.draft, ErrDraftLocked
	}

	next := update(s.draft)
	if err := next.Validate(); err != nil {
		return s.draft, err
	}
	s.draft = next
	s.history.Record(next)
	return next, nil
}

// ClearReference unlocks a seeded draft. Recorded as a normal mutation so the
// unlock itself can be undone.
func (s *Session) ClearReference() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft.ReferencedFrom == "" {
		return s.draft
	}
	next := s.draft
	next.ReferencedFrom = ""
	s.draft = next
	s.history.Record(next)
	return next
}

// Undo steps the draft back one snapshot. A no-op with ok=false at the
// baseline.
func (s *Session) Undo() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.history.Undo()
	if !ok {
		return s.draft, false
	}
	s.draft = prev
	return prev, true
}

// Redo steps the draft forward one snapshot. A no-op with ok=false at the
// tip.
func (s *Session) Redo() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.history.Redo()
	if !ok {
		return s.draft, false
	}
	s.draft = next
	return next, true
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Reset returns the wizard to the plan type's default draft and drops all
// history, so undo cannot reach pre-reset state.
func (s *Session) Reset() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draft = DefaultDraft(s.draft.PlanTypeID)
	s.history.Reset(s.draft)
	s.tab = TabGeneral
	return s.draft
}

// Move shifts the visible tab. Boundary moves are no-ops.
func (s *Session) Move(d Direction) Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = s.tab.Move(d)
	return s.tab
}

// BeginSubmit acquires the submit latch. It fails with ErrSubmitPending while
// a prior submission is still in flight, which is what keeps a double-clicked
// submit from creating two plans.
func (s *Session) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return ErrSubmitPending
	}
	s.submitting = true
	return nil
}

// EndSubmit releases the latch. Safe to call without a matching BeginSubmit.
func (s *Session) EndSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}
