package wizard

// DefaultHistoryLimit bounds the undo stack. Oldest snapshots are evicted
// silently once the limit is reached.
const DefaultHistoryLimit = 1000

// History is a linear undo/redo stack of state snapshots: a baseline plus one
// entry per recorded mutation, with a cursor between them. Recording while the
// cursor sits mid-stack truncates the redo tail (no branching timelines).
// Not safe for concurrent use; Session serializes access.
type History[T any] struct {
	entries []T
	pos     int
	limit   int
}

func NewHistory[T any](baseline T) *History[T] {
	return &History[T]{
		entries: []T{baseline},
		limit:   DefaultHistoryLimit,
	}
}

// Record pushes a snapshot and moves the cursor to it.
func (h *History[T]) Record(snapshot T) {
	h.entries = append(h.entries[:h.pos+1], snapshot)
	if len(h.entries) > h.limit {
		overflow := len(h.entries) - h.limit
		h.entries = append(h.entries[:0], h.entries[overflow:]...)
	}
	h.pos = len(h.entries) - 1
}

// Undo moves the cursor back one step and returns that snapshot. A no-op at
// the baseline: ok is false and the cursor is untouched.
func (h *History[T]) Undo() (T, bool) {
	if h.pos == 0 {
		var zero T
		return zero, false
	}
	h.pos--
	return h.entries[h.pos], true
}

// Redo moves the cursor forward one step and returns that snapshot. A no-op
// at the tip.
func (h *History[T]) Redo() (T, bool) {
	if h.pos >= len(h.entries)-1 {
		var zero T
		return zero, false
	}
	h.pos++
	return h.entries[h.pos], true
}

func (h *History[T]) CanUndo() bool {
	return h.pos > 0
}

func (h *History[T]) CanRedo() bool {
	return h.pos < len(h.entries)-1
}

// Reset drops all history and starts a fresh baseline, so undo can no longer
// reach pre-reset state.
func (h *History[T]) Reset(baseline T) {
	h.entries = append(h.entries[:0], baseline)
	h.pos = 0
}

// Len reports the number of stored snapshots including the baseline.
func (h *History[T]) Len() int {
	return len(h.entries)
}
