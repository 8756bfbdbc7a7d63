package wizard

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("wizard session not found")

// Store keeps live wizard sessions keyed by their opaque id. Sessions live in
// process memory only: a wizard belongs to one browser tab of one user and is
// dropped on submit or reset-and-abandon.
type Store struct {
	mu    sync.Mutex
	byID  map[string]*Session
	newID func() string
}

func NewStore() *Store {
	return &Store{
		byID:  map[string]*Session{},
		newID: uuid.NewString,
	}
}

func (st *Store) Create(userID, planTypeID string) *Session {
	session := NewSession(st.newID(), userID, planTypeID)
	st.mu.Lock()
	st.byID[session.ID] = session
	st.mu.Unlock()
	return session
}

// CreateSeeded mounts a wizard pre-filled from a prior plan's draft.
func (st *Store) CreateSeeded(userID string, seed Draft, referencedFrom string) *Session {
	session := NewSeededSession(st.newID(), userID, seed, referencedFrom)
	st.mu.Lock()
	st.byID[session.ID] = session
	st.mu.Unlock()
	return session
}

// Get returns the session only to its owning user.
func (st *Store) Get(id, userID string) (*Session, error) {
	st.mu.Lock()
	session, ok := st.byID[id]
	st.mu.Unlock()
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Drop removes a session; idempotent.
func (st *Store) Drop(id string) {
	st.mu.Lock()
	delete(st.byID, id)
	st.mu.Unlock()
}
