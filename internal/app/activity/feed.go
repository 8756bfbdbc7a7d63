package activity

import (
	"sync"

	"github.com/planhub/planhub/internal/contracts"
)

// Feed is the client-side reconciled view of a workspace's activity. It is
// driven by inbound activity frames and keeps insertion order for created
// entries. All methods are safe for concurrent use.
type Feed struct {
	mu      sync.Mutex
	entries []contracts.ActivityEvent
}

func NewFeed() *Feed {
	return &Feed{}
}

// Seed replaces the feed contents with a snapshot, oldest first.
func (f *Feed) Seed(events []contracts.ActivityEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make([]contracts.ActivityEvent, len(events))
	copy(f.entries, events)
}

// Apply reconciles one event into the feed. Created appends (or replaces when
// the id is already present, so redelivery is harmless), updated replaces by
// id and ignores unknown ids, deleted removes and is idempotent. Unknown
// changes are ignored.
func (f *Feed) Apply(event contracts.ActivityEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.indexOf(event.Value.ID)
	switch event.Change {
	case contracts.ChangeCreated:
		if idx >= 0 {
			f.entries[idx] = event
			return
		}
		f.entries = append(f.entries, event)
	case contracts.ChangeUpdated:
		if idx < 0 {
			return
		}
		f.entries[idx] = event
	case contracts.ChangeDeleted:
		if idx < 0 {
			return
		}
		f.entries = append(f.entries[:idx], f.entries[idx+1:]...)
	}
}

// Snapshot returns a copy of the current entries, oldest first.
func (f *Feed) Snapshot() []contracts.ActivityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]contracts.ActivityEvent, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *Feed) indexOf(entityID string) int {
	for i, e := range f.entries {
		if e.Value.ID == entityID {
			return i
		}
	}
	return -1
}
