package activity

import (
	"testing"
	"time"

	"github.com/planhub/planhub/internal/contracts"
)

func event(change, id, title string) contracts.ActivityEvent {
	return contracts.ActivityEvent{
		EventID:     "ev-" + id + "-" + change,
		Type:        contracts.ActivityTypePlan,
		Change:      change,
		Value:       contracts.EntityRef{ID: id, Title: title},
		WorkspaceID: "ws1",
		OccurredAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func titles(f *Feed) []string {
	var out []string
	for _, e := range f.Snapshot() {
		out = append(out, e.Value.Title)
	}
	return out
}

func TestFeedCreatedAppendsInOrder(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "a", "first"))
	f.Apply(event(contracts.ChangeCreated, "b", "second"))

	got := titles(f)
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("feed = %v", got)
	}
}

func TestFeedUpdatedReplacesById(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "a", "first"))
	f.Apply(event(contracts.ChangeCreated, "b", "second"))
	f.Apply(event(contracts.ChangeUpdated, "a", "first, renamed"))

	got := titles(f)
	if got[0] != "first, renamed" || got[1] != "second" {
		t.Fatalf("feed = %v", got)
	}
}

func TestFeedUpdateForUnknownIdIsNoOp(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "a", "first"))
	f.Apply(event(contracts.ChangeUpdated, "ghost", "never seen"))

	if f.Len() != 1 {
		t.Fatalf("len = %d", f.Len())
	}
}

func TestFeedDeleteIsIdempotent(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "a", "first"))
	f.Apply(event(contracts.ChangeDeleted, "a", "first"))
	f.Apply(event(contracts.ChangeDeleted, "a", "first"))
	f.Apply(event(contracts.ChangeDeleted, "ghost", ""))

	if f.Len() != 0 {
		t.Fatalf("len = %d", f.Len())
	}
}

func TestFeedCreatedRedeliveryReplaces(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "a", "first"))
	f.Apply(event(contracts.ChangeCreated, "a", "first"))

	if f.Len() != 1 {
		t.Fatalf("len = %d", f.Len())
	}
}

func TestFeedUnknownChangeIgnored(t *testing.T) {
	f := NewFeed()
	f.Apply(event("archived", "a", "first"))

	if f.Len() != 0 {
		t.Fatalf("len = %d", f.Len())
	}
}

func TestFeedSeedReplaces(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "stale", "stale"))
	f.Seed([]contracts.ActivityEvent{
		event(contracts.ChangeCreated, "a", "first"),
		event(contracts.ChangeCreated, "b", "second"),
	})

	got := titles(f)
	if len(got) != 2 || got[0] != "first" {
		t.Fatalf("feed = %v", got)
	}
}

func TestFeedSnapshotIsACopy(t *testing.T) {
	f := NewFeed()
	f.Apply(event(contracts.ChangeCreated, "a", "first"))

	snap := f.Snapshot()
	snap[0].Value.Title = "mutated"
	if titles(f)[0] != "first" {
		t.Fatal("snapshot mutation leaked into feed")
	}
}
