package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/planhub/planhub/internal/contracts"
)

type recordingRepo struct {
	applied []uint64
	fail    error
}

func (r *recordingRepo) EnsureSchema(ctx context.Context) error { return nil }

func (r *recordingRepo) ApplyEvent(ctx context.Context, event contracts.ActivityEvent, seq uint64) error {
	if r.fail != nil {
		return r.fail
	}
	r.applied = append(r.applied, seq)
	return nil
}

func (r *recordingRepo) ListFeed(ctx context.Context, workspaceID string) ([]contracts.ActivityEvent, error) {
	return nil, nil
}

func (r *recordingRepo) GetOffset(ctx context.Context, workspaceID string) (uint64, error) {
	return 0, nil
}

func validPayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(contracts.ActivityEvent{
		EventID:     "ev1",
		Type:        contracts.ActivityTypePlan,
		Change:      contracts.ChangeCreated,
		Value:       contracts.EntityRef{ID: "p1", Title: "Summit"},
		WorkspaceID: "ws1",
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestProjectorAppliesValidEvent(t *testing.T) {
	repo := &recordingRepo{}
	p := NewProjector(repo)

	if err := p.Handle(context.Background(), validPayload(t), 42); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(repo.applied) != 1 || repo.applied[0] != 42 {
		t.Fatalf("applied = %v", repo.applied)
	}
}

func TestProjectorDropsGarbageWithoutError(t *testing.T) {
	repo := &recordingRepo{}
	p := NewProjector(repo)

	for _, payload := range [][]byte{
		[]byte("not json"),
		[]byte(`{"event_id":"","change":"created"}`),
		[]byte(`{"event_id":"e","workspace_id":"w","value":{"id":"x"},"type":"plan","change":"archived"}`),
		[]byte(`{"event_id":"e","workspace_id":"w","value":{"id":"x"},"type":"meeting","change":"created"}`),
	} {
		if err := p.Handle(context.Background(), payload, 7); err != nil {
			t.Fatalf("garbage payload should not error: %v", err)
		}
	}
	if len(repo.applied) != 0 {
		t.Fatalf("applied = %v", repo.applied)
	}
}

func TestProjectorPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("db down")
	p := NewProjector(&recordingRepo{fail: boom})

	if err := p.Handle(context.Background(), validPayload(t), 1); !errors.Is(err, boom) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
