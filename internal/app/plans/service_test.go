package plans

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/planhub/planhub/internal/contracts"
	"github.com/planhub/planhub/internal/sharding"
	"github.com/planhub/planhub/internal/wizard"
)

type memRepo struct {
	plans map[string]Plan
	posts map[string]Post
}

func newMemRepo() *memRepo {
	return &memRepo{plans: map[string]Plan{}, posts: map[string]Post{}}
}

func (r *memRepo) EnsureSchema(ctx context.Context) error { return nil }

func (r *memRepo) InsertPlan(ctx context.Context, plan Plan) error {
	r.plans[plan.ID] = plan
	return nil
}

func (r *memRepo) UpdatePlan(ctx context.Context, plan Plan) error {
	if _, ok := r.plans[plan.ID]; !ok {
		return ErrNotFound
	}
	r.plans[plan.ID] = plan
	return nil
}

func (r *memRepo) FindPlan(ctx context.Context, workspaceID, planID string) (Plan, error) {
	plan, ok := r.plans[planID]
	if !ok || plan.WorkspaceID != workspaceID {
		return Plan{}, ErrNotFound
	}
	return plan, nil
}

func (r *memRepo) ListPlans(ctx context.Context, workspaceID string) ([]Plan, error) {
	var out []Plan
	for _, plan := range r.plans {
		if plan.WorkspaceID == workspaceID {
			out = append(out, plan)
		}
	}
	return out, nil
}

func (r *memRepo) DeletePlan(ctx context.Context, workspaceID, planID string) error {
	plan, ok := r.plans[planID]
	if !ok || plan.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	delete(r.plans, planID)
	return nil
}

func (r *memRepo) InsertPost(ctx context.Context, post Post) error {
	r.posts[post.ID] = post
	return nil
}

func (r *memRepo) FindPost(ctx context.Context, workspaceID, postID string) (Post, error) {
	post, ok := r.posts[postID]
	if !ok || post.WorkspaceID != workspaceID {
		return Post{}, ErrNotFound
	}
	return post, nil
}

func (r *memRepo) DeletePost(ctx context.Context, workspaceID, postID string) error {
	post, ok := r.posts[postID]
	if !ok || post.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	delete(r.posts, postID)
	return nil
}

type published struct {
	subject string
	event   contracts.ActivityEvent
}

func newTestService(t *testing.T) (*Service, *memRepo, *[]published) {
	t.Helper()
	repo := newMemRepo()
	var events []published
	svc := NewService(repo, func(subject string, data []byte) error {
		var ev contracts.ActivityEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		events = append(events, published{subject: subject, event: ev})
		return nil
	})
	svc.Now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	var seq int
	svc.NewID = func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return svc, repo, &events
}

func completeDraft() wizard.Draft {
	d := wizard.DefaultDraft("conference")
	d.Name = "Spring Summit"
	d.Capacity = wizard.Capacity{Type: wizard.CapacityRecommended, Value: 100}
	d.Location = wizard.VenueLocation("1 Main St")
	d.Tickets = []wizard.Ticket{
		{Name: "General", Quantity: 80, TicketType: "free"},
		{Name: "VIP", Quantity: 20, TicketType: "paid-standard", Price: 4900, Currency: "EUR"},
	}
	return d
}

var actor = Actor{UserID: "u1", Username: "alice", WorkspaceID: "ws1"}

func TestCreatePublishesCreatedActivity(t *testing.T) {
	svc, _, events := newTestService(t)

	plan, err := svc.Create(context.Background(), actor, completeDraft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plan.Name != "Spring Summit" || plan.WorkspaceID != "ws1" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*events))
	}
	got := (*events)[0]
	if got.subject != sharding.ActivitySubject("ws1") {
		t.Fatalf("subject = %q", got.subject)
	}
	ev := got.event
	if ev.Type != contracts.ActivityTypePlan || ev.Change != contracts.ChangeCreated {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Value.ID != plan.ID || ev.Value.Title != plan.Name {
		t.Fatalf("event value = %+v", ev.Value)
	}
	if ev.ShardID != sharding.GetShardID("ws1") {
		t.Fatalf("shard id = %d", ev.ShardID)
	}
}

func TestCreateRejectsIncompleteDraft(t *testing.T) {
	svc, _, events := newTestService(t)

	d := completeDraft()
	d.Tickets[1].Quantity = 10 // 90 != capacity 100
	if _, err := svc.Create(context.Background(), actor, d); !errors.Is(err, ErrIncompleteDraft) {
		t.Fatalf("expected ErrIncompleteDraft, got %v", err)
	}
	if len(*events) != 0 {
		t.Fatal("no event should be published on rejection")
	}
}

func TestUpdateGeneralPublishesUpdated(t *testing.T) {
	svc, _, events := newTestService(t)
	plan, _ := svc.Create(context.Background(), actor, completeDraft())

	updated, err := svc.UpdateGeneral(context.Background(), actor, plan.ID, GeneralUpdate{
		Name:        "Autumn Summit",
		Description: "moved",
		Days:        [2]wizard.DateKey{"2026-10-01", "2026-10-02"},
	})
	if err != nil {
		t.Fatalf("update general: %v", err)
	}
	if updated.Name != "Autumn Summit" || updated.Days[0] != "2026-10-01" {
		t.Fatalf("unexpected plan %+v", updated)
	}
	last := (*events)[len(*events)-1].event
	if last.Change != contracts.ChangeUpdated || last.Value.Title != "Autumn Summit" {
		t.Fatalf("event = %+v", last)
	}
}

func TestUpdateLocationValidates(t *testing.T) {
	svc, _, _ := newTestService(t)
	plan, _ := svc.Create(context.Background(), actor, completeDraft())

	bad := wizard.Location{Kind: wizard.LocationOnline, Address: "leftover"}
	if _, err := svc.UpdateLocation(context.Background(), actor, plan.ID, bad); !errors.Is(err, wizard.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
	good := wizard.OnlineLocation("https://example.com/live")
	updated, err := svc.UpdateLocation(context.Background(), actor, plan.ID, good)
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if updated.Location.URL != "https://example.com/live" {
		t.Fatalf("location = %+v", updated.Location)
	}
}

func TestDeletePublishesDeletedOnce(t *testing.T) {
	svc, _, events := newTestService(t)
	plan, _ := svc.Create(context.Background(), actor, completeDraft())

	if err := svc.Delete(context.Background(), actor, plan.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), actor, plan.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	var deletes int
	for _, p := range *events {
		if p.event.Change == contracts.ChangeDeleted {
			deletes++
		}
	}
	if deletes != 1 {
		t.Fatalf("expected exactly one deleted event, got %d", deletes)
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	svc, _, _ := newTestService(t)
	plan, _ := svc.Create(context.Background(), actor, completeDraft())

	other := Actor{UserID: "u2", Username: "bob", WorkspaceID: "ws2"}
	if _, err := svc.Get(context.Background(), other, plan.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign workspace should see ErrNotFound, got %v", err)
	}
	if err := svc.Delete(context.Background(), other, plan.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete should be ErrNotFound, got %v", err)
	}
}

func TestPostLifecycle(t *testing.T) {
	svc, _, events := newTestService(t)

	if _, err := svc.CreatePost(context.Background(), actor, "  ", "body", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank title should be rejected, got %v", err)
	}
	post, err := svc.CreatePost(context.Background(), actor, "Venue booked", "signed today", "")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if err := svc.DeletePost(context.Background(), actor, post.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}

	var kinds []string
	for _, p := range *events {
		kinds = append(kinds, p.event.Type+"/"+p.event.Change)
	}
	want := []string{"post/created", "post/deleted"}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
}

func TestCreatePostAgainstMissingPlan(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CreatePost(context.Background(), actor, "Note", "", "no-such-plan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
