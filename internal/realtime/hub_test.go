package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/planhub/planhub/internal/contracts"
)

type fakeUpstream struct {
	mu       sync.Mutex
	handlers map[string]func(data []byte, seq uint64)
	attached int
	detached int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{handlers: map[string]func(data []byte, seq uint64){}}
}

func (u *fakeUpstream) subscribe(workspaceID string, handler func(data []byte, seq uint64)) (func(), error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handlers[workspaceID] = handler
	u.attached++
	return func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		delete(u.handlers, workspaceID)
		u.detached++
	}, nil
}

func (u *fakeUpstream) publish(t *testing.T, workspaceID string, event contracts.ActivityEvent, seq uint64) {
	t.Helper()
	u.mu.Lock()
	handler := u.handlers[workspaceID]
	u.mu.Unlock()
	if handler == nil {
		t.Fatalf("no upstream subscription for %s", workspaceID)
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	handler(data, seq)
}

type fakeSource struct {
	mu     sync.Mutex
	feed   []contracts.ActivityEvent
	offset uint64
}

func (s *fakeSource) ListFeed(ctx context.Context, workspaceID string) ([]contracts.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.ActivityEvent(nil), s.feed...), nil
}

func (s *fakeSource) GetOffset(ctx context.Context, workspaceID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, nil
}

func testEvent(id string) contracts.ActivityEvent {
	return contracts.ActivityEvent{
		EventID:     "ev-" + id,
		Type:        contracts.ActivityTypePlan,
		Change:      contracts.ChangeCreated,
		Value:       contracts.EntityRef{ID: id, Title: "plan " + id},
		WorkspaceID: "ws1",
	}
}

func recvEvent(t *testing.T, ch <-chan StreamMessage) StreamMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Event != nil {
				return msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	upstream := newFakeUpstream()
	hub := NewHub(upstream.subscribe, &fakeSource{offset: 100})

	ch1, unsub1, err := hub.Subscribe("ws1")
	if err != nil {
		t.Fatal(err)
	}
	defer unsub1()
	ch2, unsub2, err := hub.Subscribe("ws1")
	if err != nil {
		t.Fatal(err)
	}
	defer unsub2()

	if upstream.attached != 1 {
		t.Fatalf("expected one upstream subscription, got %d", upstream.attached)
	}

	upstream.publish(t, "ws1", testEvent("a"), 1)
	for _, ch := range []<-chan StreamMessage{ch1, ch2} {
		msg := recvEvent(t, ch)
		if msg.Event.Value.ID != "a" || msg.Seq != 1 {
			t.Fatalf("msg = %+v", msg)
		}
	}
}

func TestHubTearsDownUpstreamWithLastSubscriber(t *testing.T) {
	upstream := newFakeUpstream()
	hub := NewHub(upstream.subscribe, &fakeSource{})

	_, unsub1, _ := hub.Subscribe("ws1")
	_, unsub2, _ := hub.Subscribe("ws1")

	unsub1()
	upstream.mu.Lock()
	detached := upstream.detached
	upstream.mu.Unlock()
	if detached != 0 {
		t.Fatal("upstream torn down while a subscriber remained")
	}

	unsub2()
	unsub2() // idempotent
	upstream.mu.Lock()
	detached = upstream.detached
	upstream.mu.Unlock()
	if detached != 1 {
		t.Fatalf("detached = %d", detached)
	}

	// a new subscriber re-attaches upstream
	_, unsub3, _ := hub.Subscribe("ws1")
	defer unsub3()
	if upstream.attached != 2 {
		t.Fatalf("attached = %d", upstream.attached)
	}
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	upstream := newFakeUpstream()
	hub := NewHub(upstream.subscribe, &fakeSource{offset: 1 << 30})

	_, unsub, _ := hub.Subscribe("ws1")
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			upstream.publish(t, "ws1", testEvent("x"), uint64(i+1))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}
}

func TestHubDebouncedSnapshotRefresh(t *testing.T) {
	upstream := newFakeUpstream()
	source := &fakeSource{feed: []contracts.ActivityEvent{testEvent("a"), testEvent("b")}, offset: 10}
	hub := NewHub(upstream.subscribe, source)

	ch, unsub, _ := hub.Subscribe("ws1")
	defer unsub()

	upstream.publish(t, "ws1", testEvent("a"), 9)
	upstream.publish(t, "ws1", testEvent("b"), 10)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Snapshot != nil {
				if len(msg.Snapshot) != 2 || msg.Seq != 10 {
					t.Fatalf("snapshot = %+v", msg)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot refresh")
		}
	}
}
