package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/planhub/planhub/internal/contracts"
	"github.com/planhub/planhub/internal/platform/metrics"
	"github.com/planhub/planhub/internal/sharding"
)

// StreamMessage is what hub subscribers receive: a live event, a refreshed
// snapshot, or both over time.
type StreamMessage struct {
	Event    *contracts.ActivityEvent
	Seq      uint64
	Snapshot []contracts.ActivityEvent
}

// SnapshotSource reads the projected feed. Snapshot refreshes wait for the
// projection to catch up with the triggering stream sequence before reading.
type SnapshotSource interface {
	ListFeed(ctx context.Context, workspaceID string) ([]contracts.ActivityEvent, error)
	GetOffset(ctx context.Context, workspaceID string) (uint64, error)
}

// SubscribeFunc attaches a handler to a workspace's activity subject and
// returns the detach func.
type SubscribeFunc func(workspaceID string, handler func(data []byte, seq uint64)) (func(), error)

// JetStreamSubscriber adapts a JetStream context to SubscribeFunc, delivering
// only messages published after attach.
func JetStreamSubscriber(js nats.JetStreamContext) SubscribeFunc {
	return func(workspaceID string, handler func(data []byte, seq uint64)) (func(), error) {
		if js == nil {
			return nil, fmt.Errorf("jetstream is not configured")
		}
		sub, err := js.Subscribe(sharding.ActivitySubject(workspaceID), func(msg *nats.Msg) {
			var seq uint64
			if meta, metaErr := msg.Metadata(); metaErr == nil {
				seq = meta.Sequence.Stream
			}
			handler(msg.Data, seq)
		}, nats.DeliverNew())
		if err != nil {
			return nil, err
		}
		return func() { _ = sub.Unsubscribe() }, nil
	}
}

var hubSubscribers = metrics.NewGauge(metrics.Opts{
	Name: "realtime_hub_subscribers",
	Help: "Websocket subscribers currently attached to the hub.",
})

func init() {
	metrics.Default.MustRegister(hubSubscribers)
}

// Hub multiplexes workspace activity: one upstream subscription per workspace
// with live subscribers, fanned out to per-connection channels. Slow
// subscribers drop messages rather than stall the fan-out.
type Hub struct {
	mu          sync.Mutex
	byWorkspace map[string]*workspaceStream
	subscribe   SubscribeFunc
	source      SnapshotSource
}

func NewHub(subscribe SubscribeFunc, source SnapshotSource) *Hub {
	return &Hub{
		byWorkspace: map[string]*workspaceStream{},
		subscribe:   subscribe,
		source:      source,
	}
}

type workspaceStream struct {
	workspaceID string
	subscribe   SubscribeFunc
	source      SnapshotSource

	mu           sync.Mutex
	unsub        func()
	subscribers  map[string]chan StreamMessage
	nextID       uint64
	pendingSeq   uint64
	refreshTimer *time.Timer
}

// Subscribe attaches to a workspace's live activity. The returned unsubscribe
// is idempotent; when the last subscriber leaves, the upstream subscription is
// torn down and the workspace entry removed.
func (h *Hub) Subscribe(workspaceID string) (<-chan StreamMessage, func(), error) {
	h.mu.Lock()
	stream, ok := h.byWorkspace[workspaceID]
	if !ok {
		stream = &workspaceStream{
			workspaceID: workspaceID,
			subscribe:   h.subscribe,
			source:      h.source,
			subscribers: map[string]chan StreamMessage{},
		}
		h.byWorkspace[workspaceID] = stream
	}
	h.mu.Unlock()

	subID, ch, err := stream.addSubscriber()
	if err != nil {
		return nil, nil, err
	}
	hubSubscribers.Inc()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			hubSubscribers.Dec()
			if !stream.removeSubscriber(subID) {
				return
			}
			h.mu.Lock()
			if current, ok := h.byWorkspace[workspaceID]; ok && current == stream {
				delete(h.byWorkspace, workspaceID)
			}
			h.mu.Unlock()
		})
	}
	return ch, unsubscribe, nil
}

func (s *workspaceStream) addSubscriber() (string, chan StreamMessage, error) {
	ch := make(chan StreamMessage, 64)

	s.mu.Lock()
	s.nextID++
	subID := fmt.Sprintf("%s-%d", s.workspaceID, s.nextID)
	s.subscribers[subID] = ch
	s.mu.Unlock()

	if err := s.ensureSubscription(); err != nil {
		s.mu.Lock()
		delete(s.subscribers, subID)
		s.mu.Unlock()
		return "", nil, err
	}
	return subID, ch, nil
}

func (s *workspaceStream) removeSubscriber(subID string) bool {
	var (
		last  bool
		unsub func()
		timer *time.Timer
	)

	s.mu.Lock()
	delete(s.subscribers, subID)
	if len(s.subscribers) == 0 {
		last = true
		unsub = s.unsub
		timer = s.refreshTimer
		s.unsub = nil
		s.refreshTimer = nil
		s.pendingSeq = 0
	}
	s.mu.Unlock()

	if last {
		if timer != nil {
			timer.Stop()
		}
		if unsub != nil {
			unsub()
		}
	}
	return last
}

func (s *workspaceStream) ensureSubscription() error {
	s.mu.Lock()
	if s.unsub != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	unsub, err := s.subscribe(s.workspaceID, func(data []byte, seq uint64) {
		var event contracts.ActivityEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return
		}
		s.broadcast(StreamMessage{Event: &event, Seq: seq})
		s.scheduleSnapshot(seq)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.unsub != nil {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

func (s *workspaceStream) broadcast(msg StreamMessage) {
	s.mu.Lock()
	subs := make([]chan StreamMessage, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (s *workspaceStream) scheduleSnapshot(seq uint64) {
	const snapshotDebounce = 75 * time.Millisecond

	s.mu.Lock()
	if seq > s.pendingSeq {
		s.pendingSeq = seq
	}
	if s.refreshTimer == nil {
		s.refreshTimer = time.AfterFunc(snapshotDebounce, s.runSnapshotRefresh)
		s.mu.Unlock()
		return
	}
	s.refreshTimer.Reset(snapshotDebounce)
	s.mu.Unlock()
}

func (s *workspaceStream) runSnapshotRefresh() {
	s.mu.Lock()
	targetSeq := s.pendingSeq
	s.pendingSeq = 0
	s.refreshTimer = nil
	hasSubscribers := len(s.subscribers) > 0
	s.mu.Unlock()

	if !hasSubscribers || s.source == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	waitForProjectionOffset(ctx, s.source, s.workspaceID, targetSeq, 2500*time.Millisecond)
	feed, err := s.source.ListFeed(ctx, s.workspaceID)
	if err != nil {
		return
	}
	s.broadcast(StreamMessage{Seq: targetSeq, Snapshot: feed})
}

func waitForProjectionOffset(ctx context.Context, source SnapshotSource, workspaceID string, target uint64, timeout time.Duration) {
	if target == 0 {
		return
	}

	deadline := time.Now().Add(timeout)
	delay := 40 * time.Millisecond
	for time.Now().Before(deadline) {
		offset, err := source.GetOffset(ctx, workspaceID)
		if err == nil && offset >= target {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		next := time.Duration(float64(delay) * 1.5)
		if next > 320*time.Millisecond {
			next = 320 * time.Millisecond
		}
		delay = next
	}
}
