package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/planhub/planhub/internal/contracts"
)

type scriptConn struct {
	in chan []byte

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func newScriptConn() *scriptConn {
	return &scriptConn{in: make(chan []byte, 16)}
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.in
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, data, nil
}

func (c *scriptConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	c.writes = append(c.writes, copied)
	return nil
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
	}
	return nil
}

func (c *scriptConn) sendFrame(t *testing.T, action string, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		raw = data
	}
	data, err := json.Marshal(contracts.Frame{Action: action, Payload: raw})
	if err != nil {
		t.Fatal(err)
	}
	c.in <- data
}

func (c *scriptConn) firstWrite(t *testing.T) contracts.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.writes) > 0 {
			data := c.writes[0]
			c.mu.Unlock()
			var frame contracts.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatal(err)
			}
			return frame
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a write")
	return contracts.Frame{}
}

// queueDialer hands out conns in order, then fails until cancelled.
func queueDialer(conns ...*scriptConn) Dialer {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context) (wireConn, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(conns) {
			return nil, errors.New("no more connections")
		}
		conn := conns[i]
		i++
		return conn, nil
	}
}

func TestChannelAnnouncesWithCorrelationID(t *testing.T) {
	conn := newScriptConn()
	ch := NewChannel(queueDialer(conn), "user-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	frame := conn.firstWrite(t)
	if frame.Action != contracts.ActionPing {
		t.Fatalf("first frame action = %q", frame.Action)
	}
	var ping contracts.PingPayload
	if err := json.Unmarshal(frame.Payload, &ping); err != nil {
		t.Fatal(err)
	}
	if ping.UserID != "user-1" || ping.CorrelationID == "" {
		t.Fatalf("ping = %+v", ping)
	}
}

func TestChannelStaysSilentWithoutUser(t *testing.T) {
	conn := newScriptConn()
	ch := NewChannel(queueDialer(conn), "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	conn.mu.Lock()
	writes := len(conn.writes)
	conn.mu.Unlock()
	if writes != 0 {
		t.Fatalf("anonymous channel wrote %d frames", writes)
	}
}

func TestChannelDispatchesToAllSubscribers(t *testing.T) {
	conn := newScriptConn()
	ch := NewChannel(queueDialer(conn), "user-1")

	got := make(chan string, 8)
	ch.Subscribe(contracts.ActionActivityCreated, func(f contracts.Frame) { got <- "first" })
	unsub := ch.Subscribe(contracts.ActionActivityCreated, func(f contracts.Frame) { got <- "second" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	conn.sendFrame(t, contracts.ActionActivityCreated, testEvent("a"))
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case name := <-got:
			seen[name] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}
	if !seen["first"] || !seen["second"] {
		t.Fatalf("seen = %v", seen)
	}

	// unknown actions and detached subscribers get nothing
	unsub()
	unsub()
	conn.sendFrame(t, "activity:archived", nil)
	conn.sendFrame(t, contracts.ActionActivityCreated, testEvent("b"))
	select {
	case name := <-got:
		if name != "first" {
			t.Fatalf("detached subscriber still receiving: %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remaining subscriber missed the frame")
	}
	select {
	case name := <-got:
		t.Fatalf("unexpected extra dispatch: %s", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	first := newScriptConn()
	second := newScriptConn()
	ch := NewChannel(queueDialer(first, second), "user-1")

	got := make(chan string, 4)
	ch.Subscribe(contracts.ActionActivityCreated, func(f contracts.Frame) {
		var ev contracts.ActivityEvent
		_ = json.Unmarshal(f.Payload, &ev)
		got <- ev.Value.ID
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	first.sendFrame(t, contracts.ActionActivityCreated, testEvent("a"))
	select {
	case id := <-got:
		if id != "a" {
			t.Fatalf("id = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch on first connection")
	}

	close(first.in) // drop the connection

	second.sendFrame(t, contracts.ActionActivityCreated, testEvent("b"))
	select {
	case id := <-got:
		if id != "b" {
			t.Fatalf("id = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch after reconnect")
	}

	// the second connection got its own announce ping
	if second.firstWrite(t).Action != contracts.ActionPing {
		t.Fatal("reconnect did not announce")
	}
}
