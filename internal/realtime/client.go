package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/planhub/planhub/internal/contracts"
)

const (
	initialRedialDelay = 500 * time.Millisecond
	maxRedialDelay     = 15 * time.Second
)

// wireConn is the slice of *websocket.Conn the channel needs.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens one connection attempt. The channel owns redialing.
type Dialer func(ctx context.Context) (wireConn, error)

// WebsocketDialer dials a /ws endpoint with the bearer token attached.
func WebsocketDialer(url, token string) Dialer {
	return func(ctx context.Context) (wireConn, error) {
		header := http.Header{}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type subscriber struct {
	id int
	fn func(contracts.Frame)
}

// Channel is a client-side activity connection that survives drops: Run owns
// a dial-read-redial loop with capped backoff, and inbound frames fan out to
// action subscribers. Connection errors are logged and absorbed; callers only
// ever see frames.
type Channel struct {
	dial   Dialer
	userID string

	mu     sync.Mutex
	subs   map[string][]subscriber
	nextID int
}

func NewChannel(dial Dialer, userID string) *Channel {
	return &Channel{
		dial:   dial,
		subs:   map[string][]subscriber{},
		userID: userID,
	}
}

// Subscribe registers a handler for one action. Multiple handlers per action
// are supported; the returned func detaches and is safe to call twice.
func (c *Channel) Subscribe(action string, fn func(contracts.Frame)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[action] = append(c.subs[action], subscriber{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			remaining := c.subs[action][:0]
			for _, s := range c.subs[action] {
				if s.id != id {
					remaining = append(remaining, s)
				}
			}
			if len(remaining) == 0 {
				delete(c.subs, action)
				return
			}
			c.subs[action] = remaining
		})
	}
}

// Run connects and keeps reconnecting until the context is cancelled.
func (c *Channel) Run(ctx context.Context) {
	delay := initialRedialDelay
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			log.Printf("realtime: dial failed, retrying in %s: %v", delay, err)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay *= 2
			if delay > maxRedialDelay {
				delay = maxRedialDelay
			}
			continue
		}
		delay = initialRedialDelay

		c.announce(conn)
		c.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

// announce sends the on-open ping. Anonymous channels stay silent.
func (c *Channel) announce(conn wireConn) {
	if c.userID == "" {
		return
	}
	payload, err := json.Marshal(contracts.PingPayload{
		CorrelationID: uuid.NewString(),
		UserID:        c.userID,
	})
	if err != nil {
		return
	}
	frame, err := json.Marshal(contracts.Frame{Action: contracts.ActionPing, Payload: payload})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Printf("realtime: announce failed: %v", err)
	}
}

func (c *Channel) readLoop(ctx context.Context, conn wireConn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("realtime: connection lost: %v", err)
			}
			return
		}
		var frame contracts.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame contracts.Frame) {
	c.mu.Lock()
	handlers := make([]func(contracts.Frame), 0, len(c.subs[frame.Action]))
	for _, s := range c.subs[frame.Action] {
		handlers = append(handlers, s.fn)
	}
	c.mu.Unlock()

	// actions nobody subscribed to are dropped here
	for _, fn := range handlers {
		fn(frame)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
