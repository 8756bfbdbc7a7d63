package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/planhub/planhub/internal/contracts"
	"github.com/planhub/planhub/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
)

// Handler upgrades /ws requests and bridges the hub to the socket. Auth is
// resolved before the upgrade so failures stay plain HTTP errors.
type Handler struct {
	Hub      *Hub
	Auth     auth.Manager
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, authManager auth.Manager, allowedOrigin string) *Handler {
	return &Handler{
		Hub:  hub,
		Auth: authManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}
	claims, err := h.Auth.Parse(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.WorkspaceID == "" {
		http.Error(w, "no workspace selected", http.StatusConflict)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	events, unsubscribe, err := h.Hub.Subscribe(claims.WorkspaceID)
	if err != nil {
		log.Printf("ws: hub subscribe failed for workspace %s: %v", claims.WorkspaceID, err)
		_ = conn.Close()
		return
	}

	// All socket writes funnel through outbound; drop-on-full matches the
	// hub's fan-out policy.
	outbound := make(chan contracts.Frame, 64)
	done := make(chan struct{})

	go h.writePump(conn, outbound, done)
	go forwardHubMessages(events, outbound, done)
	h.readPump(conn, outbound, done)

	close(done)
	unsubscribe()
	_ = conn.Close()
}

func (h *Handler) readPump(conn *websocket.Conn, outbound chan<- contracts.Frame, done <-chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame contracts.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Action {
		case contracts.ActionPing:
			// pong echoes the ping payload so the client can correlate
			select {
			case outbound <- contracts.Frame{Action: contracts.ActionPong, Payload: frame.Payload}:
			case <-done:
				return
			default:
			}
		default:
			// unknown actions are ignored
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, outbound <-chan contracts.Frame, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case frame := <-outbound:
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func forwardHubMessages(events <-chan StreamMessage, outbound chan<- contracts.Frame, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-events:
			for _, frame := range framesFor(msg) {
				select {
				case outbound <- frame:
				case <-done:
					return
				default:
				}
			}
		}
	}
}

func framesFor(msg StreamMessage) []contracts.Frame {
	var frames []contracts.Frame
	if msg.Event != nil {
		action := contracts.ActivityAction(msg.Event.Change)
		if action != "" {
			if payload, err := json.Marshal(msg.Event); err == nil {
				frames = append(frames, contracts.Frame{Action: action, Payload: payload})
			}
		}
	}
	if msg.Snapshot != nil {
		if payload, err := json.Marshal(msg.Snapshot); err == nil {
			frames = append(frames, contracts.Frame{Action: contracts.ActionFeedSnapshot, Payload: payload})
		}
	}
	return frames
}
