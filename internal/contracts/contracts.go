package contracts

import (
	"encoding/json"
	"time"
)

// Frame is the realtime wire format. Every message over the socket and the bus
// is an action name plus an opaque payload; unrecognized actions are ignored.
type Frame struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	ActionPing            = "ping"
	ActionPong            = "pong"
	ActionActivityCreated = "activity:created"
	ActionActivityUpdated = "activity:updated"
	ActionActivityDeleted = "activity:deleted"

	// ActionFeedSnapshot carries a full reconciled feed after a debounced
	// refresh. Clients that don't handle it ignore it.
	ActionFeedSnapshot = "feed:snapshot"
)

const (
	ActivityTypePlan = "plan"
	ActivityTypePost = "post"
)

const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EntityRef is the reconciliation key plus display fields of a feed entry.
type EntityRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ActivityEvent is published by plan-api on every plan/post change and consumed
// by the activity streamer and the projector.
type ActivityEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	Change      string    `json:"change"`
	Value       EntityRef `json:"value"`
	WorkspaceID string    `json:"workspace_id"`
	ActorUserID string    `json:"actor_user_id"`
	ActorName   string    `json:"actor_name"`
	OccurredAt  time.Time `json:"occurred_at"`
	ShardID     int       `json:"shard_id"`
}

// PingPayload is sent by a client channel once per connection when a user id is
// known. The correlation id comes back on the matching pong.
type PingPayload struct {
	CorrelationID string `json:"correlation_id"`
	UserID        string `json:"user_id"`
}

// ActivityAction maps a change discriminator to its frame action. Empty for
// unknown changes.
func ActivityAction(change string) string {
	switch change {
	case ChangeCreated:
		return ActionActivityCreated
	case ChangeUpdated:
		return ActionActivityUpdated
	case ChangeDeleted:
		return ActionActivityDeleted
	default:
		return ""
	}
}

// ChangeFromAction is the inverse mapping, used by subscribers reconciling a
// local feed from inbound frames.
func ChangeFromAction(action string) string {
	switch action {
	case ActionActivityCreated:
		return ChangeCreated
	case ActionActivityUpdated:
		return ChangeUpdated
	case ActionActivityDeleted:
		return ChangeDeleted
	default:
		return ""
	}
}
