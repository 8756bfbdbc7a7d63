package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/planhub/planhub/internal/contracts"
)

var errMalformedEvent = errors.New("malformed activity event")

// Projector consumes the activity stream and keeps the snapshot tables
// current. One instance runs per projector process.
type Projector struct {
	Repo Repository
}

func NewProjector(repo Repository) *Projector {
	return &Projector{Repo: repo}
}

// Handle projects one stream message. Malformed payloads and unknown changes
// are logged and dropped so the consumer can keep advancing; only storage
// errors propagate, which leaves the message unacked for redelivery.
func (p *Projector) Handle(ctx context.Context, data []byte, seq uint64) error {
	var event contracts.ActivityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("projector: drop undecodable message at seq %d: %v", seq, err)
		return nil
	}
	if err := validateEvent(event); err != nil {
		log.Printf("projector: drop message at seq %d: %v", seq, err)
		return nil
	}
	if err := p.Repo.ApplyEvent(ctx, event, seq); err != nil {
		return fmt.Errorf("apply event %s: %w", event.EventID, err)
	}
	return nil
}

func validateEvent(event contracts.ActivityEvent) error {
	if event.EventID == "" || event.WorkspaceID == "" || event.Value.ID == "" {
		return errMalformedEvent
	}
	switch event.Change {
	case contracts.ChangeCreated, contracts.ChangeUpdated, contracts.ChangeDeleted:
	default:
		return fmt.Errorf("%w: change %q", errMalformedEvent, event.Change)
	}
	switch event.Type {
	case contracts.ActivityTypePlan, contracts.ActivityTypePost:
	default:
		return fmt.Errorf("%w: type %q", errMalformedEvent, event.Type)
	}
	return nil
}
