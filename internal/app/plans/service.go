package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nuid"

	"github.com/planhub/planhub/internal/contracts"
	"github.com/planhub/planhub/internal/sharding"
	"github.com/planhub/planhub/internal/wizard"
)

var (
	ErrIncompleteDraft = errors.New("draft is not complete")
	ErrInvalidInput    = errors.New("invalid input")
)

// Actor is the authenticated session context every mutation runs under.
type Actor struct {
	UserID      string
	Username    string
	WorkspaceID string
}

type Service struct {
	Repo    Repository
	Publish func(subject string, data []byte) error
	Now     func() time.Time
	NewID   func() string
}

func NewService(repo Repository, publish func(subject string, data []byte) error) *Service {
	return &Service{
		Repo:    repo,
		Publish: publish,
		Now:     time.Now,
		NewID:   nuid.Next,
	}
}

// Create turns a completed wizard draft into a persisted plan and emits a
// created activity.
func (s *Service) Create(ctx context.Context, actor Actor, draft wizard.Draft) (Plan, error) {
	if err := draft.Validate(); err != nil {
		return Plan{}, err
	}
	if !draft.IsComplete() {
		return Plan{}, ErrIncompleteDraft
	}

	now := s.Now().UTC()
	plan := Plan{
		ID:          s.NewID(),
		WorkspaceID: actor.WorkspaceID,
		PlanTypeID:  draft.PlanTypeID,
		Name:        strings.TrimSpace(draft.Name),
		Description: draft.Description,
		Days:        draft.Days,
		TimeSlots:   draft.TimeSlots,
		Capacity:    draft.Capacity,
		Location:    draft.Location,
		Tickets:     draft.Tickets,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.InsertPlan(ctx, plan); err != nil {
		return Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	s.publishActivity(actor, contracts.ActivityTypePlan, contracts.ChangeCreated, plan.ID, plan.Name)
	return plan, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, planID string) (Plan, error) {
	return s.Repo.FindPlan(ctx, actor.WorkspaceID, planID)
}

func (s *Service) List(ctx context.Context, actor Actor) ([]Plan, error) {
	return s.Repo.ListPlans(ctx, actor.WorkspaceID)
}

// GeneralUpdate carries the editable general-tab fields of a stored plan.
type GeneralUpdate struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Days        [2]wizard.DateKey `json:"days"`
}

func (s *Service) UpdateGeneral(ctx context.Context, actor Actor, planID string, update GeneralUpdate) (Plan, error) {
	return s.updatePlan(ctx, actor, planID, func(plan Plan) (Plan, error) {
		name := strings.TrimSpace(update.Name)
		if name == "" {
			return Plan{}, ErrInvalidInput
		}
		plan.Name = name
		plan.Description = update.Description
		plan.Days = update.Days
		return plan, nil
	})
}

func (s *Service) UpdateLocation(ctx context.Context, actor Actor, planID string, location wizard.Location) (Plan, error) {
	return s.updatePlan(ctx, actor, planID, func(plan Plan) (Plan, error) {
		if err := location.Validate(); err != nil {
			return Plan{}, err
		}
		plan.Location = location
		return plan, nil
	})
}

func (s *Service) UpdateTimeSlots(ctx context.Context, actor Actor, planID string, slots map[wizard.DateKey]map[wizard.SlotKey]wizard.Interval) (Plan, error) {
	return s.updatePlan(ctx, actor, planID, func(plan Plan) (Plan, error) {
		for day, daySlots := range slots {
			if _, err := day.Time(); err != nil {
				return Plan{}, err
			}
			for key, iv := range daySlots {
				if !iv.End.After(iv.Start) {
					return Plan{}, fmt.Errorf("%w: %s/%s", wizard.ErrSlotOrder, day, key)
				}
			}
		}
		plan.TimeSlots = slots
		return plan, nil
	})
}

func (s *Service) updatePlan(ctx context.Context, actor Actor, planID string, apply func(Plan) (Plan, error)) (Plan, error) {
	plan, err := s.Repo.FindPlan(ctx, actor.WorkspaceID, planID)
	if err != nil {
		return Plan{}, err
	}
	next, err := apply(plan)
	if err != nil {
		return Plan{}, err
	}
	next.UpdatedAt = s.Now().UTC()
	if err := s.Repo.UpdatePlan(ctx, next); err != nil {
		return Plan{}, fmt.Errorf("update plan: %w", err)
	}
	s.publishActivity(actor, contracts.ActivityTypePlan, contracts.ChangeUpdated, next.ID, next.Name)
	return next, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, planID string) error {
	plan, err := s.Repo.FindPlan(ctx, actor.WorkspaceID, planID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeletePlan(ctx, actor.WorkspaceID, planID); err != nil {
		return err
	}
	s.publishActivity(actor, contracts.ActivityTypePlan, contracts.ChangeDeleted, plan.ID, plan.Name)
	return nil
}

func (s *Service) CreatePost(ctx context.Context, actor Actor, title, body, planID string) (Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Post{}, ErrInvalidInput
	}
	if planID != "" {
		if _, err := s.Repo.FindPlan(ctx, actor.WorkspaceID, planID); err != nil {
			return Post{}, err
		}
	}
	post := Post{
		ID:          s.NewID(),
		WorkspaceID: actor.WorkspaceID,
		PlanID:      planID,
		Title:       title,
		Body:        body,
		CreatedBy:   actor.UserID,
		CreatedAt:   s.Now().UTC(),
	}
	if err := s.Repo.InsertPost(ctx, post); err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	s.publishActivity(actor, contracts.ActivityTypePost, contracts.ChangeCreated, post.ID, post.Title)
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, actor Actor, postID string) error {
	post, err := s.Repo.FindPost(ctx, actor.WorkspaceID, postID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeletePost(ctx, actor.WorkspaceID, postID); err != nil {
		return err
	}
	s.publishActivity(actor, contracts.ActivityTypePost, contracts.ChangeDeleted, post.ID, post.Title)
	return nil
}

// publishActivity emits on the workspace's shard subject. Publish failures are
// logged, not surfaced: the write already committed.
func (s *Service) publishActivity(actor Actor, entityType, change, entityID, title string) {
	event := contracts.ActivityEvent{
		EventID:     s.NewID(),
		Type:        entityType,
		Change:      change,
		Value:       contracts.EntityRef{ID: entityID, Title: title},
		WorkspaceID: actor.WorkspaceID,
		ActorUserID: actor.UserID,
		ActorName:   actor.Username,
		OccurredAt:  s.Now().UTC(),
		ShardID:     sharding.GetShardID(actor.WorkspaceID),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("plans: marshal activity event: %v", err)
		return
	}
	if err := s.Publish(sharding.ActivitySubject(actor.WorkspaceID), data); err != nil {
		log.Printf("plans: publish activity %s/%s: %v", entityType, change, err)
	}
}
