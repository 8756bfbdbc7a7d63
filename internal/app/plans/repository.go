package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planhub/planhub/internal/wizard"
)

var ErrNotFound = errors.New("not found")

type Plan struct {
	ID          string                                                `json:"id"`
	WorkspaceID string                                                `json:"workspace_id"`
	PlanTypeID  string                                                `json:"plan_type_id"`
	Name        string                                                `json:"name"`
	Description string                                                `json:"description,omitempty"`
	Days        [2]wizard.DateKey                                     `json:"days"`
	TimeSlots   map[wizard.DateKey]map[wizard.SlotKey]wizard.Interval `json:"time_slots,omitempty"`
	Capacity    wizard.Capacity                                       `json:"capacity"`
	Location    wizard.Location                                       `json:"location"`
	Tickets     []wizard.Ticket                                       `json:"tickets"`
	CreatedBy   string                                                `json:"created_by"`
	CreatedAt   time.Time                                             `json:"created_at"`
	UpdatedAt   time.Time                                             `json:"updated_at"`
}

type Post struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	PlanID      string    `json:"plan_id,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repository interface {
	EnsureSchema(ctx context.Context) error
	InsertPlan(ctx context.Context, plan Plan) error
	UpdatePlan(ctx context.Context, plan Plan) error
	FindPlan(ctx context.Context, workspaceID, planID string) (Plan, error)
	ListPlans(ctx context.Context, workspaceID string) ([]Plan, error)
	DeletePlan(ctx context.Context, workspaceID, planID string) error

	InsertPost(ctx context.Context, post Post) error
	FindPost(ctx context.Context, workspaceID, postID string) (Post, error)
	DeletePost(ctx context.Context, workspaceID, postID string) error
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createPlansSQL = `
CREATE TABLE IF NOT EXISTS plans (
  id text PRIMARY KEY,
  workspace_id text NOT NULL,
  plan_type_id text NOT NULL,
  name text NOT NULL,
  description text NOT NULL DEFAULT '',
  day_start text NOT NULL DEFAULT '',
  day_end text NOT NULL DEFAULT '',
  time_slots jsonb NOT NULL DEFAULT '{}',
  capacity jsonb NOT NULL,
  location jsonb NOT NULL,
  created_by text NOT NULL,
  created_at timestamptz NOT NULL,
  updated_at timestamptz NOT NULL
)`

const createPlanIndexSQL = `
CREATE INDEX IF NOT EXISTS plans_workspace_idx ON plans (workspace_id, created_at DESC)`

const createTicketsSQL = `
CREATE TABLE IF NOT EXISTS plan_tickets (
  plan_id text NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
  position int NOT NULL,
  name text NOT NULL,
  shape text NOT NULL,
  price numeric NOT NULL DEFAULT 0,
  currency text NOT NULL DEFAULT '',
  quantity int NOT NULL,
  ticket_type text NOT NULL,
  PRIMARY KEY (plan_id, position)
)`

const createPostsSQL = `
CREATE TABLE IF NOT EXISTS posts (
  id text PRIMARY KEY,
  workspace_id text NOT NULL,
  plan_id text,
  title text NOT NULL,
  body text NOT NULL DEFAULT '',
  created_by text NOT NULL,
  created_at timestamptz NOT NULL
)`

const createPostIndexSQL = `
CREATE INDEX IF NOT EXISTS posts_workspace_idx ON posts (workspace_id, created_at DESC)`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{
		createPlansSQL,
		createPlanIndexSQL,
		createTicketsSQL,
		createPostsSQL,
		createPostIndexSQL,
	} {
		if _, err := r.Pool.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) InsertPlan(ctx context.Context, plan Plan) error {
	slots, capacity, location, err := encodePlanColumns(plan)
	if err != nil {
		return err
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO plans (id, workspace_id, plan_type_id, name, description,
		   day_start, day_end, time_slots, capacity, location,
		   created_by, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		plan.ID, plan.WorkspaceID, plan.PlanTypeID, plan.Name, plan.Description,
		string(plan.Days[0]), string(plan.Days[1]), slots, capacity, location,
		plan.CreatedBy, plan.CreatedAt, plan.UpdatedAt,
	); err != nil {
		return err
	}
	if err := insertTickets(ctx, tx, plan.ID, plan.Tickets); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) UpdatePlan(ctx context.Context, plan Plan) error {
	slots, capacity, location, err := encodePlanColumns(plan)
	if err != nil {
		return err
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE plans SET plan_type_id=$3, name=$4, description=$5,
		   day_start=$6, day_end=$7, time_slots=$8, capacity=$9, location=$10,
		   updated_at=$11
		 WHERE id=$1 AND workspace_id=$2`,
		plan.ID, plan.WorkspaceID, plan.PlanTypeID, plan.Name, plan.Description,
		string(plan.Days[0]), string(plan.Days[1]), slots, capacity, location, plan.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM plan_tickets WHERE plan_id = $1`, plan.ID); err != nil {
		return err
	}
	if err := insertTickets(ctx, tx, plan.ID, plan.Tickets); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertTickets(ctx context.Context, tx pgx.Tx, planID string, tickets []wizard.Ticket) error {
	for i, t := range tickets {
		if _, err := tx.Exec(ctx,
			`INSERT INTO plan_tickets (plan_id, position, name, shape, price, currency, quantity, ticket_type)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			planID, i, t.Name, t.Shape, t.Price, t.Currency, t.Quantity, t.TicketType,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) FindPlan(ctx context.Context, workspaceID, planID string) (Plan, error) {
	var (
		plan                      Plan
		dayStart, dayEnd          string
		slots, capacity, location []byte
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT id, workspace_id, plan_type_id, name, description,
		   day_start, day_end, time_slots, capacity, location,
		   created_by, created_at, updated_at
		 FROM plans WHERE id = $1 AND workspace_id = $2`,
		planID, workspaceID,
	).Scan(&plan.ID, &plan.WorkspaceID, &plan.PlanTypeID, &plan.Name, &plan.Description,
		&dayStart, &dayEnd, &slots, &capacity, &location,
		&plan.CreatedBy, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrNotFound
		}
		return Plan{}, err
	}
	plan.Days[0], plan.Days[1] = wizard.DateKey(dayStart), wizard.DateKey(dayEnd)
	if err := decodePlanColumns(&plan, slots, capacity, location); err != nil {
		return Plan{}, err
	}

	rows, err := r.Pool.Query(ctx,
		`SELECT name, shape, price, currency, quantity, ticket_type
		 FROM plan_tickets WHERE plan_id = $1 ORDER BY position`,
		planID,
	)
	if err != nil {
		return Plan{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var t wizard.Ticket
		if err := rows.Scan(&t.Name, &t.Shape, &t.Price, &t.Currency, &t.Quantity, &t.TicketType); err != nil {
			return Plan{}, err
		}
		plan.Tickets = append(plan.Tickets, t)
	}
	if err := rows.Err(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (r *PostgresRepository) ListPlans(ctx context.Context, workspaceID string) ([]Plan, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id FROM plans WHERE workspace_id = $1 ORDER BY created_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Plan, 0, len(ids))
	for _, id := range ids {
		plan, err := r.FindPlan(ctx, workspaceID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, plan)
	}
	return out, nil
}

func (r *PostgresRepository) DeletePlan(ctx context.Context, workspaceID, planID string) error {
	tag, err := r.Pool.Exec(ctx,
		`DELETE FROM plans WHERE id = $1 AND workspace_id = $2`,
		planID, workspaceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertPost(ctx context.Context, post Post) error {
	var planID any
	if post.PlanID != "" {
		planID = post.PlanID
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO posts (id, workspace_id, plan_id, title, body, created_by, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		post.ID, post.WorkspaceID, planID, post.Title, post.Body, post.CreatedBy, post.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) FindPost(ctx context.Context, workspaceID, postID string) (Post, error) {
	var (
		post   Post
		planID *string
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT id, workspace_id, plan_id, title, body, created_by, created_at
		 FROM posts WHERE id = $1 AND workspace_id = $2`,
		postID, workspaceID,
	).Scan(&post.ID, &post.WorkspaceID, &planID, &post.Title, &post.Body, &post.CreatedBy, &post.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	if planID != nil {
		post.PlanID = *planID
	}
	return post, nil
}

func (r *PostgresRepository) DeletePost(ctx context.Context, workspaceID, postID string) error {
	tag, err := r.Pool.Exec(ctx,
		`DELETE FROM posts WHERE id = $1 AND workspace_id = $2`,
		postID, workspaceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodePlanColumns(plan Plan) (slots, capacity, location []byte, err error) {
	ts := plan.TimeSlots
	if ts == nil {
		ts = map[wizard.DateKey]map[wizard.SlotKey]wizard.Interval{}
	}
	if slots, err = json.Marshal(ts); err != nil {
		return nil, nil, nil, fmt.Errorf("encode time slots: %w", err)
	}
	if capacity, err = json.Marshal(plan.Capacity); err != nil {
		return nil, nil, nil, fmt.Errorf("encode capacity: %w", err)
	}
	if location, err = json.Marshal(plan.Location); err != nil {
		return nil, nil, nil, fmt.Errorf("encode location: %w", err)
	}
	return slots, capacity, location, nil
}

func decodePlanColumns(plan *Plan, slots, capacity, location []byte) error {
	if err := json.Unmarshal(slots, &plan.TimeSlots); err != nil {
		return fmt.Errorf("decode time slots: %w", err)
	}
	if err := json.Unmarshal(capacity, &plan.Capacity); err != nil {
		return fmt.Errorf("decode capacity: %w", err)
	}
	if err := json.Unmarshal(location, &plan.Location); err != nil {
		return fmt.Errorf("decode location: %w", err)
	}
	return nil
}
