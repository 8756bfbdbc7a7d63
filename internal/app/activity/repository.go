package activity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planhub/planhub/internal/contracts"
)

type Repository interface {
	EnsureSchema(ctx context.Context) error
	// ApplyEvent projects one event at the given stream sequence. Sequences
	// at or below the workspace's stored offset are skipped.
	ApplyEvent(ctx context.Context, event contracts.ActivityEvent, seq uint64) error
	ListFeed(ctx context.Context, workspaceID string) ([]contracts.ActivityEvent, error)
	GetOffset(ctx context.Context, workspaceID string) (uint64, error)
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createEventLogSQL = `
CREATE TABLE IF NOT EXISTS activity_events (
  event_id text PRIMARY KEY,
  workspace_id text NOT NULL,
  entity_type text NOT NULL,
  change text NOT NULL,
  entity_id text NOT NULL,
  title text NOT NULL,
  actor_user_id text NOT NULL,
  actor_name text NOT NULL,
  occurred_at timestamptz NOT NULL,
  stream_seq bigint NOT NULL
)`

const createFeedSQL = `
CREATE TABLE IF NOT EXISTS activity_feed (
  workspace_id text NOT NULL,
  entity_id text NOT NULL,
  event_id text NOT NULL,
  entity_type text NOT NULL,
  title text NOT NULL,
  actor_user_id text NOT NULL,
  actor_name text NOT NULL,
  occurred_at timestamptz NOT NULL,
  PRIMARY KEY (workspace_id, entity_id)
)`

const createOffsetsSQL = `
CREATE TABLE IF NOT EXISTS activity_offsets (
  workspace_id text PRIMARY KEY,
  last_seq bigint NOT NULL
)`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{createEventLogSQL, createFeedSQL, createOffsetsSQL} {
		if _, err := r.Pool.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) ApplyEvent(ctx context.Context, event contracts.ActivityEvent, seq uint64) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var lastSeq int64
	err = tx.QueryRow(ctx,
		`SELECT last_seq FROM activity_offsets WHERE workspace_id = $1 FOR UPDATE`,
		event.WorkspaceID,
	).Scan(&lastSeq)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if err == nil && int64(seq) <= lastSeq {
		// redelivery; already projected
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO activity_events (event_id, workspace_id, entity_type, change, entity_id,
		   title, actor_user_id, actor_name, occurred_at, stream_seq)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.WorkspaceID, event.Type, event.Change, event.Value.ID,
		event.Value.Title, event.ActorUserID, event.ActorName, event.OccurredAt, int64(seq),
	); err != nil {
		return err
	}

	switch event.Change {
	case contracts.ChangeCreated, contracts.ChangeUpdated:
		if _, err := tx.Exec(ctx,
			`INSERT INTO activity_feed (workspace_id, entity_id, event_id, entity_type,
			   title, actor_user_id, actor_name, occurred_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 ON CONFLICT (workspace_id, entity_id) DO UPDATE SET
			   event_id = EXCLUDED.event_id,
			   title = EXCLUDED.title,
			   actor_user_id = EXCLUDED.actor_user_id,
			   actor_name = EXCLUDED.actor_name,
			   occurred_at = EXCLUDED.occurred_at`,
			event.WorkspaceID, event.Value.ID, event.EventID, event.Type,
			event.Value.Title, event.ActorUserID, event.ActorName, event.OccurredAt,
		); err != nil {
			return err
		}
	case contracts.ChangeDeleted:
		if _, err := tx.Exec(ctx,
			`DELETE FROM activity_feed WHERE workspace_id = $1 AND entity_id = $2`,
			event.WorkspaceID, event.Value.ID,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO activity_offsets (workspace_id, last_seq) VALUES ($1, $2)
		 ON CONFLICT (workspace_id) DO UPDATE SET last_seq = EXCLUDED.last_seq`,
		event.WorkspaceID, int64(seq),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) GetOffset(ctx context.Context, workspaceID string) (uint64, error) {
	var lastSeq int64
	err := r.Pool.QueryRow(ctx,
		`SELECT last_seq FROM activity_offsets WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&lastSeq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(lastSeq), nil
}

func (r *PostgresRepository) ListFeed(ctx context.Context, workspaceID string) ([]contracts.ActivityEvent, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT event_id, entity_type, entity_id, title, actor_user_id, actor_name, occurred_at
		 FROM activity_feed WHERE workspace_id = $1 ORDER BY occurred_at`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]contracts.ActivityEvent, 0)
	for rows.Next() {
		ev := contracts.ActivityEvent{WorkspaceID: workspaceID, Change: contracts.ChangeCreated}
		if err := rows.Scan(&ev.EventID, &ev.Type, &ev.Value.ID, &ev.Value.Title,
			&ev.ActorUserID, &ev.ActorName, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
