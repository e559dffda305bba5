package auditsink

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casebridge/casebridge/internal/contracts"
)

const createAuditEventsTableSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
  event_id text PRIMARY KEY,
  run_id text NOT NULL,
  office_id text NOT NULL,
  entity_type text NOT NULL,
  event_type text NOT NULL,
  internal_id text NOT NULL DEFAULT '',
  external_id bigint NOT NULL DEFAULT 0,
  changed_fields text[],
  records_synced integer NOT NULL DEFAULT 0,
  duration_ms bigint NOT NULL DEFAULT 0,
  message text NOT NULL DEFAULT '',
  shard_id integer NOT NULL,
  stream_seq bigint NOT NULL DEFAULT 0,
  occurred_at timestamptz NOT NULL,
  inserted_at timestamptz NOT NULL DEFAULT now()
)`

const createAuditEventsRunIndexSQL = `
CREATE INDEX IF NOT EXISTS audit_events_office_run_idx
ON audit_events (office_id, run_id, occurred_at)`

const createSyncRunsTableSQL = `
CREATE TABLE IF NOT EXISTS sync_runs (
  run_id text PRIMARY KEY,
  office_id text NOT NULL,
  entity_type text NOT NULL,
  mode text NOT NULL DEFAULT '',
  status text NOT NULL,
  records_synced integer NOT NULL DEFAULT 0,
  duration_ms bigint NOT NULL DEFAULT 0,
  message text,
  started_at timestamptz NOT NULL,
  finished_at timestamptz,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const createSyncRunsOfficeIndexSQL = `
CREATE INDEX IF NOT EXISTS sync_runs_office_idx
ON sync_runs (office_id, started_at DESC)`

const insertEventSQL = `
INSERT INTO audit_events (
  event_id, run_id, office_id, entity_type, event_type,
  internal_id, external_id, changed_fields,
  records_synced, duration_ms, message, shard_id, stream_seq, occurred_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (event_id) DO NOTHING
`

const upsertRunStartedSQL = `
INSERT INTO sync_runs (run_id, office_id, entity_type, mode, status, started_at)
VALUES ($1, $2, $3, $4, 'running', $5)
ON CONFLICT (run_id) DO NOTHING
`

const applyRunFinishedSQL = `
INSERT INTO sync_runs (
  run_id, office_id, entity_type, status,
  records_synced, duration_ms, message, started_at, finished_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (run_id) DO UPDATE
SET status = EXCLUDED.status,
    records_synced = EXCLUDED.records_synced,
    duration_ms = EXCLUDED.duration_ms,
    message = EXCLUDED.message,
    finished_at = EXCLUDED.finished_at,
    updated_at = now()
`

type EventRepository struct {
	Pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{Pool: pool}
}

func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		createAuditEventsTableSQL,
		createAuditEventsRunIndexSQL,
		createSyncRunsTableSQL,
		createSyncRunsOfficeIndexSQL,
	} {
		if _, err := r.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertEvent appends the event and folds it into the run summary in one
// transaction. Redelivered events are no-ops thanks to the event_id key.
func (r *EventRepository) InsertEvent(ctx context.Context, event contracts.SyncEvent, eventSeq uint64) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertEventSQL,
		event.EventID,
		event.RunID,
		event.OfficeID,
		event.EntityType,
		event.EventType,
		event.InternalID,
		event.ExternalID,
		event.ChangedFields,
		event.RecordsSynced,
		event.DurationMs,
		event.Message,
		event.ShardID,
		int64(eventSeq),
		event.OccurredAt,
	); err != nil {
		return err
	}

	switch event.EventType {
	case contracts.EventSyncStarted:
		if _, err := tx.Exec(ctx, upsertRunStartedSQL,
			event.RunID,
			event.OfficeID,
			event.EntityType,
			event.Mode,
			event.OccurredAt,
		); err != nil {
			return err
		}
	case contracts.EventSyncCompleted:
		if _, err := tx.Exec(ctx, applyRunFinishedSQL,
			event.RunID,
			event.OfficeID,
			event.EntityType,
			"completed",
			event.RecordsSynced,
			event.DurationMs,
			"",
			event.OccurredAt,
		); err != nil {
			return err
		}
	case contracts.EventSyncFailed:
		if _, err := tx.Exec(ctx, applyRunFinishedSQL,
			event.RunID,
			event.OfficeID,
			event.EntityType,
			"failed",
			event.RecordsSynced,
			event.DurationMs,
			event.Message,
			event.OccurredAt,
		); err != nil {
			return err
		}
	case contracts.EventEntityCreated, contracts.EventEntityUpdated:
		// Audit row only; entity events do not change the run summary.
	default:
		return ErrUnsupportedEventType
	}

	return tx.Commit(ctx)
}
