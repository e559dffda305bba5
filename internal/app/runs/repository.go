// Package runs is the read model over sync_runs. The audit sink writes the
// rows; sync-api serves run status and history from here.
package runs

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRunNotFound = errors.New("sync run not found")

type RunView struct {
	RunID         string     `json:"run_id"`
	OfficeID      string     `json:"office_id"`
	EntityType    string     `json:"entity_type"`
	Mode          string     `json:"mode"`
	Status        string     `json:"status"`
	RecordsSynced int        `json:"records_synced"`
	DurationMs    int64      `json:"duration_ms"`
	Message       string     `json:"message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

type RunRepository struct {
	Pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{Pool: pool}
}

const runColumns = `run_id, office_id, entity_type, mode, status,
	        records_synced, duration_ms, COALESCE(message, ''),
	        started_at, finished_at`

// ListRuns returns the office's most recent runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, officeID string, limit int) ([]RunView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.Pool.Query(ctx,
		`SELECT `+runColumns+`
		 FROM sync_runs
		 WHERE office_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		officeID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]RunView, 0, limit)
	for rows.Next() {
		var v RunView
		if err := rows.Scan(
			&v.RunID,
			&v.OfficeID,
			&v.EntityType,
			&v.Mode,
			&v.Status,
			&v.RecordsSynced,
			&v.DurationMs,
			&v.Message,
			&v.StartedAt,
			&v.FinishedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetRun fetches one run. The office filter keeps runs invisible across
// tenants even when a run ID leaks.
func (r *RunRepository) GetRun(ctx context.Context, officeID, runID string) (RunView, error) {
	var v RunView
	err := r.Pool.QueryRow(ctx,
		`SELECT `+runColumns+`
		 FROM sync_runs
		 WHERE run_id = $1 AND office_id = $2`,
		runID, officeID,
	).Scan(
		&v.RunID,
		&v.OfficeID,
		&v.EntityType,
		&v.Mode,
		&v.Status,
		&v.RecordsSynced,
		&v.DurationMs,
		&v.Message,
		&v.StartedAt,
		&v.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RunView{}, ErrRunNotFound
		}
		return RunView{}, err
	}
	return v, nil
}
