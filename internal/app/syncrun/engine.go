// Package syncrun executes sync runs against the legacy Caseworker API:
// one run walks the date window page by page, reconciles each record
// against the shadow store, and publishes progress events. The state
// machine is identical for cases, constituents, and emails; a Source
// supplies the per-entity-type fetch and reconcile steps.
package syncrun

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nuid"
	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/contracts"
	"github.com/casebridge/casebridge/internal/domain"
	"github.com/casebridge/casebridge/internal/legacy"
	"github.com/casebridge/casebridge/internal/sharding"
)

const (
	// DefaultBatchSize is the legacy page size. A page of exactly this many
	// records means "assume more pages".
	DefaultBatchSize = 100

	// DefaultMaxPages bounds a run so a legacy API that keeps returning
	// full pages can never loop forever.
	DefaultMaxPages = 1000
)

// epochFloor is "beginning of time" for a full sync's creation-date window.
var epochFloor = time.Unix(0, 0).UTC()

type PublishFunc func(subject string, payload []byte) error

// Window is the resolved date filter for a run.
type Window struct {
	Field string // legacy.DateFieldCreated or legacy.DateFieldModified
	From  time.Time
	To    time.Time
}

// Source is one entity type's view of the legacy API and shadow store.
type Source interface {
	EntityType() string
	FetchPage(ctx context.Context, office domain.OfficeID, window Window, pageNo, pageSize int) ([]Item, error)
}

// Item is a single legacy record pending reconciliation.
type Item interface {
	// ExternalID returns the raw legacy identifier, unvalidated, for error
	// reporting.
	ExternalID() int64
	// Reconcile diffs the record against the shadow store and upserts it.
	Reconcile(ctx context.Context) (Outcome, error)
}

// Outcome reports how a record was reconciled.
type Outcome struct {
	Created       bool
	InternalID    string
	ChangedFields []string
}

// Engine runs the sync state machine. One run is strictly sequential: page
// by page, record by record, so events come out in the order the legacy
// API returned the records.
type Engine struct {
	Publish   PublishFunc
	Logger    *zap.Logger
	Now       func() time.Time
	NewID     func() string
	BatchSize int
	MaxPages  int
}

func NewEngine(publish PublishFunc, logger *zap.Logger) *Engine {
	return &Engine{
		Publish:   publish,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     nuid.Next,
		BatchSize: DefaultBatchSize,
		MaxPages:  DefaultMaxPages,
	}
}

// Run executes one sync run for (office, source). Transport failures abort
// the run; per-record failures are counted and the run continues.
func (e *Engine) Run(ctx context.Context, runID string, office domain.OfficeID, src Source, opts Options) Result {
	start := e.Now()
	window := e.window(opts)
	mode := contracts.ModeIncremental
	if opts.Full {
		mode = contracts.ModeFull
	}

	res := Result{
		EntityType: src.EntityType(),
		OfficeID:   office.String(),
		Success:    true,
	}

	e.emit(office, contracts.SyncEvent{
		RunID:      runID,
		EntityType: src.EntityType(),
		EventType:  contracts.EventSyncStarted,
		Mode:       mode,
	})

	for pageNo := 1; ; pageNo++ {
		if pageNo > e.maxPages() {
			return e.fail(runID, office, res, start, "page limit reached: legacy api keeps returning full pages")
		}

		items, err := src.FetchPage(ctx, office, window, pageNo, e.batchSize())
		if err != nil {
			return e.fail(runID, office, res, start, err.Error())
		}

		for _, item := range items {
			out, err := item.Reconcile(ctx)
			if err != nil {
				res.RecordsFailed++
				res.Errors = append(res.Errors, RecordError{ExternalID: item.ExternalID(), Message: err.Error()})
				e.Logger.Warn("record reconcile failed",
					zap.String("run_id", runID),
					zap.String("office_id", office.String()),
					zap.String("entity_type", src.EntityType()),
					zap.Int64("external_id", item.ExternalID()),
					zap.Error(err))
				continue
			}

			res.RecordsSynced++
			event := contracts.SyncEvent{
				RunID:      runID,
				EntityType: src.EntityType(),
				InternalID: out.InternalID,
				ExternalID: item.ExternalID(),
			}
			if out.Created {
				res.RecordsCreated++
				event.EventType = contracts.EventEntityCreated
			} else {
				res.RecordsUpdated++
				event.EventType = contracts.EventEntityUpdated
				event.ChangedFields = out.ChangedFields
			}
			e.emit(office, event)
		}

		// Page size == batch size is the "more pages" heuristic: the legacy
		// API exposes no total count.
		if len(items) < e.batchSize() {
			break
		}
	}

	res.DurationMs = e.Now().Sub(start).Milliseconds()
	e.emit(office, contracts.SyncEvent{
		RunID:         runID,
		EntityType:    src.EntityType(),
		EventType:     contracts.EventSyncCompleted,
		RecordsSynced: res.RecordsSynced,
		DurationMs:    res.DurationMs,
	})
	return res
}

func (e *Engine) fail(runID string, office domain.OfficeID, res Result, start time.Time, message string) Result {
	res.Success = false
	res.Errors = append(res.Errors, RecordError{ExternalID: 0, Message: message})
	res.DurationMs = e.Now().Sub(start).Milliseconds()

	e.Logger.Error("sync run aborted",
		zap.String("run_id", runID),
		zap.String("office_id", office.String()),
		zap.String("entity_type", res.EntityType),
		zap.Int("records_synced", res.RecordsSynced),
		zap.String("message", message))

	e.emit(office, contracts.SyncEvent{
		RunID:         runID,
		EntityType:    res.EntityType,
		EventType:     contracts.EventSyncFailed,
		Message:       message,
		RecordsSynced: res.RecordsSynced,
		DurationMs:    res.DurationMs,
	})
	return res
}

func (e *Engine) window(opts Options) Window {
	now := e.Now()
	if opts.Full {
		// A full sync filters by creation date from the epoch floor so it
		// cannot miss records created long ago but never modified.
		return Window{Field: legacy.DateFieldCreated, From: epochFloor, To: now}
	}
	from := opts.ModifiedSince
	if from.IsZero() {
		from = now.Add(-24 * time.Hour)
	}
	return Window{Field: legacy.DateFieldModified, From: from, To: now}
}

func (e *Engine) emit(office domain.OfficeID, event contracts.SyncEvent) {
	event.EventID = e.NewID()
	event.OfficeID = office.String()
	event.OccurredAt = e.Now()
	event.ShardID = sharding.GetShardID(office.String())

	payload, err := json.Marshal(event)
	if err != nil {
		e.Logger.Warn("marshal sync event", zap.Error(err))
		return
	}
	if err := e.Publish(sharding.EventSubject(office.String()), payload); err != nil {
		e.Logger.Warn("publish sync event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return e.BatchSize
}

func (e *Engine) maxPages() int {
	if e.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return e.MaxPages
}
