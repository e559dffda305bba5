// Package auditsink durably records every sync event. The audit_events
// table is append-only and idempotent on event ID; sync_runs keeps one
// summary row per run for the API's run history.
package auditsink

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/casebridge/casebridge/internal/contracts"
)

var ErrInvalidEventPayload = errors.New("invalid event payload")
var ErrUnsupportedEventType = errors.New("unsupported event type")

type Repository interface {
	InsertEvent(ctx context.Context, event contracts.SyncEvent, eventSeq uint64) error
}

type Service struct {
	Repository Repository
}

func NewService(repository Repository) *Service {
	return &Service{Repository: repository}
}

func (s *Service) Handle(ctx context.Context, payload []byte, eventSeq uint64) error {
	var event contracts.SyncEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ErrInvalidEventPayload
	}
	if event.EventID == "" || event.RunID == "" || event.OfficeID == "" {
		return ErrInvalidEventPayload
	}
	switch event.EventType {
	case contracts.EventSyncStarted, contracts.EventSyncCompleted, contracts.EventSyncFailed,
		contracts.EventEntityCreated, contracts.EventEntityUpdated:
	default:
		return ErrUnsupportedEventType
	}
	return s.Repository.InsertEvent(ctx, event, eventSeq)
}
