// Package syncapi accepts sync triggers over HTTP and publishes them as
// commands for the worker. The API never talks to the legacy system; it
// only validates, authorizes, and enqueues.
package syncapi

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nuid"

	"github.com/casebridge/casebridge/internal/contracts"
	"github.com/casebridge/casebridge/internal/domain"
	"github.com/casebridge/casebridge/internal/sharding"
)

var ErrInvalidOfficeID = errors.New("office_id is required")
var ErrInvalidEntityType = errors.New("entity type must be cases, constituents, or emails")

type PublishFunc func(subject string, payload []byte) error

type Service struct {
	Publish PublishFunc
	Now     func() time.Time
	NewID   func() string
}

type Actor struct {
	OperatorID string
	Email      string
}

type TriggerRequest struct {
	Full          bool       `json:"full"`
	ModifiedSince *time.Time `json:"modified_since,omitempty"`
}

type TriggerResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

func NewService(publish PublishFunc) *Service {
	return &Service{
		Publish: publish,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   nuid.Next,
	}
}

// Trigger validates and enqueues one sync command. The command ID doubles
// as the run ID so the caller can poll run status immediately.
func (s *Service) Trigger(actor Actor, officeID, entityType string, req TriggerRequest) (TriggerResponse, error) {
	office, err := domain.ParseOfficeID(officeID)
	if err != nil {
		return TriggerResponse{}, ErrInvalidOfficeID
	}
	if !contracts.IsValidEntityType(entityType) {
		return TriggerResponse{}, ErrInvalidEntityType
	}

	cmd := contracts.SyncCommand{
		CommandID:     s.NewID(),
		OfficeID:      office.String(),
		EntityType:    entityType,
		Full:          req.Full,
		ModifiedSince: req.ModifiedSince,
		RequestedBy:   actor.OperatorID,
		CreatedAt:     s.Now(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return TriggerResponse{}, err
	}

	subject := sharding.CommandSubject(entityType, office.String())
	if err := s.Publish(subject, payload); err != nil {
		return TriggerResponse{}, err
	}

	return TriggerResponse{
		Status: "accepted",
		RunID:  cmd.CommandID,
	}, nil
}
