// Package syncworker consumes sync commands and drives the engine. One
// message is one run: lock, sync, unlock, with every outcome reported on
// the event stream.
package syncworker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nuid"
	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/app/syncrun"
	"github.com/casebridge/casebridge/internal/contracts"
	"github.com/casebridge/casebridge/internal/domain"
	"github.com/casebridge/casebridge/internal/platform/synclock"
	"github.com/casebridge/casebridge/internal/sharding"
)

var ErrInvalidCommandPayload = errors.New("invalid command payload")
var ErrUnknownEntityType = errors.New("unknown entity type")

// ErrRunRejected marks a command that was valid but refused, e.g. because
// a run for the same office and entity type already holds the lock. The
// rejection is published as a failed run; the message must not be retried.
var ErrRunRejected = errors.New("sync run rejected")

type Locker interface {
	Acquire(ctx context.Context, officeID, entityType, runID string) error
	Release(ctx context.Context, officeID, entityType, runID string) error
}

// Sources holds one engine source per syncable entity type.
type Sources struct {
	Cases        syncrun.Source
	Constituents syncrun.Source
	Emails       syncrun.Source
}

func (s Sources) For(entityType string) (syncrun.Source, bool) {
	switch entityType {
	case contracts.EntityCases:
		return s.Cases, s.Cases != nil
	case contracts.EntityConstituents:
		return s.Constituents, s.Constituents != nil
	case contracts.EntityEmails:
		return s.Emails, s.Emails != nil
	default:
		return nil, false
	}
}

type Service struct {
	Engine  *syncrun.Engine
	Sources Sources
	Lock    Locker
	Publish syncrun.PublishFunc
	Logger  *zap.Logger
	Now     func() time.Time
	NewID   func() string
}

func NewService(engine *syncrun.Engine, sources Sources, lock Locker, publish syncrun.PublishFunc, logger *zap.Logger) *Service {
	return &Service{
		Engine:  engine,
		Sources: sources,
		Lock:    lock,
		Publish: publish,
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   nuid.Next,
	}
}

// Handle executes one sync command end to end and returns the run result.
func (s *Service) Handle(ctx context.Context, payload []byte) (syncrun.Result, error) {
	var cmd contracts.SyncCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return syncrun.Result{}, ErrInvalidCommandPayload
	}
	if cmd.CommandID == "" {
		return syncrun.Result{}, ErrInvalidCommandPayload
	}
	office, err := domain.ParseOfficeID(cmd.OfficeID)
	if err != nil {
		return syncrun.Result{}, ErrInvalidCommandPayload
	}

	source, ok := s.Sources.For(cmd.EntityType)
	if !ok {
		return syncrun.Result{}, ErrUnknownEntityType
	}

	if err := s.Lock.Acquire(ctx, office.String(), cmd.EntityType, cmd.CommandID); err != nil {
		if errors.Is(err, synclock.ErrAlreadyRunning) {
			s.rejectRun(cmd, err.Error())
			return syncrun.Result{}, ErrRunRejected
		}
		return syncrun.Result{}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Lock.Release(releaseCtx, office.String(), cmd.EntityType, cmd.CommandID); err != nil {
			s.Logger.Warn("release sync lock",
				zap.String("office_id", office.String()),
				zap.String("entity_type", cmd.EntityType),
				zap.Error(err))
		}
	}()

	opts := syncrun.Options{Full: cmd.Full}
	if cmd.ModifiedSince != nil {
		opts.ModifiedSince = *cmd.ModifiedSince
	}

	s.Logger.Info("sync run starting",
		zap.String("run_id", cmd.CommandID),
		zap.String("office_id", office.String()),
		zap.String("entity_type", cmd.EntityType),
		zap.Bool("full", cmd.Full),
		zap.String("requested_by", cmd.RequestedBy))

	return s.Engine.Run(ctx, cmd.CommandID, office, source, opts), nil
}

// rejectRun records a refused command as a failed run so the trigger's run
// ID resolves to a terminal status instead of dangling.
func (s *Service) rejectRun(cmd contracts.SyncCommand, message string) {
	event := contracts.SyncEvent{
		EventID:    s.NewID(),
		RunID:      cmd.CommandID,
		OfficeID:   cmd.OfficeID,
		EntityType: cmd.EntityType,
		EventType:  contracts.EventSyncFailed,
		Message:    message,
		OccurredAt: s.Now(),
		ShardID:    sharding.GetShardID(cmd.OfficeID),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.Logger.Warn("marshal rejection event", zap.Error(err))
		return
	}
	if err := s.Publish(sharding.EventSubject(cmd.OfficeID), payload); err != nil {
		s.Logger.Warn("publish rejection event", zap.Error(err))
	}
}
