package syncrun

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/contracts"
	"github.com/casebridge/casebridge/internal/domain"
	"github.com/casebridge/casebridge/internal/legacy"
	"github.com/casebridge/casebridge/internal/shadow"
	"github.com/casebridge/casebridge/internal/triage"
)

type EmailSearcher interface {
	SearchEmails(ctx context.Context, office domain.OfficeID, q legacy.EmailQuery) ([]legacy.Email, error)
}

type EmailRepository interface {
	FindByExternalID(ctx context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Email, error)
	Save(ctx context.Context, e *domain.Email) (*domain.Email, error)
}

// EmailSource feeds the engine legacy emails. When a classifier is
// configured, newly created emails are sent for triage before the first
// save; classifier failures are logged and ignored.
type EmailSource struct {
	Client     EmailSearcher
	Repo       EmailRepository
	Classifier triage.Classifier
	Logger     *zap.Logger
}

func NewEmailSource(client EmailSearcher, repo EmailRepository, classifier triage.Classifier, logger *zap.Logger) *EmailSource {
	return &EmailSource{Client: client, Repo: repo, Classifier: classifier, Logger: logger}
}

func (s *EmailSource) EntityType() string { return contracts.EntityEmails }

func (s *EmailSource) FetchPage(ctx context.Context, office domain.OfficeID, window Window, pageNo, pageSize int) ([]Item, error) {
	q := legacy.EmailQuery{Page: pageNo, Limit: pageSize}
	from := window.From
	if window.Field == legacy.DateFieldCreated {
		q.CreatedAfter = &from
	} else {
		q.ModifiedAfter = &from
	}

	records, err := s.Client.SearchEmails(ctx, office, q)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, emailItem{source: s, office: office, record: rec})
	}
	return items, nil
}

type emailItem struct {
	source *EmailSource
	office domain.OfficeID
	record legacy.Email
}

func (it emailItem) ExternalID() int64 { return it.record.ID }

func (it emailItem) Reconcile(ctx context.Context) (Outcome, error) {
	externalID, err := domain.ParseExternalID(it.record.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("email %d: %w", it.record.ID, err)
	}
	fields := emailFields(it.record)

	existing, err := it.source.Repo.FindByExternalID(ctx, it.office, externalID)
	switch {
	case err == nil:
		updated, changed := existing.UpdateFromLegacy(fields)
		saved, err := it.source.Repo.Save(ctx, &updated)
		if err != nil {
			return Outcome{}, fmt.Errorf("save email %d: %w", it.record.ID, err)
		}
		return Outcome{InternalID: saved.ID, ChangedFields: changed}, nil

	case errors.Is(err, shadow.ErrNotFound):
		fresh := domain.NewEmailFromLegacy(it.office, externalID, fields)
		fresh = it.source.classify(ctx, fresh)
		saved, err := it.source.Repo.Save(ctx, &fresh)
		if err != nil {
			return Outcome{}, fmt.Errorf("save email %d: %w", it.record.ID, err)
		}
		return Outcome{Created: true, InternalID: saved.ID}, nil

	default:
		return Outcome{}, fmt.Errorf("find email %d: %w", it.record.ID, err)
	}
}

func (s *EmailSource) classify(ctx context.Context, e domain.Email) domain.Email {
	if s.Classifier == nil {
		return e
	}
	req := triage.Request{OfficeID: e.OfficeID.String()}
	if e.Subject != nil {
		req.Subject = *e.Subject
	}
	if e.FromAddress != nil {
		req.FromAddress = *e.FromAddress
	}

	category, err := s.Classifier.Classify(ctx, req)
	if err != nil {
		s.Logger.Warn("email triage failed",
			zap.String("office_id", e.OfficeID.String()),
			zap.String("external_id", e.ExternalID.String()),
			zap.Error(err))
		return e
	}
	if category == "" {
		return e
	}
	return e.WithTriageCategory(category)
}

func emailFields(rec legacy.Email) domain.EmailFields {
	return domain.EmailFields{
		ConstituentExternalID: rec.ConstituentID,
		CaseExternalID:        rec.CaseID,
		FromAddress:           rec.FromAddress,
		ToAddress:             rec.ToAddress,
		Subject:               rec.Subject,
		Direction:             rec.Direction,
		ReceivedAt:            rec.ReceivedAt,
	}
}
