package syncrun

import (
	"context"
	"errors"
	"fmt"

	"github.com/casebridge/casebridge/internal/contracts"
	"github.com/casebridge/casebridge/internal/domain"
	"github.com/casebridge/casebridge/internal/legacy"
	"github.com/casebridge/casebridge/internal/shadow"
)

type CaseSearcher interface {
	SearchCases(ctx context.Context, office domain.OfficeID, q legacy.CaseQuery) ([]legacy.Case, error)
}

type CaseRepository interface {
	FindByExternalID(ctx context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Case, error)
	Save(ctx context.Context, c *domain.Case) (*domain.Case, error)
}

// CaseSource feeds the engine legacy cases.
type CaseSource struct {
	Client CaseSearcher
	Repo   CaseRepository
}

func NewCaseSource(client CaseSearcher, repo CaseRepository) *CaseSource {
	return &CaseSource{Client: client, Repo: repo}
}

func (s *CaseSource) EntityType() string { return contracts.EntityCases }

func (s *CaseSource) FetchPage(ctx context.Context, office domain.OfficeID, window Window, pageNo, pageSize int) ([]Item, error) {
	records, err := s.Client.SearchCases(ctx, office, legacy.CaseQuery{
		DateField:      window.Field,
		From:           window.From,
		To:             window.To,
		PageNo:         pageNo,
		ResultsPerPage: pageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, caseItem{source: s, office: office, record: rec})
	}
	return items, nil
}

type caseItem struct {
	source *CaseSource
	office domain.OfficeID
	record legacy.Case
}

func (it caseItem) ExternalID() int64 { return it.record.ID }

func (it caseItem) Reconcile(ctx context.Context) (Outcome, error) {
	externalID, err := domain.ParseExternalID(it.record.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("case %d: %w", it.record.ID, err)
	}
	fields := caseFields(it.record)

	existing, err := it.source.Repo.FindByExternalID(ctx, it.office, externalID)
	switch {
	case err == nil:
		updated, changed := existing.UpdateFromLegacy(fields)
		saved, err := it.source.Repo.Save(ctx, &updated)
		if err != nil {
			return Outcome{}, fmt.Errorf("save case %d: %w", it.record.ID, err)
		}
		return Outcome{InternalID: saved.ID, ChangedFields: changed}, nil

	case errors.Is(err, shadow.ErrNotFound):
		fresh := domain.NewCaseFromLegacy(it.office, externalID, fields)
		saved, err := it.source.Repo.Save(ctx, &fresh)
		if err != nil {
			return Outcome{}, fmt.Errorf("save case %d: %w", it.record.ID, err)
		}
		return Outcome{Created: true, InternalID: saved.ID}, nil

	default:
		return Outcome{}, fmt.Errorf("find case %d: %w", it.record.ID, err)
	}
}

func caseFields(rec legacy.Case) domain.CaseFields {
	return domain.CaseFields{
		ConstituentExternalID: rec.ConstituentID,
		CaseTypeID:            rec.CaseTypeID,
		StatusID:              rec.StatusID,
		CategoryTypeID:        rec.CategoryID,
		ContactTypeID:         rec.ContactTypeID,
		AssignedToID:          rec.AssignedToID,
		Summary:               rec.Summary,
		ReviewDate:            rec.ReviewDate,
	}
}
