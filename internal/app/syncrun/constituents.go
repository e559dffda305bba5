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

type ConstituentSearcher interface {
	SearchConstituents(ctx context.Context, office domain.OfficeID, q legacy.ConstituentQuery) ([]legacy.Constituent, error)
}

type ConstituentRepository interface {
	FindByExternalID(ctx context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Constituent, error)
	Save(ctx context.Context, c *domain.Constituent) (*domain.Constituent, error)
}

// ConstituentSource feeds the engine legacy constituents.
type ConstituentSource struct {
	Client ConstituentSearcher
	Repo   ConstituentRepository
}

func NewConstituentSource(client ConstituentSearcher, repo ConstituentRepository) *ConstituentSource {
	return &ConstituentSource{Client: client, Repo: repo}
}

func (s *ConstituentSource) EntityType() string { return contracts.EntityConstituents }

func (s *ConstituentSource) FetchPage(ctx context.Context, office domain.OfficeID, window Window, pageNo, pageSize int) ([]Item, error) {
	q := legacy.ConstituentQuery{Page: pageNo, Limit: pageSize}
	from := window.From
	if window.Field == legacy.DateFieldCreated {
		q.CreatedAfter = &from
	} else {
		q.ModifiedAfter = &from
	}

	records, err := s.Client.SearchConstituents(ctx, office, q)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, constituentItem{source: s, office: office, record: rec})
	}
	return items, nil
}

type constituentItem struct {
	source *ConstituentSource
	office domain.OfficeID
	record legacy.Constituent
}

func (it constituentItem) ExternalID() int64 { return it.record.ID }

func (it constituentItem) Reconcile(ctx context.Context) (Outcome, error) {
	externalID, err := domain.ParseExternalID(it.record.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("constituent %d: %w", it.record.ID, err)
	}
	fields := constituentFields(it.record)

	existing, err := it.source.Repo.FindByExternalID(ctx, it.office, externalID)
	switch {
	case err == nil:
		updated, changed := existing.UpdateFromLegacy(fields)
		saved, err := it.source.Repo.Save(ctx, &updated)
		if err != nil {
			return Outcome{}, fmt.Errorf("save constituent %d: %w", it.record.ID, err)
		}
		return Outcome{InternalID: saved.ID, ChangedFields: changed}, nil

	case errors.Is(err, shadow.ErrNotFound):
		fresh := domain.NewConstituentFromLegacy(it.office, externalID, fields)
		saved, err := it.source.Repo.Save(ctx, &fresh)
		if err != nil {
			return Outcome{}, fmt.Errorf("save constituent %d: %w", it.record.ID, err)
		}
		return Outcome{Created: true, InternalID: saved.ID}, nil

	default:
		return Outcome{}, fmt.Errorf("find constituent %d: %w", it.record.ID, err)
	}
}

func constituentFields(rec legacy.Constituent) domain.ConstituentFields {
	return domain.ConstituentFields{
		TitleID:   rec.TitleID,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     rec.Email,
		Phone:     rec.Phone,
		Address1:  rec.Address1,
		Address2:  rec.Address2,
		Postcode:  rec.Postcode,
	}
}
