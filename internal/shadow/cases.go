package shadow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casebridge/casebridge/internal/domain"
)

type CaseRepository struct {
	Pool *pgxpool.Pool
}

func NewCaseRepository(pool *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{Pool: pool}
}

// FindByExternalID looks up the shadow row for (office, externalID).
// Returns ErrNotFound when no row exists, which is the normal create
// branch for sync, not a failure.
func (r *CaseRepository) FindByExternalID(ctx context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Case, error) {
	var (
		c        domain.Case
		officeID string
		extID    int64
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT id, office_id, external_id,
		        constituent_external_id, case_type_id, status_id,
		        category_type_id, contact_type_id, assigned_to_id,
		        summary, review_date, created_at, updated_at
		 FROM shadow_cases
		 WHERE office_id = $1 AND external_id = $2`,
		office.String(), externalID.Int64(),
	).Scan(
		&c.ID, &officeID, &extID,
		&c.ConstituentExternalID, &c.CaseTypeID, &c.StatusID,
		&c.CategoryTypeID, &c.ContactTypeID, &c.AssignedToID,
		&c.Summary, &c.ReviewDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.OfficeID = office
	c.ExternalID = domain.TrustedExternalID(extID)
	return &c, nil
}

// Save upserts the case on (office_id, external_id), assigning the internal
// ID on first save. The returned entity carries the stored identity and
// timestamps.
func (r *CaseRepository) Save(ctx context.Context, c *domain.Case) (*domain.Case, error) {
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}

	saved := *c
	err := r.Pool.QueryRow(ctx,
		`INSERT INTO shadow_cases (
		   id, office_id, external_id,
		   constituent_external_id, case_type_id, status_id,
		   category_type_id, contact_type_id, assigned_to_id,
		   summary, review_date
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (office_id, external_id) DO UPDATE SET
		   constituent_external_id = EXCLUDED.constituent_external_id,
		   case_type_id = EXCLUDED.case_type_id,
		   status_id = EXCLUDED.status_id,
		   category_type_id = EXCLUDED.category_type_id,
		   contact_type_id = EXCLUDED.contact_type_id,
		   assigned_to_id = EXCLUDED.assigned_to_id,
		   summary = EXCLUDED.summary,
		   review_date = EXCLUDED.review_date,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		id, c.OfficeID.String(), c.ExternalID.Int64(),
		c.ConstituentExternalID, c.CaseTypeID, c.StatusID,
		c.CategoryTypeID, c.ContactTypeID, c.AssignedToID,
		c.Summary, c.ReviewDate,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
