package shadow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casebridge/casebridge/internal/domain"
)

type EmailRepository struct {
	Pool *pgxpool.Pool
}

func NewEmailRepository(pool *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{Pool: pool}
}

func (r *EmailRepository) FindByExternalID(ctx context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Email, error) {
	var (
		e        domain.Email
		officeID string
		extID    int64
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT id, office_id, external_id,
		        constituent_external_id, case_external_id,
		        from_address, to_address, subject, direction,
		        received_at, triage_category, created_at, updated_at
		 FROM shadow_emails
		 WHERE office_id = $1 AND external_id = $2`,
		office.String(), externalID.Int64(),
	).Scan(
		&e.ID, &officeID, &extID,
		&e.ConstituentExternalID, &e.CaseExternalID,
		&e.FromAddress, &e.ToAddress, &e.Subject, &e.Direction,
		&e.ReceivedAt, &e.TriageCategory, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.OfficeID = office
	e.ExternalID = domain.TrustedExternalID(extID)
	return &e, nil
}

func (r *EmailRepository) Save(ctx context.Context, e *domain.Email) (*domain.Email, error) {
	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}

	saved := *e
	err := r.Pool.QueryRow(ctx,
		`INSERT INTO shadow_emails (
		   id, office_id, external_id,
		   constituent_external_id, case_external_id,
		   from_address, to_address, subject, direction,
		   received_at, triage_category
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (office_id, external_id) DO UPDATE SET
		   constituent_external_id = EXCLUDED.constituent_external_id,
		   case_external_id = EXCLUDED.case_external_id,
		   from_address = EXCLUDED.from_address,
		   to_address = EXCLUDED.to_address,
		   subject = EXCLUDED.subject,
		   direction = EXCLUDED.direction,
		   received_at = EXCLUDED.received_at,
		   triage_category = COALESCE(EXCLUDED.triage_category, shadow_emails.triage_category),
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		id, e.OfficeID.String(), e.ExternalID.Int64(),
		e.ConstituentExternalID, e.CaseExternalID,
		e.FromAddress, e.ToAddress, e.Subject, e.Direction,
		e.ReceivedAt, e.TriageCategory,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
