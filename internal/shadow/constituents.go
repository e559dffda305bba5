package shadow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casebridge/casebridge/internal/domain"
)

type ConstituentRepository struct {
	Pool *pgxpool.Pool
}

func NewConstituentRepository(pool *pgxpool.Pool) *ConstituentRepository {
	return &ConstituentRepository{Pool: pool}
}

func (r *ConstituentRepository) FindByExternalID(ctx context.Context, office domain.OfficeID, externalID domain.ExternalID) (*domain.Constituent, error) {
	var (
		c        domain.Constituent
		officeID string
		extID    int64
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT id, office_id, external_id,
		        title_id, first_name, last_name, email, phone,
		        address1, address2, postcode, created_at, updated_at
		 FROM shadow_constituents
		 WHERE office_id = $1 AND external_id = $2`,
		office.String(), externalID.Int64(),
	).Scan(
		&c.ID, &officeID, &extID,
		&c.TitleID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.Address1, &c.Address2, &c.Postcode, &c.CreatedAt, &c.UpdatedAt,
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

func (r *ConstituentRepository) Save(ctx context.Context, c *domain.Constituent) (*domain.Constituent, error) {
	id := c.ID
	if id == "" {
		id = uuid.New().String()
	}

	saved := *c
	err := r.Pool.QueryRow(ctx,
		`INSERT INTO shadow_constituents (
		   id, office_id, external_id,
		   title_id, first_name, last_name, email, phone,
		   address1, address2, postcode
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (office_id, external_id) DO UPDATE SET
		   title_id = EXCLUDED.title_id,
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   email = EXCLUDED.email,
		   phone = EXCLUDED.phone,
		   address1 = EXCLUDED.address1,
		   address2 = EXCLUDED.address2,
		   postcode = EXCLUDED.postcode,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		id, c.OfficeID.String(), c.ExternalID.Int64(),
		c.TitleID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.Address1, c.Address2, c.Postcode,
	).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
