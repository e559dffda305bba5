package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Office roles. All members may read shadow data and trigger syncs; only
// owners and admins manage membership.
const (
	RoleOwner    = "owner"
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

type Operator struct {
	ID           string
	Email        string
	PasswordHash string
}

type Office struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OfficeMembership struct {
	OfficeID   string `json:"office_id"`
	OfficeName string `json:"office_name"`
	Role       string `json:"role"`
}

type RefreshToken struct {
	TokenID    string
	OperatorID string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

type Repository interface {
	EnsureSchema(ctx context.Context) error
	CreateOperator(ctx context.Context, op Operator) error
	FindOperatorByEmail(ctx context.Context, email string) (Operator, error)
	FindOperatorByID(ctx context.Context, operatorID string) (Operator, error)

	CreateOffice(ctx context.Context, office Office, creatorOperatorID string) error
	DeleteOffice(ctx context.Context, officeID string) error
	AddMemberWithRole(ctx context.Context, officeID, operatorID, role string) error
	AddMemberByEmailWithRole(ctx context.Context, officeID, email, role string) error
	SetMemberRoleByEmail(ctx context.Context, officeID, email, role string) error
	GetMembershipRole(ctx context.Context, operatorID, officeID string) (string, error)
	ListOfficesForOperator(ctx context.Context, operatorID string) ([]OfficeMembership, error)

	CreateRefreshToken(ctx context.Context, token RefreshToken) error
	FindRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID string) error
}

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool}
}

const createOperatorsSQL = `
CREATE TABLE IF NOT EXISTS operators (
  id text PRIMARY KEY,
  email text NOT NULL UNIQUE,
  password_hash text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
)`

const createOfficesSQL = `
CREATE TABLE IF NOT EXISTS offices (
  id text PRIMARY KEY,
  name text NOT NULL,
  created_by text NOT NULL REFERENCES operators(id),
  created_at timestamptz NOT NULL DEFAULT now()
)`

const createOfficeMembersSQL = `
CREATE TABLE IF NOT EXISTS office_members (
  office_id text NOT NULL REFERENCES offices(id) ON DELETE CASCADE,
  operator_id text NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
  role text NOT NULL DEFAULT 'operator',
  added_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (office_id, operator_id)
)`

const createRefreshTokensSQL = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
  token_id text PRIMARY KEY,
  operator_id text NOT NULL REFERENCES operators(id) ON DELETE CASCADE,
  token_hash text NOT NULL UNIQUE,
  expires_at timestamptz NOT NULL,
  revoked_at timestamptz,
  created_at timestamptz NOT NULL DEFAULT now()
)`

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		createOperatorsSQL,
		createOfficesSQL,
		createOfficeMembersSQL,
		createRefreshTokensSQL,
	} {
		if _, err := r.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) CreateOperator(ctx context.Context, op Operator) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO operators (id, email, password_hash) VALUES ($1, $2, $3)`,
		op.ID, op.Email, op.PasswordHash,
	)
	return err
}

func (r *PostgresRepository) FindOperatorByEmail(ctx context.Context, email string) (Operator, error) {
	var op Operator
	err := r.Pool.QueryRow(ctx,
		`SELECT id, email, password_hash FROM operators WHERE email = $1`,
		email,
	).Scan(&op.ID, &op.Email, &op.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operator{}, ErrNotFound
		}
		return Operator{}, err
	}
	return op, nil
}

func (r *PostgresRepository) FindOperatorByID(ctx context.Context, operatorID string) (Operator, error) {
	var op Operator
	err := r.Pool.QueryRow(ctx,
		`SELECT id, email, password_hash FROM operators WHERE id = $1`,
		operatorID,
	).Scan(&op.ID, &op.Email, &op.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operator{}, ErrNotFound
		}
		return Operator{}, err
	}
	return op, nil
}

func (r *PostgresRepository) CreateOffice(ctx context.Context, office Office, creatorOperatorID string) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO offices (id, name, created_by) VALUES ($1, $2, $3)`,
		office.ID, office.Name, creatorOperatorID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO office_members (office_id, operator_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (office_id, operator_id) DO UPDATE SET role = EXCLUDED.role`,
		office.ID, creatorOperatorID, RoleOwner,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) DeleteOffice(ctx context.Context, officeID string) error {
	res, err := r.Pool.Exec(ctx, `DELETE FROM offices WHERE id = $1`, officeID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AddMemberWithRole(ctx context.Context, officeID, operatorID, role string) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO office_members (office_id, operator_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (office_id, operator_id) DO UPDATE SET role = EXCLUDED.role`,
		officeID, operatorID, role,
	)
	return err
}

func (r *PostgresRepository) AddMemberByEmailWithRole(ctx context.Context, officeID, email, role string) error {
	var operatorID string
	err := r.Pool.QueryRow(ctx, `SELECT id FROM operators WHERE email = $1`, email).Scan(&operatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return r.AddMemberWithRole(ctx, officeID, operatorID, role)
}

func (r *PostgresRepository) SetMemberRoleByEmail(ctx context.Context, officeID, email, role string) error {
	res, err := r.Pool.Exec(ctx,
		`UPDATE office_members om
		 SET role = $3
		 FROM operators o
		 WHERE om.office_id = $1 AND om.operator_id = o.id AND o.email = $2`,
		officeID, email, role,
	)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetMembershipRole(ctx context.Context, operatorID, officeID string) (string, error) {
	var role string
	err := r.Pool.QueryRow(ctx,
		`SELECT role FROM office_members WHERE office_id = $1 AND operator_id = $2`,
		officeID, operatorID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

func (r *PostgresRepository) ListOfficesForOperator(ctx context.Context, operatorID string) ([]OfficeMembership, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT o.id, o.name, om.role
		 FROM offices o
		 INNER JOIN office_members om ON om.office_id = o.id
		 WHERE om.operator_id = $1
		 ORDER BY o.created_at DESC`,
		operatorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offices := make([]OfficeMembership, 0)
	for rows.Next() {
		var m OfficeMembership
		if err := rows.Scan(&m.OfficeID, &m.OfficeName, &m.Role); err != nil {
			return nil, err
		}
		offices = append(offices, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return offices, nil
}

func (r *PostgresRepository) CreateRefreshToken(ctx context.Context, token RefreshToken) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token_id, operator_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		token.TokenID, token.OperatorID, token.TokenHash, token.ExpiresAt,
	)
	return err
}

func (r *PostgresRepository) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	var rt RefreshToken
	err := r.Pool.QueryRow(ctx,
		`SELECT token_id, operator_id, token_hash, expires_at, revoked_at
		 FROM refresh_tokens
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`,
		tokenHash,
	).Scan(&rt.TokenID, &rt.OperatorID, &rt.TokenHash, &rt.ExpiresAt, &rt.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefreshToken{}, ErrNotFound
		}
		return RefreshToken{}, err
	}
	return rt, nil
}

func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	_, err := r.Pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now() WHERE token_id = $1`,
		tokenID,
	)
	return err
}
