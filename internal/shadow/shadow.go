// Package shadow is the Postgres shadow store mirroring legacy Caseworker
// records per office. Rows are only ever inserted or corrected by sync,
// never deleted. The unique (office_id, external_id) index per table is the
// join key back to the legacy system and the safety net against duplicate
// rows.
package shadow

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

const createCasesTableSQL = `
CREATE TABLE IF NOT EXISTS shadow_cases (
  id text PRIMARY KEY,
  office_id text NOT NULL,
  external_id bigint NOT NULL,
  constituent_external_id bigint,
  case_type_id bigint,
  status_id bigint,
  category_type_id bigint,
  contact_type_id bigint,
  assigned_to_id bigint,
  summary text,
  review_date timestamptz,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  UNIQUE (office_id, external_id)
)`

const createConstituentsTableSQL = `
CREATE TABLE IF NOT EXISTS shadow_constituents (
  id text PRIMARY KEY,
  office_id text NOT NULL,
  external_id bigint NOT NULL,
  title_id bigint,
  first_name text,
  last_name text,
  email text,
  phone text,
  address1 text,
  address2 text,
  postcode text,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  UNIQUE (office_id, external_id)
)`

const createEmailsTableSQL = `
CREATE TABLE IF NOT EXISTS shadow_emails (
  id text PRIMARY KEY,
  office_id text NOT NULL,
  external_id bigint NOT NULL,
  constituent_external_id bigint,
  case_external_id bigint,
  from_address text,
  to_address text,
  subject text,
  direction text,
  received_at timestamptz,
  triage_category text,
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now(),
  UNIQUE (office_id, external_id)
)`

// EnsureSchema creates the shadow tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{createCasesTableSQL, createConstituentsTableSQL, createEmailsTableSQL} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
