package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pocketbroker-gate/internal/domain"
)

const selectProfile = `SELECT id, first_name, last_name, phone_number, pin_hash, risk_tolerance,
  exchange_api_key, onboarding_completed, created_at, updated_at
FROM profiles WHERE id = ?`

const upsertProfile = `INSERT INTO profiles (id, first_name, last_name, phone_number, pin_hash,
  risk_tolerance, exchange_api_key, onboarding_completed, created_at, updated_at)
VALUES (:id, :first_name, :last_name, :phone_number, :pin_hash,
  :risk_tolerance, :exchange_api_key, :onboarding_completed, :now, :now)
ON CONFLICT (id) DO UPDATE SET
  first_name = excluded.first_name,
  last_name = excluded.last_name,
  phone_number = excluded.phone_number,
  pin_hash = excluded.pin_hash,
  risk_tolerance = excluded.risk_tolerance,
  exchange_api_key = excluded.exchange_api_key,
  onboarding_completed = excluded.onboarding_completed,
  updated_at = excluded.updated_at`

// ProfileRepo provides data access for the profiles table using sqlx.
type ProfileRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db, now: time.Now}
}

func (r *ProfileRepo) Get(ctx context.Context, subjectID string) (*domain.Profile, error) {
	return getProfile(ctx, r.db, subjectID)
}

// Complete upserts every onboarding field with onboarding_completed=true in a
// single statement and returns the stored row.
func (r *ProfileRepo) Complete(ctx context.Context, subjectID string, c domain.ProfileCompletion) (*domain.Profile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	params := map[string]any{
		"id":                   subjectID,
		"first_name":           c.FirstName,
		"last_name":            c.LastName,
		"phone_number":         c.PhoneNumber,
		"pin_hash":             c.PINHash,
		"risk_tolerance":       string(c.RiskTolerance),
		"exchange_api_key":     c.ExchangeAPIKey,
		"onboarding_completed": true,
		"now":                  r.now().UTC(),
	}
	if _, err := tx.NamedExecContext(ctx, upsertProfile, params); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	p, err := getProfile(ctx, tx, subjectID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func getProfile(ctx context.Context, q sqlx.ExtContext, subjectID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := sqlx.GetContext(ctx, q, &p, q.Rebind(selectProfile), subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
