package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulFidika/meterkit/entitlements"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultLockTimeout bounds row lock waits inside Update.
const DefaultLockTimeout = 3 * time.Second

const entitlementCols = `id, user_id, sku, remaining, expires_at, created_at, updated_at`

// EntitlementStore implements entitlements.Store with SELECT ... FOR UPDATE
// inside a transaction whose lock_timeout is set to the configured wait.
type EntitlementStore struct {
	db          DB
	lockTimeout time.Duration
}

// NewEntitlementStore creates a store. If lockTimeout <= 0, DefaultLockTimeout is used.
func NewEntitlementStore(db DB, lockTimeout time.Duration) *EntitlementStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &EntitlementStore{db: db, lockTimeout: lockTimeout}
}

func (s *EntitlementStore) Find(ctx context.Context, userID, sku string) (*entitlements.Entitlement, error) {
	e, err := scanEntitlement(s.db.QueryRow(ctx,
		`SELECT `+entitlementCols+` FROM entitlements WHERE user_id=$1 AND sku=$2`, userID, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entitlement: %w", err)
	}
	return e, nil
}

func (s *EntitlementStore) Update(ctx context.Context, userID, sku string, seed *entitlements.Entitlement, fn entitlements.MutateFunc) (*entitlements.Entitlement, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeoutSetting(s.lockTimeout)); err != nil {
		return nil, fmt.Errorf("set lock_timeout: %w", err)
	}

	if seed != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO entitlements (id, user_id, sku, remaining, expires_at) VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (user_id, sku) DO NOTHING`,
			uuid.New(), userID, sku, seed.Remaining, seed.ExpiresAt)
		if err != nil {
			return nil, mapError(err)
		}
	}

	e, err := scanEntitlement(tx.QueryRow(ctx,
		`SELECT `+entitlementCols+` FROM entitlements WHERE user_id=$1 AND sku=$2 FOR UPDATE`, userID, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entitlements.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err)
	}

	write, err := fn(e)
	if err != nil {
		return nil, err
	}
	if write {
		err := tx.QueryRow(ctx,
			`UPDATE entitlements SET remaining=$2, expires_at=$3, updated_at=now() WHERE id=$1 RETURNING updated_at`,
			uuid.MustParse(e.ID), e.Remaining, e.ExpiresAt).Scan(&e.UpdatedAt)
		if err != nil {
			return nil, mapError(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

func lockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

func scanEntitlement(row pgx.Row) (*entitlements.Entitlement, error) {
	var e entitlements.Entitlement
	var id uuid.UUID
	if err := row.Scan(&id, &e.UserID, &e.SKU, &e.Remaining, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ID = id.String()
	return &e, nil
}
