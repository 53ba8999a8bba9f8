// Package pgstore holds the PostgreSQL implementations of the ledger store
// and the audit activity log.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulFidika/meterkit/entitlements"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the stores use.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	connectRetries = 10
	retryDelay     = 2 * time.Second
	pingTimeout    = 2 * time.Second
	sleep          = time.Sleep
)

// NewPool parses dsn and pings until the database answers or retries run out.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	var lastErr error
	for i := 0; i < connectRetries; i++ {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			lastErr = err
			sleep(retryDelay)
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		lastErr = err
		pool.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sleep(retryDelay)
	}
	return nil, fmt.Errorf("db ping retries exhausted: %w", lastErr)
}

// SQLSTATE codes reported as entitlements.ErrContention.
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeCheckViolation       = "23514"
)

// mapError turns lock-wait failures into entitlements.ErrContention and a
// violated remaining >= 0 check into entitlements.ErrInsufficientCredit.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return fmt.Errorf("%w: %s", entitlements.ErrContention, pgErr.Message)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s", entitlements.ErrInsufficientCredit, pgErr.Message)
	}
	return err
}
