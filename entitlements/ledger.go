package entitlements

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxUserIDLen bounds the stored user identifier.
const MaxUserIDLen = 255

var reSKU = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,99}$`)

// Ledger is the only writer of remaining counts. All mutations run inside
// Store.Update so concurrent consumers of one (user, sku) are serialized.
type Ledger struct {
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
}

type Option func(*Ledger)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidateKey checks the (user, sku) pair and returns it normalized.
func ValidateKey(userID, sku string) (string, string, error) {
	userID = strings.TrimSpace(userID)
	sku = strings.TrimSpace(sku)
	if userID == "" || len(userID) > MaxUserIDLen {
		return "", "", fmt.Errorf("%w: user id", ErrInvalidArgument)
	}
	if !reSKU.MatchString(sku) {
		return "", "", fmt.Errorf("%w: sku %q", ErrInvalidArgument, sku)
	}
	return userID, sku, nil
}

// Find returns the current record, or nil when none exists. No lock is taken.
func (l *Ledger) Find(ctx context.Context, userID, sku string) (*Entitlement, error) {
	userID, sku, err := ValidateKey(userID, sku)
	if err != nil {
		return nil, err
	}
	return l.store.Find(ctx, userID, sku)
}

// Issue creates the record or adds max(amount, 0) to it. A new record takes
// expiresAt as given (nil never expires). An existing expiry is only moved
// later; a grant without expiry leaves it unchanged. A top-up that would
// overflow remaining fails with ErrInvalidArgument and writes nothing.
func (l *Ledger) Issue(ctx context.Context, userID, sku string, amount int64, expiresAt *time.Time) (*Entitlement, error) {
	userID, sku, err := ValidateKey(userID, sku)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		amount = 0
	}
	seed := &Entitlement{UserID: userID, SKU: sku, ExpiresAt: expiresAt}
	e, err := l.store.Update(ctx, userID, sku, seed, func(e *Entitlement) (bool, error) {
		if e.Remaining > math.MaxInt64-amount {
			return false, fmt.Errorf("%w: remaining would overflow", ErrInvalidArgument)
		}
		e.Remaining += amount
		e.ExpiresAt = laterExpiry(e.ExpiresAt, expiresAt)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("issue %s/%s: %w", userID, sku, err)
	}
	l.log.WithFields(logrus.Fields{"user": userID, "sku": sku, "amount": amount, "remaining": e.Remaining}).Debug("entitlement issued")
	return e, nil
}

// Consume atomically decrements remaining by count. It reports false, without
// writing, when the record is missing, expired or holds fewer than count.
func (l *Ledger) Consume(ctx context.Context, userID, sku string, count int64) (bool, error) {
	_, err := l.ConsumeOrError(ctx, userID, sku, count)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInsufficientCredit), errors.Is(err, ErrExpired):
		return false, nil
	default:
		return false, err
	}
}

// ConsumeOrError is Consume reporting the reason for refusal as ErrNotFound,
// ErrExpired or ErrInsufficientCredit. On success it returns the updated record.
func (l *Ledger) ConsumeOrError(ctx context.Context, userID, sku string, count int64) (*Entitlement, error) {
	userID, sku, err := ValidateKey(userID, sku)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidArgument)
	}
	e, err := l.store.Update(ctx, userID, sku, nil, func(e *Entitlement) (bool, error) {
		if e.Expired(l.now()) {
			return false, ErrExpired
		}
		if e.Remaining < count {
			return false, ErrInsufficientCredit
		}
		e.Remaining -= count
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func laterExpiry(stored, supplied *time.Time) *time.Time {
	if stored == nil || supplied == nil {
		return stored
	}
	if supplied.After(*stored) {
		t := *supplied
		return &t
	}
	return stored
}
