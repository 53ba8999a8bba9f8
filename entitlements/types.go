package entitlements

import (
	"context"
	"time"
)

// Entitlement is a user's consumable credit balance for one product (SKU).
type Entitlement struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	SKU       string     `json:"sku"`
	Remaining int64      `json:"remaining"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the grant has an expiry at or before now.
func (e *Entitlement) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Clone returns a deep copy.
func (e *Entitlement) Clone() *Entitlement {
	if e == nil {
		return nil
	}
	c := *e
	if e.ExpiresAt != nil {
		t := *e.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// MutateFunc edits e in place while the store holds the row lock. Returning
// write=false leaves the stored row untouched.
type MutateFunc func(e *Entitlement) (write bool, err error)

// Store persists entitlements and serializes writers per (user, sku).
type Store interface {
	// Find reads a row without locking. Missing rows return (nil, nil).
	Find(ctx context.Context, userID, sku string) (*Entitlement, error)

	// Update acquires the exclusive lock for (userID, sku), loads the row and
	// runs fn on it. When seed is non-nil a missing row is created from seed
	// first; otherwise a missing row yields ErrNotFound and fn is not called.
	// Lock waits are bounded and report ErrContention.
	Update(ctx context.Context, userID, sku string, seed *Entitlement, fn MutateFunc) (*Entitlement, error)
}
