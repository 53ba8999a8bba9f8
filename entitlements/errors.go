package entitlements

import "errors"

var (
	// ErrNotFound means no entitlement row exists for (user, sku).
	ErrNotFound = errors.New("entitlement not found")
	// ErrInsufficientCredit means the row exists but holds fewer credits than requested.
	ErrInsufficientCredit = errors.New("insufficient entitlement")
	// ErrExpired means the grant's expiry has passed.
	ErrExpired = errors.New("entitlement expired")
	// ErrContention means the row lock could not be acquired within the configured wait.
	ErrContention = errors.New("entitlement busy, retry later")
	// ErrInvalidArgument reports a malformed user id, sku or count.
	ErrInvalidArgument = errors.New("invalid entitlement argument")
)
