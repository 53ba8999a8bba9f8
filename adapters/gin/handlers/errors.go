package handlers

import (
	"errors"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	"github.com/PaulFidika/meterkit/entitlements"
	"github.com/gin-gonic/gin"
)

// ledgerError maps ledger sentinels onto status codes.
func ledgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entitlements.ErrInvalidArgument):
		ginutil.BadRequest(c, "invalid_request")
	case errors.Is(err, entitlements.ErrInsufficientCredit):
		ginutil.Conflict(c, "insufficient_entitlement")
	case errors.Is(err, entitlements.ErrExpired):
		ginutil.Conflict(c, "entitlement_expired")
	case errors.Is(err, entitlements.ErrNotFound):
		ginutil.Conflict(c, "insufficient_entitlement")
	case errors.Is(err, entitlements.ErrContention):
		ginutil.Unavailable(c, "entitlement_busy", RetryAfter)
	default:
		ginutil.ServerErrWithLog(c, "entitlement_failed", err)
	}
}
