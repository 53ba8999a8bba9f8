// Package ginutil holds small response and rate-limit helpers shared by the
// gin handlers.
package ginutil

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Rate limit bucket names.
const (
	RLAuthLogin          = "auth_login"
	RLEntitlementConsume = "entitlement_consume"
	RLCheckoutMockPay    = "checkout_mock_pay"
	RLAdminIssue         = "admin_entitlement_issue"
)

// RateLimiter is satisfied by ratelimit/memory and ratelimit/redis.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

// AllowNamed keys the bucket by the caller's owner key when authenticated and
// by client IP otherwise. Limiter errors fail open.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := c.ClientIP()
	if id := identity.FromContext(c.Request.Context()); id.IsAuthenticated() {
		key = id.OwnerKey()
	}
	ok, err := rl.AllowNamed(c.Request.Context(), bucket, key)
	if err != nil {
		logrus.WithError(err).WithField("bucket", bucket).Warn("rate limiter unavailable")
		return true
	}
	return ok
}

func abort(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func BadRequest(c *gin.Context, code string)   { abort(c, http.StatusBadRequest, code) }
func Unauthorized(c *gin.Context, code string) { abort(c, http.StatusUnauthorized, code) }
func Forbidden(c *gin.Context, code string)    { abort(c, http.StatusForbidden, code) }
func Conflict(c *gin.Context, code string)     { abort(c, http.StatusConflict, code) }
func ServerErr(c *gin.Context, code string)    { abort(c, http.StatusInternalServerError, code) }

func TooMany(c *gin.Context) { abort(c, http.StatusTooManyRequests, "rate_limited") }

// Unavailable answers 503 with a Retry-After hint in whole seconds.
func Unavailable(c *gin.Context, code string, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	abort(c, http.StatusServiceUnavailable, code)
}

// ServerErrWithLog logs err with the request path before answering 500.
func ServerErrWithLog(c *gin.Context, code string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{"path": c.Request.URL.Path, "code": code}).Error("request failed")
	ServerErr(c, code)
}
