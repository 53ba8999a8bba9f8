package authgin

import (
	"github.com/PaulFidika/meterkit/adapters/ginutil"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
)

const ctxIdentityKey = "auth.identity"

// AuthOptional resolves the bearer token and attaches the identity (possibly
// Anonymous) to the request context. It never rejects a request.
func AuthOptional(gate *core.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, id := gate.Authenticate(c.Request)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ctxIdentityKey, id)
		c.Next()
	}
}

// AuthRequired rejects Anonymous callers with 401. Run after AuthOptional.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !identity.FromContext(c.Request.Context()).IsAuthenticated() {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers without role: 401 when anonymous, 403 otherwise.
func RequireRole(role identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity.FromContext(c.Request.Context())
		if !id.IsAuthenticated() {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		if !id.HasRole(role) {
			ginutil.Forbidden(c, "forbidden")
			return
		}
		c.Next()
	}
}

// IdentityFromGin returns the identity attached by AuthOptional.
func IdentityFromGin(c *gin.Context) identity.Identity {
	if v, ok := c.Get(ctxIdentityKey); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	return identity.FromContext(c.Request.Context())
}
