package authgin

import (
	"net/http"

	"github.com/PaulFidika/meterkit/audit"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/PaulFidika/meterkit/reqid"
	"github.com/gin-gonic/gin"
)

// Audit opens an audit scope for every request and finishes it exactly once,
// after the handler chain returns or panics. A panic is recorded as 500 and
// re-raised for the outer recovery middleware.
func Audit(p *audit.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := p.Begin(c.Request)
		ctx, holder := identity.WithHolder(scope.Context(c.Request.Context()))
		c.Request = c.Request.WithContext(ctx)
		c.Header(reqid.Header, scope.RequestID())

		defer func() {
			if rec := recover(); rec != nil {
				scope.Finish(ctx, http.StatusInternalServerError, holder.Get())
				panic(rec)
			}
			scope.Finish(ctx, c.Writer.Status(), holder.Get())
		}()
		c.Next()
	}
}
