package handlers

import (
	"net/http"
	"time"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
)

// RetryAfter is the hint sent with 503 when a ledger row stays locked.
var RetryAfter = time.Second

func HandleMeEntitlementsConsumePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type consumeReq struct {
		SKU   string `json:"sku"`
		Count *int64 `json:"count"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLEntitlementConsume) {
			ginutil.TooMany(c)
			return
		}
		var req consumeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		count := int64(1)
		if req.Count != nil {
			count = *req.Count
		}
		id := identity.FromContext(c.Request.Context())
		e, err := svc.Consume(c.Request.Context(), id, req.SKU, count)
		if err != nil {
			ledgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sku": e.SKU, "remaining": e.Remaining})
	}
}
