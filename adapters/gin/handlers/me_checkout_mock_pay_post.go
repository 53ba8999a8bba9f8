package handlers

import (
	"net/http"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
)

func HandleMeCheckoutMockPayPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type payReq struct {
		SKU string `json:"sku"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCheckoutMockPay) {
			ginutil.TooMany(c)
			return
		}
		var req payReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				ginutil.BadRequest(c, "invalid_request")
				return
			}
		}
		id := identity.FromContext(c.Request.Context())
		if _, err := svc.MockPay(c.Request.Context(), id, req.SKU); err != nil {
			ledgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "PAID"})
	}
}
