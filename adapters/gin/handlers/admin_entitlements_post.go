package handlers

import (
	"net/http"
	"time"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/gin-gonic/gin"
)

func HandleAdminEntitlementsPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type issueReq struct {
		UserID    string     `json:"user_id"`
		SKU       string     `json:"sku"`
		Amount    int64      `json:"amount"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdminIssue) {
			ginutil.TooMany(c)
			return
		}
		var req issueReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		e, err := svc.Grant(c.Request.Context(), req.UserID, req.SKU, req.Amount, req.ExpiresAt)
		if err != nil {
			ledgerError(c, err)
			return
		}
		c.JSON(http.StatusOK, e)
	}
}
