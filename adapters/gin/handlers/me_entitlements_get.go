package handlers

import (
	"net/http"

	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
)

// HandleMeEntitlementsGET answers 404 with remaining 0 when the caller holds
// no record for sku.
func HandleMeEntitlementsGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := c.Query("sku")
		id := identity.FromContext(c.Request.Context())
		e, err := svc.Entitlement(c.Request.Context(), id, sku)
		if err != nil {
			ledgerError(c, err)
			return
		}
		if e == nil {
			c.JSON(http.StatusNotFound, gin.H{"sku": sku, "remaining": 0})
			return
		}
		body := gin.H{"sku": e.SKU, "remaining": e.Remaining}
		if e.ExpiresAt != nil {
			body["expires_at"] = e.ExpiresAt
		}
		c.JSON(http.StatusOK, body)
	}
}
