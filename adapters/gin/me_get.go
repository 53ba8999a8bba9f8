package authgin

import (
	"net/http"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	"github.com/gin-gonic/gin"
)

// HandleMeGET returns the caller's identity.
func HandleMeGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		c.JSON(http.StatusOK, u)
	}
}
