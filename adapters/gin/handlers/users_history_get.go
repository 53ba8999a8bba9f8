package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
)

const maxHistory = 50

func HandleUsersHistoryGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(maxHistory)))
		if limit <= 0 || limit > maxHistory {
			limit = maxHistory
		}
		id := identity.FromContext(c.Request.Context())
		items, err := svc.History(c.Request.Context(), id, limit)
		if errors.Is(err, core.ErrHistoryUnavailable) {
			c.JSON(http.StatusOK, gin.H{"data": []any{}})
			return
		}
		if err != nil {
			ginutil.ServerErrWithLog(c, "failed_to_list_history", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}
