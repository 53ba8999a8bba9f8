package handlers

import (
	"errors"
	"net/http"

	"github.com/PaulFidika/meterkit/adapters/ginutil"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/gin-gonic/gin"
)

func HandleAuthLoginPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type loginReq struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAuthLogin) {
			ginutil.TooMany(c)
			return
		}
		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, core.ErrInvalidCredentials) {
			ginutil.Unauthorized(c, "invalid_credentials")
			return
		}
		if err != nil {
			ginutil.ServerErrWithLog(c, "login_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"accessToken": res.Token,
			"tokenType":   "Bearer",
			"expiresIn":   int64(res.ExpiresIn.Seconds()),
		})
	}
}
