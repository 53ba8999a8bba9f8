package authgin

import (
	"github.com/PaulFidika/meterkit/identity"
	"github.com/PaulFidika/meterkit/reqid"
	"github.com/gin-gonic/gin"
)

// UserView is the caller as seen by handlers and returned by GET /me.
type UserView struct {
	Subject   string        `json:"subject"`
	UserID    string        `json:"user_id,omitempty"`
	Role      identity.Role `json:"role,omitempty"`
	RequestID string        `json:"request_id,omitempty"`

	// Meta
	Source string `json:"source"` // "token" | "none"
}

// CurrentUser returns a snapshot of the caller. ok is false for Anonymous.
func CurrentUser(c *gin.Context) (UserView, bool) {
	rid, _ := reqid.FromContext(c.Request.Context())
	id := IdentityFromGin(c)
	if !id.IsAuthenticated() {
		return UserView{Subject: identity.AnonymousActor, RequestID: rid, Source: "none"}, false
	}
	return UserView{
		Subject:   id.Subject(),
		UserID:    id.UserID(),
		Role:      id.Role(),
		RequestID: rid,
		Source:    "token",
	}, true
}
