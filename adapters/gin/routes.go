package authgin

import (
	"fmt"

	"github.com/PaulFidika/meterkit/adapters/gin/handlers"
	"github.com/PaulFidika/meterkit/adapters/ginutil"
	"github.com/PaulFidika/meterkit/audit"
	core "github.com/PaulFidika/meterkit/core"
	"github.com/PaulFidika/meterkit/identity"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the HTTP surface needs. RateLimiter and DB may
// be nil.
type Deps struct {
	Service     *core.Service
	Gate        *core.Gate
	Audit       *audit.Pipeline
	RateLimiter ginutil.RateLimiter
	DB          handlers.Pinger

	// TrustedProxies lists the IPs/CIDRs whose X-Forwarded-For is honored
	// when keying rate limits. Empty trusts none and uses the peer address.
	TrustedProxies []string
}

// NewRouter builds a gin engine with recovery outermost, then audit, then
// token resolution, and registers every route.
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	RegisterRoutes(r, d)
	return r, nil
}

// RegisterRoutes mounts the middleware chain and routes on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(Audit(d.Audit), AuthOptional(d.Gate))

	r.GET("/healthz", handlers.HandleHealthzGET(d.DB))
	r.POST("/auth/login", handlers.HandleAuthLoginPOST(d.Service, d.RateLimiter))

	me := r.Group("/me", AuthRequired())
	registerMe(me, d)
	registerMe(r.Group("/api/users/me", AuthRequired()), d)
	me.GET("", HandleMeGET())

	users := r.Group("/users", AuthRequired())
	users.GET("/history", handlers.HandleUsersHistoryGET(d.Service))

	admin := r.Group("/admin", RequireRole(identity.RoleAdmin))
	admin.POST("/entitlements", handlers.HandleAdminEntitlementsPOST(d.Service, d.RateLimiter))
}

func registerMe(g *gin.RouterGroup, d Deps) {
	g.GET("/entitlements", handlers.HandleMeEntitlementsGET(d.Service))
	g.POST("/entitlements/consume", handlers.HandleMeEntitlementsConsumePOST(d.Service, d.RateLimiter))
	g.POST("/checkout/mock-pay", handlers.HandleMeCheckoutMockPayPOST(d.Service, d.RateLimiter))
}
