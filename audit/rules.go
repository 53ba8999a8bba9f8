package audit

import (
	"net/http"
	"strings"
)

// Action names written to audit records.
const (
	ActionAuthLogin          = "AUTH_LOGIN"
	ActionAuthRegister       = "AUTH_REGISTER"
	ActionProfileView        = "PROFILE_VIEW"
	ActionUserUpdate         = "USER_UPDATE"
	ActionEntitlementView    = "ENTITLEMENT_VIEW"
	ActionEntitlementConsume = "ENTITLEMENT_CONSUME"
	ActionCheckoutPay        = "CHECKOUT_PAY"
	ActionEntitlementIssue   = "ENTITLEMENT_ISSUE"
	ActionHistoryView        = "HISTORY_VIEW"
	ActionRequest            = "REQUEST"
)

// Rule maps a request to an action. Methods empty matches any method; Prefix
// matches Path and anything below it.
type Rule struct {
	Action  string
	Methods []string
	Path    string
	Prefix  bool
}

func (r Rule) matches(method, path string) bool {
	if len(r.Methods) > 0 {
		ok := false
		for _, m := range r.Methods {
			if strings.EqualFold(m, method) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if r.Prefix {
		return path == r.Path || strings.HasPrefix(path, strings.TrimSuffix(r.Path, "/")+"/")
	}
	return path == r.Path
}

// DefaultRules is the static classification table. First match wins.
var DefaultRules = []Rule{
	{Action: ActionAuthLogin, Path: "/auth/login", Prefix: true},
	{Action: ActionAuthRegister, Path: "/auth/register", Prefix: true},
	{Action: ActionProfileView, Path: "/me"},
	{Action: ActionEntitlementConsume, Methods: []string{http.MethodPost}, Path: "/me/entitlements/consume"},
	{Action: ActionEntitlementConsume, Methods: []string{http.MethodPost}, Path: "/api/users/me/entitlements/consume"},
	{Action: ActionEntitlementView, Methods: []string{http.MethodGet}, Path: "/me/entitlements"},
	{Action: ActionEntitlementView, Methods: []string{http.MethodGet}, Path: "/api/users/me/entitlements"},
	{Action: ActionCheckoutPay, Methods: []string{http.MethodPost}, Path: "/me/checkout/mock-pay"},
	{Action: ActionCheckoutPay, Methods: []string{http.MethodPost}, Path: "/api/users/me/checkout/mock-pay"},
	{Action: ActionEntitlementIssue, Methods: []string{http.MethodPost}, Path: "/admin/entitlements"},
	{Action: ActionHistoryView, Methods: []string{http.MethodGet}, Path: "/users/history"},
	{Action: ActionUserUpdate, Methods: []string{http.MethodPut, http.MethodPatch}, Path: "/users", Prefix: true},
}

// Classify returns the first matching rule's action, or ActionRequest.
func Classify(rules []Rule, method, path string) string {
	for _, r := range rules {
		if r.matches(method, path) {
			return r.Action
		}
	}
	return ActionRequest
}
