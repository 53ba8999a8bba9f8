package identity

import (
	"context"
	"strings"
	"sync"
)

// Role is the closed set of authorities a caller can hold.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole maps a case-insensitive name onto a Role. Unknown names return ok=false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Kind tells Anonymous and Authenticated identities apart.
type Kind uint8

const (
	KindAnonymous Kind = iota
	KindAuthenticated
)

func (k Kind) String() string {
	if k == KindAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// AnonymousActor is the actor name recorded for unauthenticated callers.
const AnonymousActor = "anon"

// Identity is the verified caller attached to a request. The zero value is Anonymous.
type Identity struct {
	kind    Kind
	subject string
	userID  string
	role    Role
}

// Anonymous returns the identity of a caller that presented no valid token.
func Anonymous() Identity { return Identity{} }

// Authenticated builds an identity from verified token claims.
func Authenticated(subject, userID string, role Role) Identity {
	return Identity{kind: KindAuthenticated, subject: subject, userID: userID, role: role}
}

func (i Identity) Kind() Kind            { return i.kind }
func (i Identity) IsAuthenticated() bool { return i.kind == KindAuthenticated }
func (i Identity) Subject() string       { return i.subject }
func (i Identity) UserID() string        { return i.userID }
func (i Identity) Role() Role            { return i.role }

// HasRole reports whether the identity is authenticated and holds r.
func (i Identity) HasRole(r Role) bool {
	return i.kind == KindAuthenticated && i.role == r
}

// Actor is the name written to audit records: the subject, or "anon".
func (i Identity) Actor() string {
	if i.kind != KindAuthenticated || i.subject == "" {
		return AnonymousActor
	}
	return i.subject
}

// OwnerKey is the key entitlements are stored under: the stable user id when
// the token carried one, otherwise the subject.
func (i Identity) OwnerKey() string {
	if i.userID != "" {
		return i.userID
	}
	return i.subject
}

type ctxKey struct{}

// Holder carries the identity resolved further down a middleware chain back up
// to outer layers that created the request context earlier (the audit scope).
type Holder struct {
	mu sync.RWMutex
	id Identity
}

func (h *Holder) Set(id Identity) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

func (h *Holder) Get() Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// WithHolder returns a context carrying a fresh Holder, or ctx unchanged when
// one is already present.
func WithHolder(ctx context.Context) (context.Context, *Holder) {
	if h, ok := ctx.Value(ctxKey{}).(*Holder); ok {
		return ctx, h
	}
	h := &Holder{}
	return context.WithValue(ctx, ctxKey{}, h), h
}

// Attach records id on ctx. Only the authentication gate calls this.
func Attach(ctx context.Context, id Identity) context.Context {
	ctx, h := WithHolder(ctx)
	h.Set(id)
	return ctx
}

// FromContext reads the identity attached to ctx. Missing means Anonymous.
func FromContext(ctx context.Context) Identity {
	if h, ok := ctx.Value(ctxKey{}).(*Holder); ok {
		return h.Get()
	}
	return Anonymous()
}
