package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PaulFidika/meterkit/identity"
	jwtkit "github.com/PaulFidika/meterkit/jwt"
	"github.com/sirupsen/logrus/hooks/test"
)

var gateKey = []byte("gate-test-key-gate-test-key-gate-test-key")

func newGate(t *testing.T) (*Gate, *jwtkit.Codec) {
	t.Helper()
	codec, err := jwtkit.NewCodec(gateKey)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	logger, _ := test.NewNullLogger()
	return NewGate(codec, logger), codec
}

func TestResolve_AliceScenario(t *testing.T) {
	g, codec := newGate(t)
	tok, err := codec.Issue("alice@x", identity.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for _, header := range []string{"Bearer " + tok, "bearer " + tok, "  BEARER\t" + tok + " ", tok} {
		id := g.Resolve(header)
		if !id.IsAuthenticated() || id.Subject() != "alice@x" || id.Role() != identity.RoleUser {
			t.Fatalf("header %q: expected alice USER, got %+v", header, id)
		}
	}
}

func TestResolve_FailuresAreAnonymous(t *testing.T) {
	g, _ := newGate(t)
	other, err := jwtkit.NewCodec([]byte("some-other-key-some-other-key-some-other"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	foreign, _ := other.Issue("mallory@x", identity.RoleAdmin)
	for _, header := range []string{"", "   ", "Bearer", "Bearer ", "Bearer garbage", "Basic dXNlcjpwYXNz", "Bearer " + foreign} {
		if id := g.Resolve(header); id.IsAuthenticated() {
			t.Fatalf("header %q: expected anonymous, got %+v", header, id)
		}
	}
}

func TestAuthenticate_UsesFirstHeaderAndAttaches(t *testing.T) {
	g, codec := newGate(t)
	tok, _ := codec.Issue("bob@x", identity.RoleAdmin)
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Add("Authorization", "Bearer "+tok)
	r.Header.Add("Authorization", "Bearer garbage")

	ctx, id := g.Authenticate(r)
	if !id.HasRole(identity.RoleAdmin) {
		t.Fatalf("expected ADMIN identity, got %+v", id)
	}
	if got := identity.FromContext(ctx); got.Subject() != "bob@x" {
		t.Fatalf("expected identity attached to context, got %+v", got)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	r2.Header.Add("Authorization", "Bearer garbage")
	r2.Header.Add("Authorization", "Bearer "+tok)
	if _, id := g.Authenticate(r2); id.IsAuthenticated() {
		t.Fatalf("expected only the first header to be considered")
	}
}
