package jwtkit

import (
	"errors"
	"testing"
	"time"

	"github.com/PaulFidika/meterkit/identity"
	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

func TestInterop_JWXVerifiesIssuedToken(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.IssueForUser("u-1", "alice@x", identity.RoleAdmin)
	if err != nil {
		t.Fatalf("IssueForUser: %v", err)
	}

	parsed, err := jwxjwt.Parse([]byte(tok),
		jwxjwt.WithKey(jwa.HS256, testKey),
		jwxjwt.WithValidate(true),
		jwxjwt.WithIssuer(DefaultIssuer),
	)
	if err != nil {
		t.Fatalf("jwx Parse: %v", err)
	}
	if parsed.Subject() != "alice@x" {
		t.Fatalf("expected subject alice@x, got %q", parsed.Subject())
	}
	role, ok := parsed.Get("role")
	if !ok || role != "ADMIN" {
		t.Fatalf("expected role ADMIN, got %v", role)
	}
	uid, ok := parsed.Get("uid")
	if !ok || uid != "u-1" {
		t.Fatalf("expected uid u-1, got %v", uid)
	}
}

func TestInterop_CodecVerifiesJWXToken(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tok := jwxjwt.New()
	for k, v := range map[string]any{
		jwxjwt.SubjectKey:    "bob@x",
		jwxjwt.IssuerKey:     DefaultIssuer,
		jwxjwt.IssuedAtKey:   now,
		jwxjwt.ExpirationKey: now.Add(10 * time.Minute),
		"role":               "USER",
	} {
		if err := tok.Set(k, v); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.HS256, testKey))
	if err != nil {
		t.Fatalf("jwx Sign: %v", err)
	}

	c := newTestCodec(t)
	cl, err := c.Verify(string(signed))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cl.Subject != "bob@x" || cl.Role != identity.RoleUser {
		t.Fatalf("unexpected claims: %+v", cl)
	}

	other := newTestCodec(t, WithIssuer("someone-else"))
	if _, err := other.Verify(string(signed)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected issuer mismatch rejected, got %v", err)
	}
}
