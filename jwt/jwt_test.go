package jwtkit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PaulFidika/meterkit/identity"
	jwt "github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef-test")

func newTestCodec(t *testing.T, opts ...CodecOpt) *Codec {
	t.Helper()
	c, err := NewCodec(testKey, opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue("alice@x", identity.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("expected compact JWS, got %q", tok)
	}
	cl, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cl.Subject != "alice@x" || cl.Role != identity.RoleUser {
		t.Fatalf("unexpected claims: sub=%q role=%q", cl.Subject, cl.Role)
	}
	if cl.Issuer != DefaultIssuer {
		t.Fatalf("expected issuer %q, got %q", DefaultIssuer, cl.Issuer)
	}
	if got := cl.ExpiresAt.Sub(cl.IssuedAt.Time); got != DefaultTTL {
		t.Fatalf("expected lifetime %v, got %v", DefaultTTL, got)
	}
	id := cl.Identity()
	if !id.IsAuthenticated() || id.Subject() != "alice@x" || id.Role() != identity.RoleUser {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIssueForUser_CarriesUID(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.IssueForUser("8d0f6c1e-0000-4000-8000-000000000001", "bob@x", identity.RoleAdmin)
	if err != nil {
		t.Fatalf("IssueForUser: %v", err)
	}
	cl, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if cl.UID != "8d0f6c1e-0000-4000-8000-000000000001" {
		t.Fatalf("expected uid claim, got %q", cl.UID)
	}
	if !cl.Identity().HasRole(identity.RoleAdmin) {
		t.Fatalf("expected ADMIN identity")
	}
}

func TestVerify_ExpiredAfterClockAdvance(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := newTestCodec(t, WithClock(clock))

	tok, err := c.Issue("alice@x", identity.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now = now.Add(29 * time.Minute)
	if _, err := c.Verify(tok); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := c.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after 31 minutes, got %v", err)
	}
}

func TestVerify_RejectsForeignKey(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec([]byte("another-secret-another-secret-another"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	tok, err := other.Issue("alice@x", identity.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_RejectsWrongIssuer(t *testing.T) {
	c := newTestCodec(t)
	other := newTestCodec(t, WithIssuer("billing-service"))
	tok, err := other.Issue("alice@x", identity.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign issuer, got %v", err)
	}
}

func TestVerify_RejectsMalformedAndTampered(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.Issue("alice@x", identity.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(tok, ".")
	forged, err := c.signer.Sign(context.Background(), &Claims{
		RegisteredClaims: BaseRegisteredClaims("mallory@x", DefaultIssuer, time.Now(), DefaultTTL),
		Role:             identity.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tampered := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	for name, in := range map[string]string{
		"blank":    "   ",
		"garbage":  "not-a-token",
		"tampered": tampered,
	} {
		if _, err := c.Verify(in); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	c := newTestCodec(t)
	claims := &Claims{
		RegisteredClaims: BaseRegisteredClaims("alice@x", DefaultIssuer, time.Now(), DefaultTTL),
		Role:             identity.RoleAdmin,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestVerify_RejectsUnknownRole(t *testing.T) {
	c := newTestCodec(t)
	tok, err := c.signer.Sign(context.Background(), &Claims{
		RegisteredClaims: BaseRegisteredClaims("alice@x", DefaultIssuer, time.Now(), DefaultTTL),
		Role:             identity.Role("ROOT"),
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := c.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown role, got %v", err)
	}
}

func TestNewCodec_RejectsShortKey(t *testing.T) {
	if _, err := NewCodec([]byte("short")); !errors.Is(err, ErrWeakKey) {
		t.Fatalf("expected ErrWeakKey, got %v", err)
	}
}

func TestIssue_RejectsBlankSubjectAndUnknownRole(t *testing.T) {
	c := newTestCodec(t)
	if _, err := c.Issue(" ", identity.RoleUser); err == nil {
		t.Fatalf("expected error for blank subject")
	}
	if _, err := c.Issue("alice@x", identity.Role("")); err == nil {
		t.Fatalf("expected error for empty role")
	}
}
