// Package testing provides helpers for tests of applications that use
// meterkit. TestIssuer owns a random HS256 key and mints tokens the matching
// Codec accepts, plus a few it must reject.
//
// Example usage:
//
//	issuer := testing.NewTestIssuer()
//	gate := core.NewGate(issuer.Codec(), nil)
//	req.Header.Set("Authorization", "Bearer "+issuer.Token("alice@x", identity.RoleUser))
package testing

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/PaulFidika/meterkit/identity"
	jwtkit "github.com/PaulFidika/meterkit/jwt"
	jwt "github.com/golang-jwt/jwt/v5"
)

// TestIssuer signs tokens with a per-instance random key.
type TestIssuer struct {
	codec  *jwtkit.Codec
	signer *jwtkit.HMACSigner
}

// NewTestIssuer creates an issuer with a fresh 32-byte key and the default
// issuer and lifetime.
func NewTestIssuer(opts ...jwtkit.CodecOpt) *TestIssuer {
	key := randomKey()
	codec, err := jwtkit.NewCodec(key, opts...)
	if err != nil {
		panic("failed to create codec: " + err.Error())
	}
	signer, err := jwtkit.NewHMACSigner(key)
	if err != nil {
		panic("failed to create signer: " + err.Error())
	}
	return &TestIssuer{codec: codec, signer: signer}
}

// Codec returns the codec that verifies this issuer's tokens.
func (ti *TestIssuer) Codec() *jwtkit.Codec { return ti.codec }

// Token creates a valid token for subject with role.
func (ti *TestIssuer) Token(subject string, role identity.Role) string {
	tok, err := ti.codec.Issue(subject, role)
	if err != nil {
		panic("failed to issue token: " + err.Error())
	}
	return tok
}

// TokenForUser creates a valid token that also carries a user id.
func (ti *TestIssuer) TokenForUser(userID, subject string, role identity.Role) string {
	tok, err := ti.codec.IssueForUser(userID, subject, role)
	if err != nil {
		panic("failed to issue token: " + err.Error())
	}
	return tok
}

// ExpiredToken creates a correctly signed token whose expiry has passed.
func (ti *TestIssuer) ExpiredToken(subject string, role identity.Role) string {
	iat := time.Now().Add(-2 * time.Hour)
	return ti.sign(jwtkit.Claims{
		RegisteredClaims: jwtkit.BaseRegisteredClaims(subject, ti.codec.Issuer(), iat, time.Hour),
		Role:             role,
	})
}

// WrongIssuerToken creates a correctly signed token from another issuer.
func (ti *TestIssuer) WrongIssuerToken(subject string, role identity.Role) string {
	return ti.sign(jwtkit.Claims{
		RegisteredClaims: jwtkit.BaseRegisteredClaims(subject, "someone-else", time.Now(), time.Hour),
		Role:             role,
	})
}

// ForeignToken creates an otherwise valid token signed with an unrelated key.
func (ti *TestIssuer) ForeignToken(subject string, role identity.Role) string {
	other, err := jwtkit.NewCodec(randomKey(), jwtkit.WithIssuer(ti.codec.Issuer()))
	if err != nil {
		panic("failed to create codec: " + err.Error())
	}
	tok, err := other.Issue(subject, role)
	if err != nil {
		panic("failed to issue token: " + err.Error())
	}
	return tok
}

func (ti *TestIssuer) sign(claims jwt.Claims) string {
	tok, err := ti.signer.Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return tok
}

func randomKey() []byte {
	key := make([]byte, jwtkit.MinKeyBytes)
	if _, err := rand.Read(key); err != nil {
		panic("failed to read random key: " + err.Error())
	}
	return key
}
