package jwtkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulFidika/meterkit/identity"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the issuer stamped into tokens when none is configured.
	DefaultIssuer = "user-service"
	// DefaultTTL is the access token lifetime when none is configured.
	DefaultTTL = 30 * time.Minute
	// MinKeyBytes is the smallest accepted HMAC key (256 bits).
	MinKeyBytes = 32
)

// ErrInvalidToken is returned by Verify for every rejected token: blank,
// malformed, mis-signed, foreign issuer or expired.
var ErrInvalidToken = errors.New("invalid token")

// ErrWeakKey is returned when the signing key is shorter than MinKeyBytes.
var ErrWeakKey = errors.New("jwt signing key must be at least 32 bytes")

// Signer issues HMAC-signed JWTs.
type Signer interface {
	// Algorithm returns the JWS algorithm (e.g., HS256).
	Algorithm() string
	// Sign creates a signed JWT with provided claims.
	Sign(ctx context.Context, claims jwt.Claims) (token string, err error)
}

// HMACSigner signs with a shared symmetric key. The key is copied on
// construction and never mutated, so a signer is safe for concurrent use.
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrWeakKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HMACSigner{key: k}, nil
}

func (s *HMACSigner) Algorithm() string { return jwt.SigningMethodHS256.Alg() }

func (s *HMACSigner) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Claims is the identity claim set carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	UID  string        `json:"uid,omitempty"`
	Role identity.Role `json:"role"`
}

// Identity converts verified claims into an authenticated identity.
func (c *Claims) Identity() identity.Identity {
	return identity.Authenticated(c.Subject, c.UID, c.Role)
}

// Codec issues and verifies access tokens. It holds no mutable state.
type Codec struct {
	signer *HMACSigner
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// CodecOpt configures a Codec.
type CodecOpt func(*Codec)

// WithIssuer overrides DefaultIssuer.
func WithIssuer(issuer string) CodecOpt {
	return func(c *Codec) {
		if s := strings.TrimSpace(issuer); s != "" {
			c.issuer = s
		}
	}
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) CodecOpt {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) CodecOpt {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(key []byte, opts ...CodecOpt) (*Codec, error) {
	signer, err := NewHMACSigner(key)
	if err != nil {
		return nil, err
	}
	c := &Codec{signer: signer, issuer: DefaultIssuer, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Issuer() string     { return c.issuer }
func (c *Codec) TTL() time.Duration { return c.ttl }
func (c *Codec) Algorithm() string  { return c.signer.Algorithm() }

// Issue signs a claim set for subject and role.
func (c *Codec) Issue(subject string, role identity.Role) (string, error) {
	return c.IssueForUser("", subject, role)
}

// IssueForUser is Issue with an additional stable user id claim ("uid").
func (c *Codec) IssueForUser(userID, subject string, role identity.Role) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("jwt subject is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("jwt role %q is not recognised", role)
	}
	claims := &Claims{
		RegisteredClaims: BaseRegisteredClaims(subject, c.issuer, c.now(), c.ttl),
		UID:              userID,
		Role:             role,
	}
	return c.signer.Sign(context.Background(), claims)
}

// Verify decodes token and checks signature, issuer and expiry. Any failure
// is reported as ErrInvalidToken; the cause is wrapped for logging only.
func (c *Codec) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signer.key, nil
	},
		jwt.WithValidMethods([]string{c.signer.Algorithm()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: not valid", ErrInvalidToken)
	}
	if claims.IssuedAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: expiry not after issued-at", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}

// BaseRegisteredClaims builds the registered part of an access token.
func BaseRegisteredClaims(subject, issuer string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}
