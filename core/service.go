package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulFidika/meterkit/audit"
	"github.com/PaulFidika/meterkit/entitlements"
	"github.com/PaulFidika/meterkit/identity"
	jwtkit "github.com/PaulFidika/meterkit/jwt"
	"github.com/PaulFidika/meterkit/password"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// DefaultCheckoutSKU is granted by MockPay when the request names none.
const DefaultCheckoutSKU = "HOROSCOPE_PDF"

var (
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrHistoryUnavailable is returned when no activity store is configured.
	ErrHistoryUnavailable = errors.New("activity history unavailable")
)

// UserStore looks up login accounts.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
}

// HistoryStore reads back persisted audit records.
type HistoryStore interface {
	History(ctx context.Context, actor string, limit int) ([]audit.Record, error)
}

// Service is the application layer the HTTP handlers call.
type Service struct {
	codec   *jwtkit.Codec
	ledger  *entitlements.Ledger
	users   UserStore
	history HistoryStore
	retry   func() backoff.BackOff
	log     logrus.FieldLogger
}

func NewService(codec *jwtkit.Codec, ledger *entitlements.Ledger, users UserStore, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{codec: codec, ledger: ledger, users: users, retry: entitlements.DefaultRetryPolicy, log: log}
}

// WithHistory enables History.
func (s *Service) WithHistory(h HistoryStore) *Service {
	s.history = h
	return s
}

// WithRetryPolicy replaces the backoff used for ledger contention.
func (s *Service) WithRetryPolicy(policy func() backoff.BackOff) *Service {
	if policy != nil {
		s.retry = policy
	}
	return s
}

func (s *Service) Codec() *jwtkit.Codec { return s.codec }

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
	User      *identity.User
}

// Login checks email and password and issues an access token.
func (s *Service) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || pass == "" || s.users == nil {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	ok, err := password.Verify(u.PasswordHash, pass)
	if err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("stored password hash unusable")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	tok, err := s.codec.IssueForUser(u.ID.String(), u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: tok, ExpiresIn: s.codec.TTL(), User: u}, nil
}

// Entitlement returns the caller's record for sku, or nil.
func (s *Service) Entitlement(ctx context.Context, id identity.Identity, sku string) (*entitlements.Entitlement, error) {
	return s.ledger.Find(ctx, id.OwnerKey(), sku)
}

// Consume spends count credits of sku for the caller, retrying lock contention.
func (s *Service) Consume(ctx context.Context, id identity.Identity, sku string, count int64) (*entitlements.Entitlement, error) {
	var out *entitlements.Entitlement
	err := entitlements.RetryContention(ctx, s.retry(), func(ctx context.Context) error {
		e, err := s.ledger.ConsumeOrError(ctx, id.OwnerKey(), sku, count)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// MockPay simulates a completed purchase of one credit of sku.
func (s *Service) MockPay(ctx context.Context, id identity.Identity, sku string) (*entitlements.Entitlement, error) {
	if strings.TrimSpace(sku) == "" {
		sku = DefaultCheckoutSKU
	}
	return s.Grant(ctx, id.OwnerKey(), sku, 1, nil)
}

// Grant adds amount credits of sku to userID.
func (s *Service) Grant(ctx context.Context, userID, sku string, amount int64, expiresAt *time.Time) (*entitlements.Entitlement, error) {
	var out *entitlements.Entitlement
	err := entitlements.RetryContention(ctx, s.retry(), func(ctx context.Context) error {
		e, err := s.ledger.Issue(ctx, userID, sku, amount, expiresAt)
		if err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// History returns the caller's most recent audit records.
func (s *Service) History(ctx context.Context, id identity.Identity, limit int) ([]audit.Record, error) {
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.history.History(ctx, id.Actor(), limit)
}
