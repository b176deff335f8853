// Package token issues and verifies purpose-tagged HS256 tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
)

// Purpose restricts where a token may be presented.
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeVerification  Purpose = "verification"
	PurposePasswordReset Purpose = "password-reset"
)

// Claims is the signed payload.
type Claims struct {
	Email        string     `json:"email"`
	Role         model.Role `json:"role,omitempty"`
	Purpose      Purpose    `json:"type"`
	TokenVersion *int64     `json:"tv,omitempty"` // access and refresh only
	jwt.RegisteredClaims
}

// AccountID parses the subject.
func (c *Claims) AccountID() (uuid.UUID, error) {
	id, err := uuid.FromString(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad subject: %w", errs.ErrTokenInvalid)
	}
	return id, nil
}

// TTLs holds per-purpose lifetimes.
type TTLs struct {
	Access       time.Duration
	Refresh      time.Duration
	Verification time.Duration
	Reset        time.Duration
}

// DefaultTTLs mirrors the storefront's token lifetimes.
var DefaultTTLs = TTLs{
	Access:       15 * time.Minute,
	Refresh:      7 * 24 * time.Hour,
	Verification: 24 * time.Hour,
	Reset:        time.Hour,
}

func (t TTLs) of(p Purpose) time.Duration {
	switch p {
	case PurposeAccess:
		return t.Access
	case PurposeRefresh:
		return t.Refresh
	case PurposeVerification:
		return t.Verification
	case PurposePasswordReset:
		return t.Reset
	}
	return 0
}

// Manager signs and verifies tokens with a shared key.
type Manager struct {
	key    []byte
	ttls   TTLs
	issuer string
	now    func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithIssuer sets the iss claim.
func WithIssuer(iss string) Option { return func(m *Manager) { m.issuer = iss } }

// NewManager constructs a token manager.
func NewManager(key []byte, ttls TTLs, opts ...Option) *Manager {
	m := &Manager{key: key, ttls: ttls, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Issue signs a token for acc with the purpose's configured lifetime.
// Access and refresh tokens embed the account's current token version.
func (m *Manager) Issue(p Purpose, acc *model.Account) (string, time.Time, error) {
	return m.IssueTTL(p, acc, m.ttls.of(p))
}

// IssueTTL signs a token with an explicit lifetime.
func (m *Manager) IssueTTL(p Purpose, acc *model.Account, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token: no ttl for purpose %q", p)
	}
	now := m.now()
	exp := now.Add(ttl)
	c := Claims{
		Email:   acc.Email,
		Role:    acc.Role,
		Purpose: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if p == PurposeAccess || p == PurposeRefresh {
		v := acc.TokenVersion
		c.TokenVersion = &v
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.key)
	return signed, exp, err
}

// Verify checks signature and expiry.
func (m *Manager) Verify(tok string) (*Claims, error) {
	var c Claims
	parsed, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errs.ErrTokenExpired
	case err != nil || !parsed.Valid:
		return nil, errs.ErrTokenInvalid
	}
	return &c, nil
}

// VerifyPurpose verifies tok and requires the given purpose.
func (m *Manager) VerifyPurpose(tok string, p Purpose) (*Claims, error) {
	c, err := m.Verify(tok)
	if err != nil {
		return nil, err
	}
	if c.Purpose != p {
		return nil, errs.ErrTokenInvalid
	}
	return c, nil
}

// CheckVersion fails with ErrTokenRevoked unless the embedded version equals current.
func CheckVersion(c *Claims, current int64) error {
	if c.TokenVersion == nil || *c.TokenVersion != current {
		return errs.ErrTokenRevoked
	}
	return nil
}
