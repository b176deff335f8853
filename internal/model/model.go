// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Lifecycle replaces boolean soft-delete flags on accounts and products.
type Lifecycle string

const (
	LifecycleActive      Lifecycle = "active"
	LifecycleDeactivated Lifecycle = "deactivated"
)

// Role is an account authorization role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool { return r == RoleUser || r == RoleAdmin }

// Tokens collects issued access/refresh tokens.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"` // access token expiry
}

// Account is a persisted user. Credential and reset fields never leave the server.
type Account struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"` // unique, trimmed + lowercased
	Name           string     `json:"name"`
	Phone          string     `json:"phone,omitempty"`
	PwdHash        []byte     `json:"-"` // Argon2id(password, PwdSalt)
	PwdSalt        []byte     `json:"-"`
	Role           Role       `json:"role"`
	State          Lifecycle  `json:"state"`
	TokenVersion   int64      `json:"-"` // only ever incremented
	EmailVerified  bool       `json:"emailVerified"`
	ResetTokenHash string     `json:"-"` // sha256 hex of the outstanding reset token
	ResetExpiresAt *time.Time `json:"-"`
	LastLoginAt    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Active reports whether the account may authenticate.
func (a *Account) Active() bool { return a.State == LifecycleActive }

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// Page is a normalized page request.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the SQL offset for the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// NewPage clamps number to >=1 and limit to 1..100, substituting def for a non-positive limit.
func NewPage(number, limit, def int) Page {
	if number < 1 {
		number = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return Page{Number: number, Limit: limit}
}

// Pagination describes a returned page.
type Pagination struct {
	CurrentPage int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"pages"`
	Total       int  `json:"total"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// Paginate computes page metadata for total matching rows.
func Paginate(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{
		CurrentPage: p.Number,
		Limit:       p.Limit,
		TotalPages:  pages,
		Total:       total,
		HasNext:     p.Number < pages,
		HasPrev:     p.Number > 1,
	}
}
