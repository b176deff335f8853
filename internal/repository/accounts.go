// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// AccountRepository provides access to accounts.
type AccountRepository interface {
	// Create inserts a new account; a taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByEmail loads an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// UpdateProfile stores name and phone.
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*model.Account, error)
	// SetPassword replaces the credential; bump also increments token_version.
	SetPassword(ctx context.Context, id uuid.UUID, hash, salt []byte, bump bool) error
	// TouchLogin sets last_login_at.
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// BumpTokenVersion increments token_version and returns the new value.
	BumpTokenVersion(ctx context.Context, id uuid.UUID) (int64, error)
	// SetResetToken stores a reset digest and expiry; an empty digest clears both.
	SetResetToken(ctx context.Context, id uuid.UUID, digest string, expires *time.Time) error
	// MarkEmailVerified flags the email as verified.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	// SetState changes the lifecycle state.
	SetState(ctx context.Context, id uuid.UUID, state model.Lifecycle) error
}
