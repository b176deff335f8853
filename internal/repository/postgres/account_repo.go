package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountCols = `id, email, name, phone, pwd_hash, pwd_salt, role, state, token_version,
email_verified, reset_token_hash, reset_expires_at, last_login_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Phone, &a.PwdHash, &a.PwdSalt, &a.Role, &a.State,
		&a.TokenVersion, &a.EmailVerified, &a.ResetTokenHash, &a.ResetExpiresAt, &a.LastLoginAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, email, name, phone, pwd_hash, pwd_salt, role, state, token_version, email_verified, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Email, a.Name, a.Phone, a.PwdHash, a.PwdSalt,
		a.Role, a.State, a.TokenVersion, a.EmailVerified, a.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE id=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	q := `SELECT ` + accountCols + ` FROM accounts WHERE email=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, email))
}

// UpdateProfile stores name and phone and returns the fresh row.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*model.Account, error) {
	q := `UPDATE accounts SET name=$2, phone=$3, updated_at=now() WHERE id=$1 RETURNING ` + accountCols
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id, name, phone))
}

// SetPassword replaces the credential and clears any outstanding reset token.
func (r *AccountRepo) SetPassword(ctx context.Context, id uuid.UUID, hash, salt []byte, bump bool) error {
	const q = `
UPDATE accounts
SET pwd_hash=$2, pwd_salt=$3, reset_token_hash='', reset_expires_at=NULL,
    token_version = token_version + CASE WHEN $4 THEN 1 ELSE 0 END, updated_at=now()
WHERE id=$1`
	return r.execOne(ctx, q, id, hash, salt, bump)
}

// TouchLogin records the last successful login.
func (r *AccountRepo) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE accounts SET last_login_at=$2 WHERE id=$1`
	return r.execOne(ctx, q, id, at)
}

// BumpTokenVersion increments token_version, revoking every issued token.
func (r *AccountRepo) BumpTokenVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	const q = `UPDATE accounts SET token_version = token_version + 1, updated_at=now() WHERE id=$1 RETURNING token_version`
	var v int64
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return v, nil
}

// SetResetToken stores or clears the reset digest.
func (r *AccountRepo) SetResetToken(ctx context.Context, id uuid.UUID, digest string, expires *time.Time) error {
	const q = `UPDATE accounts SET reset_token_hash=$2, reset_expires_at=$3, updated_at=now() WHERE id=$1`
	if digest == "" {
		expires = nil
	}
	return r.execOne(ctx, q, id, digest, expires)
}

// MarkEmailVerified flags the account email as verified.
func (r *AccountRepo) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE accounts SET email_verified=TRUE, updated_at=now() WHERE id=$1`
	return r.execOne(ctx, q, id)
}

// SetState changes the lifecycle state.
func (r *AccountRepo) SetState(ctx context.Context, id uuid.UUID, state model.Lifecycle) error {
	const q = `UPDATE accounts SET state=$2, updated_at=now() WHERE id=$1`
	return r.execOne(ctx, q, id, state)
}

func (r *AccountRepo) execOne(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
