// Package service contains the storefront use cases: accounts, catalog, orders,
// back-in-stock notifications and the contact form.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/cosmetics-shop/internal/crypto"
	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/repository"
	"github.com/and161185/cosmetics-shop/internal/token"
	"github.com/and161185/cosmetics-shop/internal/validate"
)

// AuthService defines account and session operations.
type AuthService interface {
	// Register creates an account and signs it in.
	Register(ctx context.Context, in RegisterInput) (*model.Account, model.Tokens, error)
	// Login checks credentials and issues a token pair.
	Login(ctx context.Context, in LoginInput) (*model.Account, model.Tokens, error)
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Logout revokes every token issued to the account.
	Logout(ctx context.Context, accountID uuid.UUID) error
	// Authenticate resolves a bearer access token to an active account.
	Authenticate(ctx context.Context, bearer string) (*model.Account, error)
	Me(ctx context.Context, accountID uuid.UUID) (*model.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, in ProfileInput) (*model.Account, error)
	ChangePassword(ctx context.Context, accountID uuid.UUID, in ChangePasswordInput) error
	// ForgotPassword never reveals whether the email is registered.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	// VerifyEmail reports true when the address was already verified.
	VerifyEmail(ctx context.Context, tok string) (bool, error)
	// SetAccountState activates or deactivates an account; deactivation revokes its tokens.
	SetAccountState(ctx context.Context, actor *model.Account, id uuid.UUID, in AccountStateInput) (*model.Account, error)
}

// AccountStateInput is the admin payload for account activation.
type AccountStateInput struct {
	State model.Lifecycle `json:"state" validate:"required,oneof=active deactivated"`
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=50,personname"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128,password"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,phone"`
}

// LoginInput is the sign-in payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// ProfileInput patches the profile; nil fields are kept.
type ProfileInput struct {
	Name  *string `json:"name,omitempty" validate:"omitnil,required,min=2,max=50,personname"`
	Phone *string `json:"phone,omitempty" validate:"omitnil,omitempty,phone"`
}

// ChangePasswordInput replaces the password of a signed-in account.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128,password"`
}

// ResetPasswordInput completes the forgot-password flow.
type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=128,password"`
}

type forgotInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// AuthServiceImpl implements AuthService.
type AuthServiceImpl struct {
	accounts repository.AccountRepository
	tokens   *token.Manager
	mails    *mailer.Renderer
	queue    outbox.Enqueuer
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts repository.AccountRepository, tokens *token.Manager, mails *mailer.Renderer,
	queue outbox.Enqueuer, log *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{accounts: accounts, tokens: tokens, mails: mails, queue: queue, log: log, now: time.Now}
}

var errDuplicateEmail = errs.With(errs.ErrAlreadyExists, "User with this email already exists")

// Register validates input, stores an Argon2id credential and signs the account in.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*model.Account, model.Tokens, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validate.Struct(in); err != nil {
		return nil, model.Tokens{}, err
	}

	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return nil, model.Tokens{}, errDuplicateEmail
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, model.Tokens{}, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, model.Tokens{}, err
	}
	hash, salt, err := pkgcrypto.NewCredential(in.Password)
	if err != nil {
		return nil, model.Tokens{}, err
	}
	now := s.now().UTC()
	acc := &model.Account{
		ID:        id,
		Email:     in.Email,
		Name:      in.Name,
		Phone:     in.Phone,
		PwdHash:   hash,
		PwdSalt:   salt,
		Role:      model.RoleUser,
		State:     model.LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, model.Tokens{}, errDuplicateEmail
		}
		return nil, model.Tokens{}, err
	}

	tokens, err := s.issuePair(acc)
	if err != nil {
		return nil, model.Tokens{}, err
	}
	if err := s.accounts.TouchLogin(ctx, acc.ID, now); err != nil {
		s.log.Warn("touch login", zap.Error(err))
	}
	acc.LastLoginAt = &now

	s.send(ctx, func() (mailer.Message, error) { return s.mails.Welcome(acc) })
	if vt, _, err := s.tokens.Issue(token.PurposeVerification, acc); err == nil {
		s.send(ctx, func() (mailer.Message, error) { return s.mails.Verification(acc, vt) })
	} else {
		s.log.Warn("issue verification token", zap.Error(err))
	}
	return acc, tokens, nil
}

// EnsureAdmin creates a verified admin account unless the email is already taken.
// created is false when an admin with that email exists; a regular account
// holding the email is an error.
func (s *AuthServiceImpl) EnsureAdmin(ctx context.Context, in RegisterInput) (acc *model.Account, created bool, err error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, false, err
	}
	acc, err = s.accounts.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && acc.IsAdmin():
		return acc, false, nil
	case err == nil:
		return nil, false, errs.With(errs.ErrAlreadyExists, "A non-admin account already uses this email")
	case !errors.Is(err, errs.ErrNotFound):
		return nil, false, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	hash, salt, err := pkgcrypto.NewCredential(in.Password)
	if err != nil {
		return nil, false, err
	}
	now := s.now().UTC()
	acc = &model.Account{
		ID:            id,
		Email:         in.Email,
		Name:          in.Name,
		Phone:         strings.TrimSpace(in.Phone),
		PwdHash:       hash,
		PwdSalt:       salt,
		Role:          model.RoleAdmin,
		State:         model.LifecycleActive,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, false, err
	}
	s.log.Info("admin account created", zap.String("id", acc.ID.String()))
	return acc, true, nil
}

// SetAccountState changes an account's lifecycle state. Admins cannot deactivate themselves.
func (s *AuthServiceImpl) SetAccountState(ctx context.Context, actor *model.Account, id uuid.UUID, in AccountStateInput) (*model.Account, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.State == model.LifecycleDeactivated && actor != nil && actor.ID == id {
		return nil, errs.With(errs.ErrForbidden, "You cannot deactivate your own account")
	}
	if err := s.accounts.SetState(ctx, id, in.State); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.With(errs.ErrNotFound, "User not found")
		}
		return nil, err
	}
	if in.State == model.LifecycleDeactivated {
		if _, err := s.accounts.BumpTokenVersion(ctx, id); err != nil {
			return nil, err
		}
	}
	s.log.Info("account state changed", zap.String("id", id.String()), zap.String("state", string(in.State)))
	return s.accounts.GetByID(ctx, id)
}

var errBadCredentials = errs.With(errs.ErrInvalidCredentials, "Invalid email or password")

// Login authenticates by email and password.
func (s *AuthServiceImpl) Login(ctx context.Context, in LoginInput) (*model.Account, model.Tokens, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, model.Tokens{}, err
	}
	acc, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, model.Tokens{}, errBadCredentials
		}
		return nil, model.Tokens{}, err
	}
	if !acc.Active() {
		return nil, model.Tokens{}, errs.With(errs.ErrAccountDisabled, "Account is deactivated")
	}
	if !pkgcrypto.VerifyPassword([]byte(in.Password), acc.PwdSalt, acc.PwdHash) {
		return nil, model.Tokens{}, errBadCredentials
	}

	tokens, err := s.issuePair(acc)
	if err != nil {
		return nil, model.Tokens{}, err
	}
	now := s.now().UTC()
	if err := s.accounts.TouchLogin(ctx, acc.ID, now); err != nil {
		s.log.Warn("touch login", zap.Error(err))
	}
	acc.LastLoginAt = &now
	return acc, tokens, nil
}

// Refresh issues a new access token for a valid, unrevoked refresh token.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.Tokens{}, errs.Invalid("Refresh token is required")
	}
	c, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return model.Tokens{}, publicTokenErr(err)
	}
	if c.Purpose != token.PurposeRefresh {
		return model.Tokens{}, errs.With(errs.ErrTokenInvalid, "Invalid token type")
	}
	acc, err := s.accountFor(ctx, c)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, errs.With(errs.ErrUnauthorized, "User not found or inactive")
		}
		return model.Tokens{}, err
	}
	if !acc.Active() {
		return model.Tokens{}, errs.With(errs.ErrUnauthorized, "User not found or inactive")
	}
	if err := token.CheckVersion(c, acc.TokenVersion); err != nil {
		return model.Tokens{}, errs.With(err, "Token has been revoked")
	}
	access, exp, err := s.tokens.Issue(token.PurposeAccess, acc)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, nil
}

// Logout bumps the token version.
func (s *AuthServiceImpl) Logout(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.accounts.BumpTokenVersion(ctx, accountID)
	return err
}

// Authenticate runs the access-token checks in order and returns the account.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, bearer string) (*model.Account, error) {
	c, err := s.tokens.Verify(bearer)
	if err != nil {
		return nil, publicTokenErr(err)
	}
	if c.Purpose != token.PurposeAccess {
		return nil, errs.With(errs.ErrTokenInvalid, "Invalid token type")
	}
	acc, err := s.accountFor(ctx, c)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.With(errs.ErrUnauthorized, "User not found")
		}
		return nil, err
	}
	if !acc.Active() {
		return nil, errs.With(errs.ErrAccountDisabled, "Account is deactivated")
	}
	if err := token.CheckVersion(c, acc.TokenVersion); err != nil {
		return nil, errs.With(err, "Token has been revoked")
	}
	return acc, nil
}

// Me returns the account.
func (s *AuthServiceImpl) Me(ctx context.Context, accountID uuid.UUID) (*model.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// UpdateProfile changes name and/or phone.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, accountID uuid.UUID, in ProfileInput) (*model.Account, error) {
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		in.Name = &n
	}
	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		in.Phone = &p
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	name, phone := acc.Name, acc.Phone
	if in.Name != nil {
		name = *in.Name
	}
	if in.Phone != nil {
		phone = *in.Phone
	}
	return s.accounts.UpdateProfile(ctx, accountID, name, phone)
}

// ChangePassword verifies the current password; issued tokens stay valid.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, accountID uuid.UUID, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return errs.Invalid("Current password and new password are required")
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword([]byte(in.CurrentPassword), acc.PwdSalt, acc.PwdHash) {
		return errs.Invalid("Current password is incorrect")
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	hash, salt, err := pkgcrypto.NewCredential(in.NewPassword)
	if err != nil {
		return err
	}
	return s.accounts.SetPassword(ctx, accountID, hash, salt, false)
}

// ForgotPassword stores a reset digest and mails the raw token to known, active accounts.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	in := forgotInput{Email: NormalizeEmail(email)}
	if err := validate.Struct(in); err != nil {
		return err
	}
	acc, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	if !acc.Active() {
		return nil
	}
	raw, exp, err := s.tokens.Issue(token.PurposePasswordReset, acc)
	if err != nil {
		return err
	}
	if err := s.accounts.SetResetToken(ctx, acc.ID, pkgcrypto.HashToken(raw), &exp); err != nil {
		return err
	}
	s.send(ctx, func() (mailer.Message, error) { return s.mails.PasswordReset(acc, raw) })
	return nil
}

// ResetPassword sets a new password, clears the reset digest and revokes issued tokens.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if err := validate.Struct(in); err != nil {
		return err
	}
	c, err := s.tokens.VerifyPurpose(in.Token, token.PurposePasswordReset)
	if err != nil {
		return errs.Invalid("Invalid or expired reset token")
	}
	acc, err := s.accountFor(ctx, c)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.Invalid("Invalid reset token")
		}
		return err
	}
	if acc.ResetTokenHash == "" || !pkgcrypto.TokenMatches(in.Token, acc.ResetTokenHash) {
		return errs.Invalid("Invalid reset token")
	}
	if acc.ResetExpiresAt == nil || acc.ResetExpiresAt.Before(s.now()) {
		return errs.Invalid("Reset token has expired")
	}
	hash, salt, err := pkgcrypto.NewCredential(in.Password)
	if err != nil {
		return err
	}
	return s.accounts.SetPassword(ctx, acc.ID, hash, salt, true)
}

// VerifyEmail marks the address verified.
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, tok string) (bool, error) {
	if strings.TrimSpace(tok) == "" {
		return false, errs.Invalid("Verification token is required")
	}
	c, err := s.tokens.VerifyPurpose(tok, token.PurposeVerification)
	if err != nil {
		return false, errs.Invalid("Invalid verification token")
	}
	acc, err := s.accountFor(ctx, c)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, errs.Invalid("Invalid verification token")
		}
		return false, err
	}
	if acc.EmailVerified {
		return true, nil
	}
	return false, s.accounts.MarkEmailVerified(ctx, acc.ID)
}

func (s *AuthServiceImpl) issuePair(acc *model.Account) (model.Tokens, error) {
	access, exp, err := s.tokens.Issue(token.PurposeAccess, acc)
	if err != nil {
		return model.Tokens{}, err
	}
	refresh, _, err := s.tokens.Issue(token.PurposeRefresh, acc)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (s *AuthServiceImpl) accountFor(ctx context.Context, c *token.Claims) (*model.Account, error) {
	id, err := c.AccountID()
	if err != nil {
		return nil, errs.ErrNotFound
	}
	return s.accounts.GetByID(ctx, id)
}

// send renders and enqueues a message; failures are logged and swallowed.
func (s *AuthServiceImpl) send(ctx context.Context, render func() (mailer.Message, error)) {
	enqueue(ctx, s.queue, s.log, render)
}

func enqueue(ctx context.Context, q outbox.Enqueuer, log *zap.Logger, render func() (mailer.Message, error)) {
	m, err := render()
	if err == nil {
		err = q.Enqueue(ctx, m)
	}
	if err != nil {
		log.Warn("email not queued", zap.String("kind", string(m.Kind)), zap.Error(err))
	}
}

func publicTokenErr(err error) error {
	if errors.Is(err, errs.ErrTokenExpired) {
		return errs.With(errs.ErrTokenExpired, "Token expired")
	}
	return errs.With(errs.ErrTokenInvalid, "Invalid token")
}
