package httpapi

import (
	"net/http"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/service"
)

type session struct {
	User   *model.Account `json:"user"`
	Tokens model.Tokens   `json:"tokens"`
}

type userBody struct {
	User *model.Account `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, toks, err := a.auth.Register(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, "User registered successfully", session{User: acc, Tokens: toks})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	acc, toks, err := a.auth.Login(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Login successful", session{User: acc, Tokens: toks})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	toks, err := a.auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Token refreshed successfully", toks)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.auth.Logout(r.Context(), acc.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Logged out successfully", nil)
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "If the email exists, a password reset link has been sent", nil)
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetPasswordInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.auth.ResetPassword(r.Context(), in); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Password reset successfully", nil)
}

func (a *API) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	already, err := a.auth.VerifyEmail(r.Context(), in.Token)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if already {
		ok(w, "Email is already verified", nil)
		return
	}
	ok(w, "Email verified successfully", nil)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	fresh, err := a.auth.Me(r.Context(), acc.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Profile fetched", userBody{User: fresh})
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in service.ProfileInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	updated, err := a.auth.UpdateProfile(r.Context(), acc.ID, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Profile updated successfully", userBody{User: updated})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in service.ChangePasswordInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.auth.ChangePassword(r.Context(), acc.ID, in); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Password changed successfully", nil)
}

// viewer returns the optional caller, nil for anonymous requests.
func viewer(r *http.Request) *model.Account {
	acc, _ := AccountFromCtx(r.Context())
	return acc
}

var errNoIdentity = errs.With(errs.ErrUnauthorized, "Authentication required")

// caller returns the authenticated account or errNoIdentity.
func caller(r *http.Request) (*model.Account, error) {
	acc, found := AccountFromCtx(r.Context())
	if !found {
		return nil, errNoIdentity
	}
	return acc, nil
}

func (a *API) setAccountState(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in service.AccountStateInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	updated, err := a.auth.SetAccountState(r.Context(), acc, id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	msg := "Account activated"
	if !updated.Active() {
		msg = "Account deactivated"
	}
	ok(w, msg, userBody{User: updated})
}
