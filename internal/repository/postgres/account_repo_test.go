package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var accountColumns = []string{"id", "email", "name", "phone", "pwd_hash", "pwd_salt", "role", "state",
	"token_version", "email_verified", "reset_token_hash", "reset_expires_at", "last_login_at",
	"created_at", "updated_at"}

func accountRows(a *model.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumns).AddRow(a.ID, a.Email, a.Name, a.Phone, a.PwdHash, a.PwdSalt,
		a.Role, a.State, a.TokenVersion, a.EmailVerified, a.ResetTokenHash, a.ResetExpiresAt,
		a.LastLoginAt, a.CreatedAt, a.UpdatedAt)
}

func sampleAccount() *model.Account {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &model.Account{
		ID:        uuid.Must(uuid.NewV4()),
		Email:     "a@x.com",
		Name:      "Ann Lee",
		PwdHash:   []byte("h"),
		PwdSalt:   []byte("s"),
		Role:      model.RoleUser,
		State:     model.LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAccountRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := sampleAccount()

	mock.ExpectExec(`INSERT INTO accounts \(id, email, name, phone, pwd_hash, pwd_salt, role, state, token_version, email_verified, created_at, updated_at\)`).
		WithArgs(a.ID, a.Email, a.Name, a.Phone, a.PwdHash, a.PwdSalt, a.Role, a.State, a.TokenVersion, a.EmailVerified, a.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, a))

	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs(a.ID, a.Email, a.Name, a.Phone, a.PwdHash, a.PwdSalt, a.Role, a.State, a.TokenVersion, a.EmailVerified, a.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, a), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID_and_GetByEmail(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := sampleAccount()
	last := a.CreatedAt.Add(time.Hour)
	a.LastLoginAt = &last
	a.TokenVersion = 4

	mock.ExpectQuery(`FROM accounts WHERE id=\$1`).WithArgs(a.ID).WillReturnRows(accountRows(a))
	got, err := r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Email, got.Email)
	require.Equal(t, int64(4), got.TokenVersion)
	require.Equal(t, last, *got.LastLoginAt)
	require.Nil(t, got.ResetExpiresAt)

	mock.ExpectQuery(`FROM accounts WHERE email=\$1`).WithArgs("a@x.com").WillReturnRows(accountRows(a))
	got, err = r.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	mock.ExpectQuery(`FROM accounts WHERE email=\$1`).WithArgs("none@x.com").WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmail(ctx, "none@x.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateProfile(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	a := sampleAccount()
	a.Name, a.Phone = "Ann-Marie Lee", "+1 (555) 010-2030"

	mock.ExpectQuery(`UPDATE accounts SET name=\$2, phone=\$3, updated_at=now\(\) WHERE id=\$1 RETURNING`).
		WithArgs(a.ID, a.Name, a.Phone).
		WillReturnRows(accountRows(a))
	got, err := r.UpdateProfile(context.Background(), a.ID, a.Name, a.Phone)
	require.NoError(t, err)
	require.Equal(t, "Ann-Marie Lee", got.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_SetPassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE accounts SET pwd_hash=\$2, pwd_salt=\$3, reset_token_hash='', reset_expires_at=NULL`).
		WithArgs(id, []byte("h2"), []byte("s2"), true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetPassword(context.Background(), id, []byte("h2"), []byte("s2"), true))

	mock.ExpectExec(`UPDATE accounts SET pwd_hash`).
		WithArgs(id, []byte("h2"), []byte("s2"), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.SetPassword(context.Background(), id, []byte("h2"), []byte("s2"), false), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_BumpTokenVersion(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectQuery(`UPDATE accounts SET token_version = token_version \+ 1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(int64(8)))
	v, err := r.BumpTokenVersion(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(8), v)

	mock.ExpectQuery(`UPDATE accounts SET token_version`).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = r.BumpTokenVersion(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ResetToken_Verify_State_Login(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	exp := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE accounts SET reset_token_hash=\$2, reset_expires_at=\$3`).
		WithArgs(id, "digest", &exp).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetResetToken(ctx, id, "digest", &exp))

	mock.ExpectExec(`UPDATE accounts SET reset_token_hash=\$2, reset_expires_at=\$3`).
		WithArgs(id, "", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetResetToken(ctx, id, "", &exp))

	mock.ExpectExec(`UPDATE accounts SET email_verified=TRUE`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.MarkEmailVerified(ctx, id))

	mock.ExpectExec(`UPDATE accounts SET state=\$2`).
		WithArgs(id, model.LifecycleDeactivated).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetState(ctx, id, model.LifecycleDeactivated))

	mock.ExpectExec(`UPDATE accounts SET last_login_at=\$2 WHERE id=\$1`).
		WithArgs(id, exp).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.TouchLogin(ctx, id, exp))
	require.NoError(t, mock.ExpectationsWereMet())
}
