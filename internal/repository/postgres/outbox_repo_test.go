package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cosmetics-shop/internal/model"
)

func TestOutboxRepo_Enqueue(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewOutboxRepo(db)
	e := model.Email{Kind: model.EmailWelcome, To: "a@x.com", Subject: "Welcome", HTML: "<p>hi</p>"}

	mock.ExpectExec(`INSERT INTO email_outbox`).
		WithArgs(pgxmock.AnyArg(), model.EmailWelcome, "a@x.com", "", "Welcome", "<p>hi</p>", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := r.Enqueue(context.Background(), e)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo_Claim_UsesLeaseCutoff(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewOutboxRepo(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.Must(uuid.NewV4())

	cols := []string{"id", "kind", "recipient", "reply_to", "subject", "html", "text", "status", "attempts",
		"last_error", "created_at", "sent_at"}
	mock.ExpectQuery(`UPDATE email_outbox SET status='sending', claimed_at=\$1 WHERE id IN \(.*FOR UPDATE SKIP LOCKED \) RETURNING`).
		WithArgs(now, now.Add(-5*time.Minute), 20).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(id, model.EmailPasswordReset, "a@x.com", "",
			"Reset", "<p/>", "", model.OutboxSending, 0, "", now.Add(-time.Minute), (*time.Time)(nil)))

	got, err := r.Claim(context.Background(), 20, now, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, id, got[0].ID)
	require.Equal(t, model.EmailPasswordReset, got[0].Email.Kind)
	require.Equal(t, "a@x.com", got[0].Email.To)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo_MarkAndPurge(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewOutboxRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET status='sent'`).WithArgs(id, 2, at).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.MarkSent(ctx, id, 2, at))

	mock.ExpectExec(`SET status='dead'`).WithArgs(id, 3, "smtp down").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.MarkDead(ctx, id, 3, "smtp down"))

	mock.ExpectExec(`DELETE FROM email_outbox WHERE status='sent' AND sent_at < \$1`).
		WithArgs(at).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	n, err := r.PurgeSent(ctx, at)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
