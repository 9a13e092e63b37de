package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*NotificationRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewNotificationRepository(mock, zap.NewNop()), mock
}

func TestMarkReadByNonOwnerIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	// the row exists but belongs to someone else, so the guarded
	// UPDATE touches nothing
	mock.ExpectExec(`UPDATE notifications SET read = TRUE`).
		WithArgs("notif-1", "mallory").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkRead(context.Background(), "mallory", "notif-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadByOwner(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE notifications SET read = TRUE`).
		WithArgs("notif-1", "alice").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.MarkRead(context.Background(), "alice", "notif-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE notifications SET read = TRUE`).
		WithArgs("alice").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`UPDATE notifications SET read = TRUE`).
		WithArgs("alice").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	updated, err := repo.MarkAllRead(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	// nothing left unread; still not an error
	updated, err = repo.MarkAllRead(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByNonOwnerIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM notifications WHERE id`).
		WithArgs("notif-1", "mallory").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "mallory", "notif-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUserLastPartialPage(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(15))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND read = FALSE`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	rows := pgxmock.NewRows([]string{"id", "user_id", "type", "message", "metadata", "read", "correlation_id", "created_at"})
	for _, id := range []string{"n-11", "n-12", "n-13", "n-14", "n-15"} {
		rows.AddRow(id, "alice", "TASK_ASSIGNED", "mensagem", []byte(`{}`), false, "corr-1", time.Now())
	}
	mock.ExpectQuery(`SELECT id, user_id, type, message, metadata, read, correlation_id, created_at`).
		WithArgs("alice", 10, 10).
		WillReturnRows(rows)

	page, err := repo.ListForUser(context.Background(), "alice", 2, 10, false)
	require.NoError(t, err)

	assert.Len(t, page.Notifications, 5)
	assert.Equal(t, 15, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Size)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 4, page.UnreadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUserUnreadOnlyFiltersQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND read = FALSE`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND read = FALSE`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`AND read = FALSE\s+ORDER BY created_at DESC`).
		WithArgs("alice", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "type", "message", "metadata", "read", "correlation_id", "created_at"}).
			AddRow("n-1", "alice", "COMMENT_ADDED", "mensagem", []byte(`{}`), false, "corr-1", time.Now()))

	page, err := repo.ListForUser(context.Background(), "alice", 1, 0, true)
	require.NoError(t, err)

	assert.Len(t, page.Notifications, 1)
	assert.Equal(t, 1, page.UnreadCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 10))
	assert.Equal(t, 1, totalPages(10, 10))
	assert.Equal(t, 2, totalPages(15, 10))
	assert.Equal(t, 2, totalPages(11, 10))
}
