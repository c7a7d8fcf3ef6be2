package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return sqlx.NewDb(conn, "postgres"), mock
}

var messageRowColumns = []string{"id", "room_id", "sender", "body", "encoded", "created_at", "updated_at"}

func TestHistoryBindsLargeAnchorAgainstID(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewMessageRepo(database)
	now := time.Now()

	anchor := int64(3_000_000_000)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM chats WHERE room_id=$1 AND id <= $2 ORDER BY id DESC LIMIT $3 OFFSET $4`)).
		WithArgs(int64(7), anchor, 2, 0).
		WillReturnRows(sqlmock.NewRows(messageRowColumns).
			AddRow(anchor, 7, 1, "hi", false, now, now).
			AddRow(anchor-1, 7, 2, "hey", false, now, now))

	msgs, err := repo.History(context.Background(), 7, anchor, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, anchor, msgs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryWithoutAnchorHasNoIDBound(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewMessageRepo(database)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM chats WHERE room_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`)).
		WithArgs(int64(7), 20, 40).
		WillReturnRows(sqlmock.NewRows(messageRowColumns))

	msgs, err := repo.History(context.Background(), 7, 0, 20, 40)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountHistory(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewMessageRepo(database)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM chats WHERE room_id=$1 AND id <= $2`)).
		WithArgs(int64(7), int64(3_000_000_000)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM chats WHERE room_id=$1`) + `$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	n, err := repo.CountHistory(context.Background(), 7, 3_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = repo.CountHistory(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
