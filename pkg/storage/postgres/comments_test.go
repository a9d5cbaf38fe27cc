package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/pkg/storage"
)

var commentTestColumns = []string{
	"id", "post_id", "user_id", "username", "content", "created_at", "updated_at",
}

func setupCommentStoreTest(t *testing.T) (*CommentStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewCommentStore(db), mock, db
}

func TestCommentStoreCreate(t *testing.T) {
	store, mock, db := setupCommentStoreTest(t)
	defer db.Close()

	userID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(commentTestColumns).
		AddRow(int64(1), int64(7), userID.String(), "margot", "nice post", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comments")).
		WithArgs(int64(7), userID, "nice post").
		WillReturnRows(rows)

	comment, err := store.Create(context.Background(), 7, userID, "nice post")
	require.NoError(t, err)
	assert.Equal(t, int64(7), comment.PostID)
	assert.Equal(t, "margot", comment.AuthorUsername)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentStoreListByPostDirection(t *testing.T) {
	store, mock, db := setupCommentStoreTest(t)
	defer db.Close()

	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.created_at DESC")).
		WithArgs(int64(7), 10, 0).
		WillReturnRows(sqlmock.NewRows(commentTestColumns).
			AddRow(int64(2), int64(7), uuid.New().String(), "soren", "second", now, now))

	comments, err := store.ListByPost(context.Background(), 7, 10, 0, false)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.created_at ASC")).
		WithArgs(int64(7), 10, 0).
		WillReturnRows(sqlmock.NewRows(commentTestColumns).
			AddRow(int64(1), int64(7), uuid.New().String(), "margot", "first", now, now))

	comments, err = store.ListByPost(context.Background(), 7, 10, 0, true)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "first", comments[0].Content)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentStoreUpdateEnforcesOwnership(t *testing.T) {
	store, mock, db := setupCommentStoreTest(t)
	defer db.Close()

	stranger := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(1), stranger, "edited").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Update(context.Background(), 1, stranger, "edited")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentStoreDeleteEnforcesOwnership(t *testing.T) {
	store, mock, db := setupCommentStoreTest(t)
	defer db.Close()

	owner := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM comments WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(1), owner).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Delete(context.Background(), 1, owner), storage.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentStoreCountByPost(t *testing.T) {
	store, mock, db := setupCommentStoreTest(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM comments WHERE post_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	total, err := store.CountByPost(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	assert.NoError(t, mock.ExpectationsWereMet())
}
