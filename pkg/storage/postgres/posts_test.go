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

var postTestColumns = []string{
	"id", "user_id", "username", "title", "content", "summary", "created_at", "updated_at",
}

func setupPostStoreTest(t *testing.T) (*PostStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostStore(db), mock, db
}

func TestPostStoreCreateReturnsAuthorUsername(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	userID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(postTestColumns).
		AddRow(int64(7), userID.String(), "margot", "First Post", "<p>hello</p>", "hello", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO posts")).
		WithArgs(userID, "First Post", "<p>hello</p>", "hello").
		WillReturnRows(rows)

	post, err := store.Create(context.Background(), userID, "First Post", "<p>hello</p>", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(7), post.ID)
	assert.Equal(t, "margot", post.AuthorUsername)
	assert.Equal(t, userID, post.UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreGetByIDNotFound(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id = $1")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreListByAuthor(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	userID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(postTestColumns).
		AddRow(int64(2), userID.String(), "margot", "Second", "body", "sum", now, now).
		AddRow(int64(1), userID.String(), "margot", "First", "body", "sum", now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.username = $1")).
		WithArgs("margot", 10, 0).
		WillReturnRows(rows)

	posts, err := store.ListByAuthor(context.Background(), "margot", 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(2), posts[0].ID)
	assert.Equal(t, "margot", posts[0].AuthorUsername)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreListEmptyPage(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY p.created_at DESC")).
		WithArgs(10, 100).
		WillReturnRows(sqlmock.NewRows(postTestColumns))

	posts, err := store.List(context.Background(), 10, 100)
	require.NoError(t, err)
	assert.Empty(t, posts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreUpdateEnforcesOwnership(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	stranger := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(7), stranger, "t", "c", "s").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Update(context.Background(), 7, stranger, "t", "c", "s")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreDeleteEnforcesOwnership(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	owner := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM posts WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(7), owner).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, store.Delete(context.Background(), 7, owner))

	stranger := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM posts WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(7), stranger).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(context.Background(), 7, stranger), storage.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreSearch(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(postTestColumns).
		AddRow(int64(3), uuid.New().String(), "soren", "Go generics", "about generics", "sum", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("plainto_tsquery('english', $1)")).
		WithArgs("generics", 10, 0).
		WillReturnRows(rows)

	posts, err := store.Search(context.Background(), "generics", 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Go generics", posts[0].Title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostStoreCountByUsername(t *testing.T) {
	store, mock, db := setupPostStoreTest(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("margot").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	total, err := store.CountByUsername(context.Background(), "margot")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	assert.NoError(t, mock.ExpectationsWereMet())
}
