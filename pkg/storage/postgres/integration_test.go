//go:build integration
// +build integration

package postgres

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/quillhq/quill/pkg/storage"
)

// setupIntegrationDB starts a disposable PostgreSQL container and applies
// the migrations from the repository root.
func setupIntegrationDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("quill_test"),
		tcpostgres.WithUsername("quill"),
		tcpostgres.WithPassword("quill_test_password"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	require.NoError(t, applyMigrations(db), "failed to apply migrations")

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}
	return db, cleanup
}

// applyMigrations runs every up migration from the repository's migrations
// directory in lexical order.
func applyMigrations(db *sql.DB) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	pattern := filepath.Join(wd, "..", "..", "..", "migrations", "*.up.sql")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func TestIntegrationUserLifecycle(t *testing.T) {
	db, cleanup := setupIntegrationDB(t)
	defer cleanup()

	ctx := context.Background()
	users := NewUserStore(db)

	expiresAt := time.Now().Add(24 * time.Hour)
	user, err := users.Create(ctx, "margot", "margot@example.com", "hash-1", "tok-1", expiresAt)
	require.NoError(t, err)
	assert.Equal(t, storage.RoleUser, user.Role)
	assert.False(t, user.Verified)
	require.NotNil(t, user.VerificationToken)
	assert.Equal(t, "tok-1", *user.VerificationToken)

	_, err = users.Create(ctx, "other", "margot@example.com", "hash-2", "tok-2", expiresAt)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
	_, err = users.Create(ctx, "margot", "other@example.com", "hash-2", "tok-3", expiresAt)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	byEmail, err := users.GetByEmail(ctx, "margot@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byToken, err := users.GetByVerificationToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byToken.ID)

	require.NoError(t, users.ConsumeVerificationToken(ctx, "tok-1"))
	verified, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Nil(t, verified.VerificationToken)
	assert.Nil(t, verified.TokenExpiresAt)
	assert.ErrorIs(t, users.ConsumeVerificationToken(ctx, "tok-1"), storage.ErrNotFound)

	taken, err := users.EmailTaken(ctx, "margot@example.com", uuid.New())
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = users.EmailTaken(ctx, "margot@example.com", user.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, users.UpdatePassword(ctx, user.ID, "hash-next"))
	updated, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-next", updated.PasswordHash)

	require.NoError(t, users.Delete(ctx, user.ID))
	_, err = users.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegrationSweeperRemovesOnlyLapsedUnverified(t *testing.T) {
	db, cleanup := setupIntegrationDB(t)
	defer cleanup()

	ctx := context.Background()
	users := NewUserStore(db)

	lapsed, err := users.Create(ctx, "lapsed", "lapsed@example.com", "h", "tok-lapsed", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	pending, err := users.Create(ctx, "pending", "pending@example.com", "h", "tok-pending", time.Now().Add(time.Hour))
	require.NoError(t, err)
	confirmed, err := users.Create(ctx, "confirmed", "confirmed@example.com", "h", "tok-confirmed", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, users.ConsumeVerificationToken(ctx, "tok-confirmed"))

	removed, err := users.DeleteExpiredUnverified(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = users.GetByID(ctx, lapsed.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = users.GetByID(ctx, pending.ID)
	assert.NoError(t, err)
	_, err = users.GetByID(ctx, confirmed.ID)
	assert.NoError(t, err)
}

func TestIntegrationPostsCommentsAndSearch(t *testing.T) {
	db, cleanup := setupIntegrationDB(t)
	defer cleanup()

	ctx := context.Background()
	users := NewUserStore(db)
	posts := NewPostStore(db)
	comments := NewCommentStore(db)

	author, err := users.Create(ctx, "margot", "margot@example.com", "h", "tok-a", time.Now().Add(time.Hour))
	require.NoError(t, err)
	reader, err := users.Create(ctx, "soren", "soren@example.com", "h", "tok-b", time.Now().Add(time.Hour))
	require.NoError(t, err)

	first, err := posts.Create(ctx, author.ID, "Concurrency patterns", "Channels and goroutines in practice", "summary one")
	require.NoError(t, err)
	assert.Equal(t, "margot", first.AuthorUsername)
	second, err := posts.Create(ctx, author.ID, "Gardening notes", "Tomatoes need sun", "summary two")
	require.NoError(t, err)

	byAuthor, err := posts.ListByAuthor(ctx, "margot", 10, 0)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)
	total, err := posts.CountByUsername(ctx, "margot")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// Ownership guards: a stranger cannot edit or delete.
	_, err = posts.Update(ctx, first.ID, reader.ID, "x", "y", "z")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, posts.Delete(ctx, first.ID, reader.ID), storage.ErrNotFound)

	edited, err := posts.Update(ctx, first.ID, author.ID, "Concurrency patterns", "Channels, goroutines, and select loops", "fresh summary")
	require.NoError(t, err)
	assert.Equal(t, "fresh summary", edited.Summary)

	found, err := posts.Search(ctx, "goroutines", 10, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	none, err := posts.Search(ctx, "astrophysics", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	older, err := comments.Create(ctx, first.ID, reader.ID, "great read")
	require.NoError(t, err)
	assert.Equal(t, "soren", older.AuthorUsername)
	_, err = comments.Create(ctx, first.ID, author.ID, "thanks!")
	require.NoError(t, err)

	asc, err := comments.ListByPost(ctx, first.ID, 10, 0, true)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, older.ID, asc[0].ID)

	desc, err := comments.ListByPost(ctx, first.ID, 10, 0, false)
	require.NoError(t, err)
	assert.Equal(t, older.ID, desc[len(desc)-1].ID)

	commentTotal, err := comments.CountByPost(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), commentTotal)

	// Deleting the post cascades to its comments.
	require.NoError(t, posts.Delete(ctx, first.ID, author.ID))
	commentTotal, err = comments.CountByPost(ctx, first.ID)
	require.NoError(t, err)
	assert.Zero(t, commentTotal)

	remaining, err := posts.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.ID, remaining[0].ID)
}

func TestIntegrationNewsletter(t *testing.T) {
	db, cleanup := setupIntegrationDB(t)
	defer cleanup()

	ctx := context.Background()
	newsletter := NewNewsletterStore(db)

	entry, err := newsletter.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", entry.Email)

	_, err = newsletter.Subscribe(ctx, "reader@example.com")
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	require.NoError(t, newsletter.Unsubscribe(ctx, "reader@example.com"))
	assert.ErrorIs(t, newsletter.Unsubscribe(ctx, "reader@example.com"), storage.ErrNotFound)
}
