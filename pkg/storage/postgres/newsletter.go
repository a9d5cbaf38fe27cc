package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quillhq/quill/pkg/storage"
)

// NewsletterStore implements storage.NewsletterStore on PostgreSQL.
type NewsletterStore struct {
	db *sql.DB
}

// NewNewsletterStore creates a NewsletterStore backed by db.
func NewNewsletterStore(db *sql.DB) *NewsletterStore {
	return &NewsletterStore{db: db}
}

func (s *NewsletterStore) Subscribe(ctx context.Context, email string) (*storage.NewsletterEmail, error) {
	query := `
		INSERT INTO newsletter_subscribers (email)
		VALUES ($1)
		RETURNING id, email, created_at
	`

	var entry storage.NewsletterEmail
	err := s.db.QueryRowContext(ctx, query, email).Scan(&entry.ID, &entry.Email, &entry.CreatedAt)
	if isUniqueViolation(err) {
		return nil, storage.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("failed to subscribe email: %w", err)
	}
	return &entry, nil
}

func (s *NewsletterStore) Unsubscribe(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM newsletter_subscribers WHERE email = $1", email)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe email: %w", err)
	}
	return rowsAffected(result, "unsubscribe email")
}
