package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/storage"
)

const postColumns = "p.id, p.user_id, u.username, p.title, p.content, p.summary, p.created_at, p.updated_at"

// PostStore implements storage.PostStore on PostgreSQL. Every read joins
// users so callers get the author username without a second round trip.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a PostStore backed by db.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

func scanPost(row *sql.Row) (*storage.Post, error) {
	var post storage.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.AuthorUsername,
		&post.Title,
		&post.Content,
		&post.Summary,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func scanPosts(rows *sql.Rows) ([]*storage.Post, error) {
	defer rows.Close()

	var posts []*storage.Post
	for rows.Next() {
		var post storage.Post
		err := rows.Scan(
			&post.ID,
			&post.UserID,
			&post.AuthorUsername,
			&post.Title,
			&post.Content,
			&post.Summary,
			&post.CreatedAt,
			&post.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

func (s *PostStore) Create(ctx context.Context, userID uuid.UUID, title, content, summary string) (*storage.Post, error) {
	query := `
		WITH inserted AS (
			INSERT INTO posts (user_id, title, content, summary)
			VALUES ($1, $2, $3, $4)
			RETURNING id, user_id, title, content, summary, created_at, updated_at
		)
		SELECT p.id, p.user_id, u.username, p.title, p.content, p.summary, p.created_at, p.updated_at
		FROM inserted p
		JOIN users u ON u.id = p.user_id
	`

	post, err := scanPost(s.db.QueryRowContext(ctx, query, userID, title, content, summary))
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

func (s *PostStore) GetByID(ctx context.Context, id int64) (*storage.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`

	post, err := scanPost(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

func (s *PostStore) List(ctx context.Context, limit, offset int) ([]*storage.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return scanPosts(rows)
}

func (s *PostStore) ListByAuthor(ctx context.Context, username string, limit, offset int) ([]*storage.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE u.username = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author: %w", err)
	}
	return scanPosts(rows)
}

func (s *PostStore) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return total, nil
}

func (s *PostStore) CountByUsername(ctx context.Context, username string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE u.username = $1
	`

	var total int64
	if err := s.db.QueryRowContext(ctx, query, username).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count posts by username: %w", err)
	}
	return total, nil
}

func (s *PostStore) CountByAuthor(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts by author: %w", err)
	}
	return total, nil
}

func (s *PostStore) Update(ctx context.Context, id int64, userID uuid.UUID, title, content, summary string) (*storage.Post, error) {
	// The ownership check lives in the WHERE clause so a foreign post is
	// indistinguishable from a missing one.
	query := `
		WITH updated AS (
			UPDATE posts
			SET title = $3, content = $4, summary = $5, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, user_id, title, content, summary, created_at, updated_at
		)
		SELECT p.id, p.user_id, u.username, p.title, p.content, p.summary, p.created_at, p.updated_at
		FROM updated p
		JOIN users u ON u.id = p.user_id
	`

	post, err := scanPost(s.db.QueryRowContext(ctx, query, id, userID, title, content, summary))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

func (s *PostStore) Delete(ctx context.Context, id int64, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return rowsAffected(result, "delete post")
}

func (s *PostStore) Search(ctx context.Context, query string, limit, offset int) ([]*storage.Post, error) {
	// plainto_tsquery treats the input as literal words, so raw user
	// queries are safe to pass through.
	searchQuery := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE to_tsvector('english', p.title || ' ' || p.content) @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(to_tsvector('english', p.title || ' ' || p.content), plainto_tsquery('english', $1)) DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, searchQuery, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return scanPosts(rows)
}
