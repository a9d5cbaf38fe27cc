package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/storage"
)

const commentColumns = "c.id, c.post_id, c.user_id, u.username, c.content, c.created_at, c.updated_at"

// CommentStore implements storage.CommentStore on PostgreSQL.
type CommentStore struct {
	db *sql.DB
}

// NewCommentStore creates a CommentStore backed by db.
func NewCommentStore(db *sql.DB) *CommentStore {
	return &CommentStore{db: db}
}

func scanComment(row *sql.Row) (*storage.Comment, error) {
	var comment storage.Comment
	err := row.Scan(
		&comment.ID,
		&comment.PostID,
		&comment.UserID,
		&comment.AuthorUsername,
		&comment.Content,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *CommentStore) Create(ctx context.Context, postID int64, userID uuid.UUID, content string) (*storage.Comment, error) {
	query := `
		WITH inserted AS (
			INSERT INTO comments (post_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, post_id, user_id, content, created_at, updated_at
		)
		SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at, c.updated_at
		FROM inserted c
		JOIN users u ON u.id = c.user_id
	`

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, postID, userID, content))
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

func (s *CommentStore) GetByID(ctx context.Context, id int64) (*storage.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

func (s *CommentStore) ListByPost(ctx context.Context, postID int64, limit, offset int, ascending bool) ([]*storage.Comment, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT `+commentColumns+`
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1
		ORDER BY c.created_at %s
		LIMIT $2 OFFSET $3
	`, direction)

	rows, err := s.db.QueryContext(ctx, query, postID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*storage.Comment
	for rows.Next() {
		var comment storage.Comment
		err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.UserID,
			&comment.AuthorUsername,
			&comment.Content,
			&comment.CreatedAt,
			&comment.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

func (s *CommentStore) CountByPost(ctx context.Context, postID int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE post_id = $1", postID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return total, nil
}

func (s *CommentStore) CountByAuthor(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments by author: %w", err)
	}
	return total, nil
}

func (s *CommentStore) Update(ctx context.Context, id int64, userID uuid.UUID, content string) (*storage.Comment, error) {
	query := `
		WITH updated AS (
			UPDATE comments
			SET content = $3, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, post_id, user_id, content, created_at, updated_at
		)
		SELECT c.id, c.post_id, c.user_id, u.username, c.content, c.created_at, c.updated_at
		FROM updated c
		JOIN users u ON u.id = c.user_id
	`

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, id, userID, content))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return comment, nil
}

func (s *CommentStore) Delete(ctx context.Context, id int64, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return rowsAffected(result, "delete comment")
}
