package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/pkg/storage"
)

const userColumns = "id, username, email, password_hash, role, verified, verification_token, token_expires_at, created_at, updated_at"

// UserStore implements storage.UserStore on PostgreSQL.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore backed by db.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// scanUser scans one user row, folding the nullable token columns into
// pointers.
func scanUser(row *sql.Row) (*storage.User, error) {
	var (
		user      storage.User
		token     sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Verified,
		&token,
		&expiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		user.VerificationToken = &token.String
	}
	if expiresAt.Valid {
		user.TokenExpiresAt = &expiresAt.Time
	}
	return &user, nil
}

func (s *UserStore) Create(ctx context.Context, username, email, passwordHash, verificationToken string, tokenExpiresAt time.Time) (*storage.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, verification_token, token_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, username, email, passwordHash, verificationToken, tokenExpiresAt))
	if isUniqueViolation(err) {
		return nil, storage.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*storage.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (s *UserStore) GetByVerificationToken(ctx context.Context, token string) (*storage.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user by verification token: %w", err)
	}
	return user, nil
}

func (s *UserStore) List(ctx context.Context, limit, offset int) ([]*storage.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*storage.User
	for rows.Next() {
		var (
			user      storage.User
			token     sql.NullString
			expiresAt sql.NullTime
		)
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.Verified,
			&token,
			&expiresAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if token.Valid {
			user.VerificationToken = &token.String
		}
		if expiresAt.Valid {
			user.TokenExpiresAt = &expiresAt.Time
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

func (s *UserStore) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*storage.User, error) {
	query := `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id, username))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if isUniqueViolation(err) {
		return nil, storage.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("failed to update username: %w", err)
	}
	return user, nil
}

func (s *UserStore) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*storage.User, error) {
	query := `
		UPDATE users
		SET email = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id, email))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	} else if isUniqueViolation(err) {
		return nil, storage.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("failed to update email: %w", err)
	}
	return user, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return rowsAffected(result, "update password")
}

func (s *UserStore) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)`

	var taken bool
	if err := s.db.QueryRowContext(ctx, query, email, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

func (s *UserStore) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET verification_token = $2, token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to set verification token: %w", err)
	}
	return rowsAffected(result, "set verification token")
}

func (s *UserStore) ConsumeVerificationToken(ctx context.Context, token string) error {
	query := `
		UPDATE users
		SET verified = true, verification_token = NULL, token_expires_at = NULL, updated_at = NOW()
		WHERE verification_token = $1
	`

	result, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to consume verification token: %w", err)
	}
	return rowsAffected(result, "consume verification token")
}

func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return rowsAffected(result, "delete user")
}

func (s *UserStore) DeleteExpiredUnverified(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM users
		WHERE verified = false
		  AND token_expires_at IS NOT NULL
		  AND token_expires_at < NOW()
	`

	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired unverified users: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return removed, nil
}
