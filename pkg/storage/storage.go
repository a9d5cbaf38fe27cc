// Package storage defines the domain records, store interfaces, and shared
// connection configuration for quill's persistence layer.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by all store implementations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("storage: duplicate record")
)

// Role is the access level attached to a user record.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the credential record. PasswordHash is never serialized.
// VerificationToken and TokenExpiresAt are both set or both nil; the pair
// doubles as the email-verification token and the password-reset token.
type User struct {
	ID                uuid.UUID  `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	Verified          bool       `json:"verified"`
	VerificationToken *string    `json:"-"`
	TokenExpiresAt    *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Post is a published blog entry. Summary is derived from content and may
// lag behind it after an edit.
type Post struct {
	ID             int64     `json:"id"`
	UserID         uuid.UUID `json:"-"`
	AuthorUsername string    `json:"userUsername"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Comment is a user remark attached to a post.
type Comment struct {
	ID             int64     `json:"id"`
	PostID         int64     `json:"post_id"`
	UserID         uuid.UUID `json:"-"`
	AuthorUsername string    `json:"userUsername"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewsletterEmail is a subscription record.
type NewsletterEmail struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStore persists credential records.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash, verificationToken string, tokenExpiresAt time.Time) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	Count(ctx context.Context) (int64, error)

	UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*User, error)
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// EmailTaken reports whether a user other than excludeID already owns
	// the email address.
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)

	// SetVerificationToken attaches a fresh token+expiry pair to the user.
	// Used both for email verification and password reset.
	SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error
	// ConsumeVerificationToken marks the holder verified and clears the
	// token+expiry pair so it cannot be replayed.
	ConsumeVerificationToken(ctx context.Context, token string) error

	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteExpiredUnverified removes unverified users whose verification
	// tokens have lapsed. Returns the number of rows removed.
	DeleteExpiredUnverified(ctx context.Context) (int64, error)
}

// PostStore persists blog posts.
type PostStore interface {
	Create(ctx context.Context, userID uuid.UUID, title, content, summary string) (*Post, error)
	GetByID(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context, limit, offset int) ([]*Post, error)
	ListByAuthor(ctx context.Context, username string, limit, offset int) ([]*Post, error)
	Count(ctx context.Context) (int64, error)
	CountByUsername(ctx context.Context, username string) (int64, error)
	CountByAuthor(ctx context.Context, userID uuid.UUID) (int64, error)
	// Update modifies a post only if userID owns it; ErrNotFound otherwise.
	Update(ctx context.Context, id int64, userID uuid.UUID, title, content, summary string) (*Post, error)
	// Delete removes a post only if userID owns it; ErrNotFound otherwise.
	Delete(ctx context.Context, id int64, userID uuid.UUID) error
	// Search returns posts ranked by full-text relevance against the query.
	Search(ctx context.Context, query string, limit, offset int) ([]*Post, error)
}

// CommentStore persists comments.
type CommentStore interface {
	Create(ctx context.Context, postID int64, userID uuid.UUID, content string) (*Comment, error)
	GetByID(ctx context.Context, id int64) (*Comment, error)
	ListByPost(ctx context.Context, postID int64, limit, offset int, ascending bool) ([]*Comment, error)
	CountByPost(ctx context.Context, postID int64) (int64, error)
	CountByAuthor(ctx context.Context, userID uuid.UUID) (int64, error)
	// Update modifies a comment only if userID owns it; ErrNotFound otherwise.
	Update(ctx context.Context, id int64, userID uuid.UUID, content string) (*Comment, error)
	// Delete removes a comment only if userID owns it; ErrNotFound otherwise.
	Delete(ctx context.Context, id int64, userID uuid.UUID) error
}

// NewsletterStore persists newsletter subscriptions.
type NewsletterStore interface {
	Subscribe(ctx context.Context, email string) (*NewsletterEmail, error)
	Unsubscribe(ctx context.Context, email string) error
}

// Config for the storage backends.
type Config struct {
	// PostgreSQL config
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
	}
}
