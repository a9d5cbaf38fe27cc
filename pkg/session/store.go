package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession indicates no refresh token is stored for the subject.
var ErrNoSession = errors.New("session: no session for subject")

const refreshKeyPrefix = "refresh:"

// Store keeps at most one live refresh token per subject, keyed by
// refresh:<subject-id>. Save overwrites unconditionally, so the newest login
// always wins and earlier refresh tokens for the same subject stop matching.
type Store struct {
	client *redis.Client
}

// NewStore returns a refresh-token store backed by the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save stores the refresh token for subject with the given lifetime,
// replacing any existing entry.
func (s *Store) Save(ctx context.Context, subject, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(subject), token, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Get returns the stored refresh token for subject, or ErrNoSession when
// none exists.
func (s *Store) Get(ctx context.Context, subject string) (string, error) {
	token, err := s.client.Get(ctx, refreshKey(subject)).Result()
	if err == redis.Nil {
		return "", ErrNoSession
	} else if err != nil {
		return "", fmt.Errorf("get refresh token: %w", err)
	}
	return token, nil
}

// Delete removes the subject's session entry. Deleting an absent entry is
// not an error.
func (s *Store) Delete(ctx context.Context, subject string) error {
	if err := s.client.Del(ctx, refreshKey(subject)).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func refreshKey(subject string) string {
	return refreshKeyPrefix + subject
}
