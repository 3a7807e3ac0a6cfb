// Package token resolves opaque auth tokens to user IDs via Redis. Token
// issuance is owned by the account service; the realtime layer only looks
// tokens up at connect time, so a missing token simply refuses the upgrade.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for token lookups.
	KeyPrefix = "authtoken:"

	// TokenTTL matches the account service's session lifetime.
	TokenTTL = 24 * time.Hour
)

// ErrNotFound is returned when a token does not resolve to a user.
var ErrNotFound = errors.New("token: not found")

// Store resolves tokens against Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a token store backed by the given Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Resolve returns the user ID a token belongs to, or ErrNotFound.
func (s *Store) Resolve(ctx context.Context, tok string) (string, error) {
	if tok == "" {
		return "", ErrNotFound
	}
	userID, err := s.client.Get(ctx, KeyPrefix+tok).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("token: resolve: %w", err)
	}
	return userID, nil
}

// Issue creates a fresh token for a user. Only the simulator and tests use
// this; production tokens come from the account service writing the same keys.
func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	tok := uuid.New().String()
	if err := s.client.Set(ctx, KeyPrefix+tok, userID, TokenTTL).Err(); err != nil {
		return "", fmt.Errorf("token: issue: %w", err)
	}
	return tok, nil
}

// Revoke deletes a token.
func (s *Store) Revoke(ctx context.Context, tok string) error {
	return s.client.Del(ctx, KeyPrefix+tok).Err()
}
