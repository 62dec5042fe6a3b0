package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ForgetPasswordPrefix namespaces reset tokens in Redis.
	ForgetPasswordPrefix = "forget-password:"
	// ResetTokenTTL is how long a reset link stays valid.
	ResetTokenTTL = 3 * 24 * time.Hour
)

// ErrTokenNotFound means the token never existed, was used, or expired.
var ErrTokenNotFound = errors.New("reset token not found")

// TokenStore keeps password reset tokens in Redis, mapping each token to a
// user id.
type TokenStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return &TokenStore{client: client, ttl: ResetTokenTTL}
}

// Create issues a new token for userID.
func (s *TokenStore) Create(ctx context.Context, userID int) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, ForgetPasswordPrefix+token, strconv.Itoa(userID), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	return token, nil
}

// Lookup returns the user id a token was issued for.
func (s *TokenStore) Lookup(ctx context.Context, token string) (int, error) {
	val, err := s.client.Get(ctx, ForgetPasswordPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading reset token: %w", err)
	}
	id, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("reset token holds %q: %w", val, err)
	}
	return id, nil
}

// Delete invalidates token.
func (s *TokenStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, ForgetPasswordPrefix+token).Err(); err != nil {
		return fmt.Errorf("deleting reset token: %w", err)
	}
	return nil
}
