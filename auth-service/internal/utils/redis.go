package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tattoo-app/pkg/identity"
)

var ErrCacheMiss = errors.New("key not found")

// SessionStore keeps revoked token ids and cached public profiles in redis.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func revokedKey(jti string) string {
	return "blacklist:" + jti
}

func profileKey(userID string) string {
	return "user_profile:" + userID
}

// Revoke запоминает jti до истечения токена
func (s *SessionStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.client.Set(ctx, revokedKey(jti), 1, ttl).Err()
}

func (s *SessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *SessionStore) CachedUser(ctx context.Context, userID string) (*identity.User, error) {
	val, err := s.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var u identity.User
	if err := json.Unmarshal(val, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SessionStore) CacheUser(ctx context.Context, u identity.User, ttl time.Duration) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(u.ID), data, ttl).Err()
}
