// Package session implements the Redis-backed web session store. A session
// lives for a fixed idle window and is renewed on every authenticated
// request, so a cabinet left open expires five minutes after the last
// action by default.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id is unknown or has expired.
var ErrNotFound = errors.New("session not found")

// Session is the authenticated principal carried by a web cookie.
type Session struct {
	ID       string `json:"id"`
	UserUUID string `json:"user_uuid"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store keeps sessions in Redis under a common key prefix with an idle TTL.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore builds a Store with the given idle timeout.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, prefix: "session:", ttl: ttl}
}

// TTL returns the configured idle timeout.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create registers a new session and returns it with a generated id.
func (s *Store) Create(ctx context.Context, userUUID, username, role string) (Session, error) {
	sess := Session{
		ID:       uuid.NewString(),
		UserUUID: userUUID,
		Username: username,
		Role:     role,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+sess.ID, data, s.ttl).Err(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get loads a session and resets its idle clock. Every successful lookup
// pushes the expiry back to now + TTL.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	key := s.prefix + id
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Delete terminates a session. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}
