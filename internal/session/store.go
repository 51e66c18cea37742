// Package session tracks revoked access tokens.  Access tokens are
// stateless JWTs, so signing out records the token id (jti) here until the
// token would have expired anyway.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records revoked token ids.
type Store interface {
	// Revoke marks jti as revoked until the given instant.
	Revoke(ctx context.Context, jti string, until time.Time) error
	// IsRevoked reports whether jti has been revoked and is still tracked.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisStore keeps revocations in Redis with a TTL matching the token
// lifetime, so entries disappear on their own.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a Store backed by rdb.  Keys are "<prefix>:<jti>".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(jti string) string { return s.prefix + ":" + jti }

func (s *RedisStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil // already expired, nothing to remember
	}
	return s.rdb.Set(ctx, s.key(jti), 1, ttl).Err()
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryStore is an in-process Store used when Redis is unavailable and in
// tests.  Expired ids are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, k)
		}
	}
	if until.After(now) {
		s.revoked[jti] = until
	}
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

// NewStore picks the Redis store when rdb is non-nil and the memory store
// otherwise.
func NewStore(rdb *redis.Client) Store {
	if rdb == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(rdb, "revoked")
}
