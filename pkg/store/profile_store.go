package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"qualityportal/pkg/domain"
)

// RedisProfileStore keeps session profiles in Redis with TTL.
type RedisProfileStore struct {
	client *redis.Client
	prefix string
}

// NewRedisProfileStore builds a Redis-backed profile store on a shared client.
func NewRedisProfileStore(client *redis.Client, prefix string) *RedisProfileStore {
	if prefix == "" {
		prefix = "portal"
	}
	return &RedisProfileStore{client: client, prefix: prefix}
}

// Put writes the serialized user under the session id.
func (s *RedisProfileStore) Put(ctx context.Context, sessionID string, user domain.User, ttl time.Duration) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.client.Set(ctx, s.key(sessionID), raw, ttl).Err()
}

// Get resolves a session id to its user.
func (s *RedisProfileStore) Get(ctx context.Context, sessionID string) (domain.User, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domain.User{}, false, fmt.Errorf("decode profile: %w", err)
	}
	return user, true, nil
}

// Delete removes a session profile.
func (s *RedisProfileStore) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *RedisProfileStore) key(sessionID string) string {
	return s.prefix + ":session:" + sessionID
}

type memoryProfile struct {
	user    domain.User
	expires time.Time
}

// MemoryProfileStore keeps session profiles in-process.
type MemoryProfileStore struct {
	mu       sync.Mutex
	profiles map[string]memoryProfile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]memoryProfile)}
}

func (s *MemoryProfileStore) Put(_ context.Context, sessionID string, user domain.User, ttl time.Duration) error {
	s.mu.Lock()
	s.profiles[sessionID] = memoryProfile{user: user, expires: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryProfileStore) Get(_ context.Context, sessionID string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[sessionID]
	if !ok {
		return domain.User{}, false, nil
	}
	if time.Now().After(p.expires) {
		delete(s.profiles, sessionID)
		return domain.User{}, false, nil
	}
	return p.user, true, nil
}

func (s *MemoryProfileStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.profiles, sessionID)
	s.mu.Unlock()
	return nil
}
