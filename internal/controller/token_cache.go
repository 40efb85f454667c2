package controller

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCacheStore keeps encoded controller login sessions between portal authentications.
type TokenCacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type NoopTokenCacheStore struct{}

func NewNoopTokenCacheStore() *NoopTokenCacheStore { return &NoopTokenCacheStore{} }

func (NoopTokenCacheStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (NoopTokenCacheStore) Set(context.Context, string, string, time.Duration) error { return nil }

func (NoopTokenCacheStore) Delete(context.Context, string) error { return nil }

type tokenCacheEntry struct {
	token     string
	expiresAt time.Time
}

type InMemoryTokenCacheStore struct {
	mu    sync.RWMutex
	store map[string]tokenCacheEntry
}

func NewInMemoryTokenCacheStore() *InMemoryTokenCacheStore {
	return &InMemoryTokenCacheStore{store: make(map[string]tokenCacheEntry)}
}

func (s *InMemoryTokenCacheStore) Get(_ context.Context, key string) (string, bool, error) {
	now := time.Now().UTC()
	s.mu.RLock()
	entry, ok := s.store[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !now.Before(entry.expiresAt) {
		s.mu.Lock()
		if current, still := s.store[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.store, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.token, true, nil
}

func (s *InMemoryTokenCacheStore) Set(_ context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 || token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = tokenCacheEntry{token: token, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *InMemoryTokenCacheStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

type RedisTokenCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisTokenCacheStore(client redis.UniversalClient, prefix string) *RedisTokenCacheStore {
	if prefix == "" {
		prefix = "omada_token"
	}
	return &RedisTokenCacheStore{client: client, prefix: prefix}
}

func (s *RedisTokenCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.client == nil {
		return "", false, nil
	}
	token, err := s.client.Get(ctx, s.dataKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (s *RedisTokenCacheStore) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 || token == "" {
		return nil
	}
	return s.client.Set(ctx, s.dataKey(key), token, ttl).Err()
}

func (s *RedisTokenCacheStore) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.dataKey(key)).Err()
}

func (s *RedisTokenCacheStore) dataKey(key string) string {
	return s.prefix + ":" + key
}
