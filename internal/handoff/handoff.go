// Package handoff carries registration prefill data from the attendance
// search to the sign-up flow. The transfer is transient: a prefill is
// deleted the moment it is consumed.
package handoff

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Prefill is the data handed to the registration form, keyed by form field
// ("cedula" or "nombre").
type Prefill map[string]string

// Store is the abstraction over different backends.
type Store interface {
	// Put stages a prefill, replacing any staged one.
	Put(ctx context.Context, p Prefill) error
	// Take consumes the staged prefill, deleting it. ok is false when
	// nothing is staged.
	Take(ctx context.Context) (p Prefill, ok bool, err error)
}

// InMemory is a single-slot store for when both flows run in one process.
type InMemory struct {
	mu      sync.Mutex
	staged  Prefill
	present bool
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Put stages a prefill.
func (s *InMemory) Put(_ context.Context, p Prefill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = p
	s.present = p != nil
	return nil
}

// Take consumes and clears the staged prefill.
func (s *InMemory) Take(_ context.Context) (Prefill, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		return nil, false, nil
	}
	p := s.staged
	s.staged = nil
	s.present = false
	return p, true, nil
}

// RedisStore stages prefills in redis with a TTL, for deployments where the
// search and registration flows hit different gateway instances.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore builds a store using SET-with-TTL and GETDEL semantics.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "checkin:prefill"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Put stages a prefill.
func (s *RedisStore) Put(ctx context.Context, p Prefill) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, b, s.ttl).Err()
}

// Take consumes the staged prefill atomically.
func (s *RedisStore) Take(ctx context.Context) (Prefill, bool, error) {
	res, err := s.client.GetDel(ctx, s.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var p Prefill
	if err := json.Unmarshal([]byte(res), &p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}
