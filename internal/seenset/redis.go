package seenset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/restohub/orderwatch/pkg/circuitbreaker"
)

// DefaultKey is the well-known session key holding the seen set as a JSON
// array of order IDs. An absent key means an empty set.
const DefaultKey = "orderwatch:seen"

type RedisConfig struct {
	URL        string
	Key        string
	SessionTTL time.Duration
}

// RedisStore persists the seen set under a single session-scoped key so it
// survives dashboard reloads. A local mirror of the set is kept so Has
// never needs a round trip after the initial load; redis is only written
// on mutation.
type RedisStore struct {
	client *redis.Client
	cb     *circuitbreaker.CircuitBreaker
	key    string
	ttl    time.Duration

	mu     sync.RWMutex
	mirror map[string]struct{}

	// writeMu serializes full-array writes to redis. Without it two
	// concurrent terminal transitions (HTTP ack, expiry timer) can land
	// their SETs out of order and silently drop an ID from the durable
	// copy.
	writeMu sync.Mutex
	write   func(ctx context.Context, payload []byte) error
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "seenset-redis",
			MaxFailures: 3,
			Timeout:     10 * time.Second,
		}),
		key:    cfg.Key,
		ttl:    cfg.SessionTTL,
		mirror: make(map[string]struct{}),
	}
	s.write = func(ctx context.Context, payload []byte) error {
		return s.cb.Execute(func() error {
			return s.client.Set(ctx, s.key, payload, s.ttl).Err()
		})
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// load hydrates the mirror from the session key. An absent key is an
// empty set, not an error.
func (s *RedisStore) load(ctx context.Context) error {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load seen set: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("corrupt seen set payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.mirror[id] = struct{}{}
	}
	return nil
}

func (s *RedisStore) Has(_ context.Context, orderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.mirror[orderID]
	return ok, nil
}

func (s *RedisStore) MarkSeen(ctx context.Context, orderID string) error {
	// writeMu is taken before the mirror snapshot so concurrent callers
	// apply their SETs in snapshot order; each write is a strict
	// superset of the one before it.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if _, ok := s.mirror[orderID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mirror[orderID] = struct{}{}
	ids := make([]string, 0, len(s.mirror))
	for id := range s.mirror {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal seen set: %w", err)
	}

	return s.write(ctx, payload)
}

func (s *RedisStore) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.mirror = make(map[string]struct{})
	s.mu.Unlock()

	return s.cb.Execute(func() error {
		return s.client.Del(ctx, s.key).Err()
	})
}

func (s *RedisStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mirror), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
