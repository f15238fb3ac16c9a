// Package idempotency remembers the outcome of entry creations keyed by the
// client supplied Idempotency-Key header so retried requests replay it.
package idempotency

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout = 5 * time.Second
	pendingMarker  = "pending"
)

// ErrInProgress is returned when another request holding the same key has
// not finished yet.
var ErrInProgress = stderrors.New("request with this idempotency key is in progress")

// Client is the subset of the redis client used by the store.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Record is a stored response.
type Record struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// Store claims keys with SETNX and keeps completed responses for ttl.
type Store struct {
	client Client
	ttl    time.Duration
}

// New creates a Store over client.
func New(client Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Connect initialises a Redis client and validates connectivity with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// Begin claims key for the caller. It returns the stored record when the key
// was already completed, nil when the caller now owns the key, and
// ErrInProgress when another request still holds it.
func (s *Store) Begin(ctx context.Context, scope, key string) (*Record, error) {
	k := s.key(scope, key)

	claimed, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency claim: %w", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, k).Result()
	if stderrors.Is(err, redis.Nil) {
		// expired between the two calls
		return s.Begin(ctx, scope, key)
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if raw == pendingMarker {
		return nil, ErrInProgress
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("idempotency decode: %w", err)
	}
	return &rec, nil
}

// Complete stores the response for a key claimed with Begin.
func (s *Store) Complete(ctx context.Context, scope, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(scope, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}

// Release drops a claim so the request can be retried, used when it failed.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	return s.client.Del(ctx, s.key(scope, key)).Err()
}

func (s *Store) key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", config.ServiceName, scope, key)
}
