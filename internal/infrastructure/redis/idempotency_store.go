package redisstore

import (
	"context"
	"fmt"
	"time"

	"arbitrage-detector/internal/application"

	"github.com/redis/go-redis/v9"
)

var _ application.IdempotencyStore = (*Store)(nil)

const keyPrefix = "arbdet:idem:"

// Store reserves idempotency keys with SET NX so that a replayed
// POST /detections is rejected across API replicas until TTL expires.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

// Open connects with opts and verifies the server answers.
func Open(ctx context.Context, opts *redis.Options, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return New(client, ttl), nil
}

func (s *Store) TryReserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.Client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), s.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.Client.Ping(ctx).Err() }
func (s *Store) Close() error                   { return s.Client.Close() }
