package memory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	StoreOptions
}

// RedisStore persists conversation and user scopes as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
	opts   StoreOptions
}

// NewRedisStore connects to Redis and verifies the connection with a PING.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, opts: opts.StoreOptions.withDefaults()}, nil
}

// Load reads the saved scopes for key.
func (s *RedisStore) Load(ctx context.Context, key Key) (*State, error) {
	state := NewState()
	for _, e := range s.opts.entries(key) {
		data, err := s.client.Get(ctx, e.key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", e.key, err)
		}
		vars, err := decodeScope(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.key, err)
		}
		state.ReplaceScope(e.scope, vars)
	}
	return state, nil
}

// Save writes the durable scopes in one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, key Key, state *State) error {
	entries := s.opts.entries(key)
	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		data, err := encodeScope(state.Scope(e.scope))
		if err != nil {
			return err
		}
		payloads[i] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range entries {
			pipe.Set(ctx, e.key, payloads[i], s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Delete removes the saved scopes for key.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	entries := s.opts.entries(key)
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
