// Package cache keeps msgpack snapshots of listings in Redis. Writes are
// fire-and-forget: they run on a background queue and failures are only logged.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Config holds the Redis connection and key settings
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to all cache keys
	Prefix string
	// TTL of stored snapshots; zero keeps them until invalidated
	TTL time.Duration
	// Workers and QueueSize size the background write queue. With one worker
	// writes apply in the order they were issued.
	Workers   int
	QueueSize int
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		Prefix:    "ccnetcore:",
		TTL:       10 * time.Minute,
		Workers:   1,
		QueueSize: 128,
	}
}

// Snapshots stores and loads encoded values under prefixed keys
type Snapshots struct {
	client    *redis.Client
	ownClient bool
	prefix    string
	ttl       time.Duration
	queue     *Queue
	log       *zap.Logger
}

// Dial connects to Redis and checks the connection
func Dial(cfg Config, log *zap.Logger) (*Snapshots, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}

	s := NewWithClient(client, cfg, log)
	s.ownClient = true
	return s, nil
}

// NewWithClient wraps an existing client. Close does not close client.
func NewWithClient(client *redis.Client, cfg Config, log *zap.Logger) *Snapshots {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("cache")
	return &Snapshots{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		queue:  NewQueue(cfg.Workers, cfg.QueueSize, log),
		log:    log,
	}
}

// Load decodes the snapshot under key into dst. It reports false on a miss.
func (s *Snapshots) Load(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// Store encodes v now and writes it in the background
func (s *Snapshots) Store(key string, v any) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		s.log.Warn("snapshot not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	_ = s.queue.Enqueue(Task{
		Name: "store " + key,
		Fn: func(ctx context.Context) error {
			return s.client.Set(ctx, s.prefix+key, data, s.ttl).Err()
		},
	})
}

// Invalidate removes key in the background
func (s *Snapshots) Invalidate(key string) {
	_ = s.queue.Enqueue(Task{
		Name: "invalidate " + key,
		Fn: func(ctx context.Context) error {
			return s.client.Del(ctx, s.prefix+key).Err()
		},
	})
}

// Flush waits for pending writes and stops the queue. Later writes are dropped.
func (s *Snapshots) Flush() {
	s.queue.Shutdown()
}

// Close flushes pending writes and closes the client if Dial opened it
func (s *Snapshots) Close() error {
	s.Flush()
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}
