package report

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// DefaultRedisKey is the list problems are pushed to when no key is configured.
const DefaultRedisKey = "dbarchive:problems"

// RedisPublisher appends problems as JSON to a Redis list, one list per run.
type RedisPublisher struct {
	client *redis.Client
	key    string
	closed bool
}

// NewRedisPublisher connects to the first endpoint and checks it with PING.
func NewRedisPublisher(ctx context.Context, endpoints []string, password string, db int, key string, dialTimeout time.Duration) (*RedisPublisher, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:        endpoints[0],
		Password:    password,
		DB:          db,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] Connected to %s, publishing problems to %s:<run>", endpoints[0], key)
	return &RedisPublisher{client: client, key: key}, nil
}

// listKey returns the list holding the problems of run.
func (r *RedisPublisher) listKey(run string) string {
	if run == "" {
		return r.key
	}
	return fmt.Sprintf("%s:%s", r.key, run)
}

// Publish pushes p to the tail of the run's list.
func (r *RedisPublisher) Publish(ctx context.Context, p Problem) error {
	if r.closed {
		return ErrPublisherClosed
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal problem: %w", err)
	}
	if err := r.client.RPush(ctx, r.listKey(p.Run), data).Err(); err != nil {
		return fmt.Errorf("failed to push problem to %s: %w", r.listKey(p.Run), err)
	}
	return nil
}

func (r *RedisPublisher) Type() string { return "redis" }

func (r *RedisPublisher) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// RedisPublisherFactory creates Redis publishers.
type RedisPublisherFactory struct{}

func (f *RedisPublisherFactory) Create(ctx context.Context, config registry.InternalBackendConfig) (Publisher, error) {
	c := config.Redis
	dial := c.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	return NewRedisPublisher(ctx, c.Endpoints, c.Password, c.DB, c.Key, dial)
}

func (f *RedisPublisherFactory) Type() string { return "redis" }

// Validate validates the Redis section of a backend entry.
func (f *RedisPublisherFactory) Validate(config registry.InternalBackendConfig) error {
	c := config.Redis
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	// Validate DB (Redis supports 0-15 databases)
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", c.DB)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial_timeout must be non-negative, got: %v", c.DialTimeout)
	}
	return nil
}

func init() {
	register(&RedisPublisherFactory{})
}
