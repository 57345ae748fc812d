package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Client wraps redis.Client
type Client struct {
	*redis.Client
}

// New creates a new Redis client
func New(config Config) (*Client, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)
	log.Printf("[REDIS] Connecting to Redis at %s...", addr)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[REDIS] ✓ Successfully connected to Redis at %s", addr)

	return &Client{Client: client}, nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	log.Println("[REDIS] Closing Redis connection...")
	return c.Client.Close()
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// presenceKeyPrefix namespaces the per-player activity keys.
const presenceKeyPrefix = "ladder:presence:"

// TouchPresence refreshes a player's activity key with the given TTL.
func (c *Client) TouchPresence(ctx context.Context, uid int64, ttl time.Duration) error {
	return c.Set(ctx, fmt.Sprintf("%s%d", presenceKeyPrefix, uid), "1", ttl).Err()
}

// CountPresence counts the currently live activity keys.
func (c *Client) CountPresence(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := c.Scan(ctx, cursor, presenceKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}
