package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "contest:"

// Connect opens a client from a redis:// or rediss:// URL and pings it.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// BracketCache keeps rendered bracket views keyed by contest.
type BracketCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBracketCache(client *redis.Client, ttl time.Duration) *BracketCache {
	return &BracketCache{client: client, ttl: ttl}
}

func ContestKey(contestID int) string {
	return keyPrefix + strconv.Itoa(contestID) + ":view"
}

// Get returns the cached view, nil on a miss.
func (c *BracketCache) Get(ctx context.Context, contestID int) ([]byte, error) {
	val, err := c.client.Get(ctx, ContestKey(contestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (c *BracketCache) Set(ctx context.Context, contestID int, view []byte) error {
	return c.client.Set(ctx, ContestKey(contestID), view, c.ttl).Err()
}

func (c *BracketCache) Invalidate(ctx context.Context, contestID int) error {
	return c.client.Del(ctx, ContestKey(contestID)).Err()
}

// Flush drops every cached contest view.
func (c *BracketCache) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
