package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares verdicts across processes.
type RedisCache struct {
	client *redis.Client
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisCache{client: rdb}, nil
}

type cachedVerdict struct {
	SameStory    bool    `json:"same_story"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	ProviderName string  `json:"provider"`
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Verdict, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var stored cachedVerdict
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("decode cached verdict: %w", err)
	}
	return &Verdict{
		SameStory:    stored.SameStory,
		Confidence:   stored.Confidence,
		Reason:       stored.Reason,
		ProviderName: stored.ProviderName,
	}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, verdict Verdict, ttl time.Duration) error {
	raw, err := json.Marshal(cachedVerdict{
		SameStory:    verdict.SameStory,
		Confidence:   verdict.Confidence,
		Reason:       verdict.Reason,
		ProviderName: verdict.ProviderName,
	})
	if err != nil {
		return fmt.Errorf("encode cached verdict: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
