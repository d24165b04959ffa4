package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/engine"
)

const (
	runKeyPrefix  = "transfer:run:"
	latestRunKey  = runKeyPrefix + "latest"
	scanBatchSize = 100
)

// RunCache stores the latest completed run so the API can serve it without
// re-running the engine. Disabled cache degrades to a noop.
type RunCache interface {
	SetLatest(ctx context.Context, result *engine.RunResult) error
	GetLatest(ctx context.Context) (*engine.RunResult, bool, error)
	GetRun(ctx context.Context, sessionID string) (*engine.RunResult, bool, error)
	Invalidate(ctx context.Context) error
}

type redisRunCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRunCache struct{}

func NewRunCache(cfg config.CacheConfig) (RunCache, error) {
	if !cfg.Enabled {
		return &noopRunCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisRunCache{client: client, ttl: ttl}, nil
}

func NewNoopRunCache() RunCache {
	return &noopRunCache{}
}

// SetLatest stores the run under both its session key and the latest pointer.
func (c *redisRunCache) SetLatest(ctx context.Context, result *engine.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode run cache: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, runKeyPrefix+result.SessionID, payload, c.ttl)
	pipe.Set(ctx, latestRunKey, payload, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisRunCache) GetLatest(ctx context.Context) (*engine.RunResult, bool, error) {
	return c.get(ctx, latestRunKey)
}

func (c *redisRunCache) GetRun(ctx context.Context, sessionID string) (*engine.RunResult, bool, error) {
	return c.get(ctx, runKeyPrefix+sessionID)
}

func (c *redisRunCache) get(ctx context.Context, key string) (*engine.RunResult, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result engine.RunResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode run cache: %w", err)
	}

	return &result, true, nil
}

func (c *redisRunCache) Invalidate(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, runKeyPrefix, scanBatchSize)
}

func (c *noopRunCache) SetLatest(context.Context, *engine.RunResult) error { return nil }

func (c *noopRunCache) GetLatest(context.Context) (*engine.RunResult, bool, error) {
	return nil, false, nil
}

func (c *noopRunCache) GetRun(context.Context, string) (*engine.RunResult, bool, error) {
	return nil, false, nil
}

func (c *noopRunCache) Invalidate(context.Context) error { return nil }
