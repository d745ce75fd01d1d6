package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"canvas-api/domain"
)

type backend interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	FetchBlocks(ctx context.Context) ([]domain.Block, error)
	InsertTasks(ctx context.Context, tasks []domain.Task) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, blockID, id string) error
	UpsertBlock(ctx context.Context, b domain.Block) (domain.Block, error)
	DeleteBlock(ctx context.Context, id string) error
	EnqueuePlanRequest(ctx context.Context, req domain.PlanRequest) error
}

const (
	tasksCacheKey  = "board:tasks"
	blocksCacheKey = "board:blocks"
)

// Cache wraps a Storage instance with Redis-backed caching for board reads.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis
// client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasksFromCache(ctx); ok {
		return tasks, nil
	}
	tasks, err := c.base.FetchTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksCacheKey, tasks)
	return tasks, nil
}

func (c *Cache) FetchBlocks(ctx context.Context) ([]domain.Block, error) {
	if blocks, ok := c.loadBlocksFromCache(ctx); ok {
		return blocks, nil
	}
	blocks, err := c.base.FetchBlocks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, blocksCacheKey, blocks)
	return blocks, nil
}

func (c *Cache) InsertTasks(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	out, err := c.base.InsertTasks(ctx, tasks)
	if len(out) > 0 {
		c.evict(ctx, tasksCacheKey)
	}
	return out, err
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, blockID, id string) error {
	if err := c.base.DeleteTask(ctx, blockID, id); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey)
	return nil
}

func (c *Cache) UpsertBlock(ctx context.Context, b domain.Block) (domain.Block, error) {
	out, err := c.base.UpsertBlock(ctx, b)
	if err != nil {
		return domain.Block{}, err
	}
	c.evict(ctx, blocksCacheKey)
	return out, nil
}

func (c *Cache) DeleteBlock(ctx context.Context, id string) error {
	if err := c.base.DeleteBlock(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, blocksCacheKey)
	return nil
}

func (c *Cache) EnqueuePlanRequest(ctx context.Context, req domain.PlanRequest) error {
	return c.base.EnqueuePlanRequest(ctx, req)
}

func (c *Cache) loadTasksFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) loadBlocksFromCache(ctx context.Context) ([]domain.Block, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, blocksCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, blocksCacheKey).Err()
		}
		return nil, false
	}
	var blocks []domain.Block
	if err := json.Unmarshal(data, &blocks); err != nil {
		_ = c.redis.Del(ctx, blocksCacheKey).Err()
		return nil, false
	}
	return blocks, true
}

func (c *Cache) store(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}
