package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segyhp/installment-tracker/internal/domain"
	customError "github.com/segyhp/installment-tracker/pkg/errors"
)

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

const planCachePrefix = "plan:"

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CacheErrorHandler is told about cache writes that failed after the store
// write succeeded.
type CacheErrorHandler func(planID string, err error)

type cachedPlanRepository struct {
	next    PlanRepository
	cache   Cache
	ttl     time.Duration
	onError CacheErrorHandler

	mu    sync.Mutex
	stale map[string]struct{}
}

// NewCachedPlanRepository serves GetByID from cache, falling back to next on a miss
// or a cache failure. Writes go to next first and then evict the cached copy.
// A failed eviction never fails the write: the id is read from next until the
// entry is dropped. onError may be nil.
func NewCachedPlanRepository(next PlanRepository, cache Cache, ttl time.Duration, onError CacheErrorHandler) PlanRepository {
	return &cachedPlanRepository{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		onError: onError,
		stale:   make(map[string]struct{}),
	}
}

func planCacheKey(planID string) string {
	return planCachePrefix + planID
}

func (r *cachedPlanRepository) GetByID(ctx context.Context, planID string) (*domain.InstallmentPlan, error) {
	key := planCacheKey(planID)

	if r.isStale(planID) {
		if err := r.cache.Del(ctx, key); err != nil {
			return r.next.GetByID(ctx, planID)
		}
		r.clearStale(planID)
	}

	if raw, err := r.cache.Get(ctx, key); err == nil {
		var rec domain.PlanRecord
		if json.Unmarshal([]byte(raw), &rec) == nil {
			if plan, err := domain.RestorePlan(rec); err == nil {
				return plan, nil
			}
		}
		// Undecodable entry: drop it and read through.
		_ = r.cache.Del(ctx, key)
	}

	plan, err := r.next.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(plan.Record()); err == nil {
		_ = r.cache.Set(ctx, key, string(data), r.ttl)
	}
	return plan, nil
}

func (r *cachedPlanRepository) Save(ctx context.Context, plan *domain.InstallmentPlan) error {
	if err := r.next.Save(ctx, plan); err != nil {
		return err
	}

	err := r.cache.Del(ctx, planCacheKey(plan.ID()))
	if err == nil {
		r.clearStale(plan.ID())
		return nil
	}

	// Overwriting the entry with the stored version is as good as dropping it.
	if data, merr := json.Marshal(plan.Record()); merr == nil {
		if r.cache.Set(ctx, planCacheKey(plan.ID()), string(data), r.ttl) == nil {
			r.clearStale(plan.ID())
			return nil
		}
	}
	r.markStale(plan.ID(), err)
	return nil
}

func (r *cachedPlanRepository) Delete(ctx context.Context, planID string) error {
	if err := r.next.Delete(ctx, planID); err != nil {
		return err
	}

	if err := r.cache.Del(ctx, planCacheKey(planID)); err != nil {
		r.markStale(planID, err)
		return nil
	}
	r.clearStale(planID)
	return nil
}

func (r *cachedPlanRepository) Exists(ctx context.Context, planID string) (bool, error) {
	return r.next.Exists(ctx, planID)
}

func (r *cachedPlanRepository) List(ctx context.Context) (map[string]*domain.InstallmentPlan, error) {
	return r.next.List(ctx)
}

func (r *cachedPlanRepository) markStale(planID string, err error) {
	r.mu.Lock()
	r.stale[planID] = struct{}{}
	r.mu.Unlock()

	if r.onError != nil {
		r.onError(planID, customError.WrapCacheError(err))
	}
}

func (r *cachedPlanRepository) clearStale(planID string) {
	r.mu.Lock()
	delete(r.stale, planID)
	r.mu.Unlock()
}

func (r *cachedPlanRepository) isStale(planID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stale[planID]
	return ok
}
