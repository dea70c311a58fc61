package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/pkg/circuitbreaker"
	"habittracker/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProgressCache keeps rendered progress series per habit in one Redis hash,
// so a write to the habit drops every cached window at once.
//
// Each habit also has a version counter that Invalidate increments. Fields
// carry the version read before the series was computed, so a series
// computed from entries older than an invalidation is written under a
// version no reader asks for again.
//
// Redis failures never surface to callers: a failed lookup is a miss and a
// failed write is logged. A circuit breaker stops hammering a dead Redis.
type ProgressCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewProgressCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ProgressCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ProgressCache{
		rdb:     rdb,
		ttl:     ttl,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

func habitKey(habitID int) string {
	return fmt.Sprintf("progress:%d", habitID)
}

func versionKey(habitID int) string {
	return fmt.Sprintf("progress:%d:version", habitID)
}

// Field names one cached window of a habit at a cache version.
func Field(day string, days int, version int64) string {
	return fmt.Sprintf("%s:%d:v%d", day, days, version)
}

// Version returns the habit's cache version. ok is false when Redis cannot
// be read; callers must then skip the cache for this request.
func (c *ProgressCache) Version(ctx context.Context, habitID int) (int64, bool) {
	var version int64
	err := c.breaker.Execute(func() error {
		n, err := c.rdb.Get(ctx, versionKey(habitID)).Int64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		version = n
		return err
	})
	if err != nil {
		metrics.IncrementProgressCache("error")
		c.logger.Warn("Progress cache version lookup failed",
			zap.Int("habit_id", habitID),
			zap.Error(err),
		)
		return 0, false
	}
	return version, true
}

func (c *ProgressCache) Get(ctx context.Context, habitID int, field string) ([]byte, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.rdb.HGet(ctx, habitKey(habitID), field).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		metrics.IncrementProgressCache("error")
		c.logger.Warn("Progress cache lookup failed",
			zap.Int("habit_id", habitID),
			zap.String("field", field),
			zap.Error(err),
		)
		return nil, false
	}
	if data == nil {
		metrics.IncrementProgressCache("miss")
		return nil, false
	}
	metrics.IncrementProgressCache("hit")
	return data, true
}

func (c *ProgressCache) Set(ctx context.Context, habitID int, field string, data []byte) {
	err := c.breaker.Execute(func() error {
		pipe := c.rdb.TxPipeline()
		pipe.HSet(ctx, habitKey(habitID), field, data)
		pipe.Expire(ctx, habitKey(habitID), c.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		c.logger.Warn("Progress cache write failed",
			zap.Int("habit_id", habitID),
			zap.Error(err),
		)
	}
}

// Invalidate moves the habit to a new cache version and drops every cached
// window.
func (c *ProgressCache) Invalidate(ctx context.Context, habitID int) {
	err := c.breaker.Execute(func() error {
		pipe := c.rdb.TxPipeline()
		pipe.Incr(ctx, versionKey(habitID))
		pipe.Del(ctx, habitKey(habitID))
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		c.logger.Warn("Progress cache invalidation failed",
			zap.Int("habit_id", habitID),
			zap.Error(err),
		)
	}
}
