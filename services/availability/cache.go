package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rivelya/models"

	"github.com/redis/go-redis/v9"
)

// MonthCache stores computed month views.
type MonthCache interface {
	Get(ctx context.Context, expertID string, year int, month time.Month) ([]models.DayAvailability, bool)
	Set(ctx context.Context, expertID string, year int, month time.Month, days []models.DayAvailability)
	Invalidate(ctx context.Context, expertID string, months ...YearMonth)
}

type YearMonth struct {
	Year  int
	Month time.Month
}

// RedisMonthCache keeps month views under availability:{expertId}:{yyyy-mm}.
// Cache failures never fail the request; they only cost a recomputation.
type RedisMonthCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func MonthCacheKey(expertID string, year int, month time.Month) string {
	return fmt.Sprintf("availability:%s:%04d-%02d", expertID, year, int(month))
}

func (c *RedisMonthCache) Get(ctx context.Context, expertID string, year int, month time.Month) ([]models.DayAvailability, bool) {
	raw, err := c.Client.Get(ctx, MonthCacheKey(expertID, year, month)).Result()
	if err != nil {
		return nil, false
	}
	var days []models.DayAvailability
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, false
	}
	return days, true
}

func (c *RedisMonthCache) Set(ctx context.Context, expertID string, year int, month time.Month, days []models.DayAvailability) {
	payload, err := json.Marshal(days)
	if err != nil {
		return
	}
	c.Client.Set(ctx, MonthCacheKey(expertID, year, month), string(payload), c.TTL)
}

func (c *RedisMonthCache) Invalidate(ctx context.Context, expertID string, months ...YearMonth) {
	if len(months) == 0 {
		return
	}
	keys := make([]string, 0, len(months))
	for _, m := range months {
		keys = append(keys, MonthCacheKey(expertID, m.Year, m.Month))
	}
	c.Client.Del(ctx, keys...)
}

// NoopMonthCache disables caching.
type NoopMonthCache struct{}

func (NoopMonthCache) Get(context.Context, string, int, time.Month) ([]models.DayAvailability, bool) {
	return nil, false
}
func (NoopMonthCache) Set(context.Context, string, int, time.Month, []models.DayAvailability) {}
func (NoopMonthCache) Invalidate(context.Context, string, ...YearMonth)                        {}
