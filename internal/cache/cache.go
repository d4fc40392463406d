// Package cache wraps Redis for the two places the engine wants shared
// short-lived state: the demand-forecast read cache and the scheduler's
// once-per-day run guard.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// forecastTTL bounds forecast staleness between runs.
const forecastTTL = 6 * time.Hour

// runGuardTTL keeps the daily run guard alive past the next local midnight,
// then lets it expire on its own.
const runGuardTTL = 26 * time.Hour

// Cache is a thin typed layer over one Redis connection.
type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func forecastKey(city, propertyType string) string {
	return fmt.Sprintf("forecast:%s:%s", city, propertyType)
}

// GetForecasts implements the pipeline's ForecastCache. A miss, an expired
// key and a decode failure all report a miss; the forecast store is the
// source of truth.
func (c *Cache) GetForecasts(ctx context.Context, city, propertyType string) ([]*models.DemandForecast, bool) {
	raw, err := c.client.Get(ctx, forecastKey(city, propertyType)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: forecast read failed for %s/%s: %v", city, propertyType, err)
		}
		return nil, false
	}
	var out []*models.DemandForecast
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Printf("cache: dropping undecodable forecast entry for %s/%s: %v", city, propertyType, err)
		return nil, false
	}
	return out, true
}

// SetForecasts implements the pipeline's ForecastCache. Failures are logged
// and swallowed: the cache is an accelerator, never a dependency.
func (c *Cache) SetForecasts(ctx context.Context, city, propertyType string, forecasts []*models.DemandForecast) {
	raw, err := json.Marshal(forecasts)
	if err != nil {
		log.Printf("cache: failed to encode forecasts for %s/%s: %v", city, propertyType, err)
		return
	}
	if err := c.client.Set(ctx, forecastKey(city, propertyType), raw, forecastTTL).Err(); err != nil {
		log.Printf("cache: forecast write failed for %s/%s: %v", city, propertyType, err)
	}
}

// AcquireDailyRun atomically claims the scheduled run for (user, local day).
// It returns true exactly once per key; concurrent scheduler instances see
// false and skip the user.
func (c *Cache) AcquireDailyRun(ctx context.Context, userID int64, localDate string) (bool, error) {
	key := fmt.Sprintf("autopricing:lastrun:%d:%s", userID, localDate)
	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), runGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run guard: %w", err)
	}
	return ok, nil
}
