package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ngmaloney/pendulum/internal/models"
)

// Cache stores the companion's latest observation under a position key
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherData, bool, error)
	Set(ctx context.Context, key string, value models.WeatherData, ttl time.Duration) error
}

// InMemoryCache keeps a single observation. The companion reports one
// location, so a Set for another position replaces the slot.
type InMemoryCache struct {
	mu   sync.Mutex
	slot *observation
	now  func() time.Time
}

type observation struct {
	key       string
	value     models.WeatherData
	expiresAt time.Time
}

// NewInMemoryCache returns an empty cache
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{now: time.Now}
}

// Get returns the held observation if it is for key and has not expired.
// An expired observation is dropped.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherData, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot == nil {
		return models.WeatherData{}, false, nil
	}
	if !c.now().Before(c.slot.expiresAt) {
		c.slot = nil
		return models.WeatherData{}, false, nil
	}
	if c.slot.key != key {
		return models.WeatherData{}, false, nil
	}
	return c.slot.value, true, nil
}

// Set replaces the held observation
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherData, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slot = &observation{key: key, value: value, expiresAt: c.now().Add(ttl)}
	return nil
}
