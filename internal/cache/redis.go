// Package cache keeps short-lived lookups in Redis. A cache without a
// reachable server is disabled and behaves as an always-miss cache.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const deviceKeyPrefix = "jttracker:device:"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type cachedDevice struct {
	ID string `json:"id"`
}

// New connects to redisURL. Any failure leaves the cache disabled; the
// receiver then resolves every frame against the repository.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) *Cache {
	c := &Cache{ttl: ttl, logger: logger}
	if redisURL == "" {
		logger.Info("Redis URL not provided, caching disabled")
		return c
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("failed to parse Redis URL, caching disabled", zap.Error(err))
		return c
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to Redis, caching disabled", zap.Error(err))
		_ = client.Close()
		return c
	}

	logger.Info("Redis cache initialized", zap.String("addr", opt.Addr))
	c.client = client
	return c
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Set stores value as JSON under key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode cache value %s", key)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Get decodes the JSON stored under key into dest. A miss returns redis.Nil.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if !c.Enabled() {
		return redis.Nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// LookupDevice returns the device id cached for a frame identifier.
func (c *Cache) LookupDevice(ctx context.Context, uniqueID string) (string, bool) {
	var d cachedDevice
	if err := c.Get(ctx, deviceKeyPrefix+uniqueID, &d); err != nil {
		if err != redis.Nil {
			c.logger.Warn("device cache read failed", zap.String("uniqueId", uniqueID), zap.Error(err))
		}
		return "", false
	}
	return d.ID, d.ID != ""
}

func (c *Cache) StoreDevice(ctx context.Context, uniqueID, deviceID string) {
	if err := c.Set(ctx, deviceKeyPrefix+uniqueID, cachedDevice{ID: deviceID}); err != nil {
		c.logger.Warn("device cache write failed", zap.String("uniqueId", uniqueID), zap.Error(err))
	}
}

func (c *Cache) ForgetDevice(ctx context.Context, uniqueID string) {
	if err := c.Delete(ctx, deviceKeyPrefix+uniqueID); err != nil {
		c.logger.Warn("device cache delete failed", zap.String("uniqueId", uniqueID), zap.Error(err))
	}
}
