package policy

import (
	"context"
	"strconv"
	"time"

	platformredis "govvault/internal/platform/redis"
)

const (
	cacheKeyText    = "govvault:policy:text"
	cacheKeyVersion = "govvault:policy:version"
)

// Cache is a write-through read replica of the policy document in redis, for
// consumers (the off-chain agent, dashboards) that poll the text without
// going through the API. The in-process document stays authoritative.
type Cache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// NewCache wraps a redis client. Returns nil if the client is nil, so wiring
// can pass through an unconfigured redis.
func NewCache(client *platformredis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

// Set stores the document text and version.
func (c *Cache) Set(ctx context.Context, text string, version uint64) error {
	if err := c.client.Set(ctx, cacheKeyText, text, c.ttl).Err(); err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyVersion, strconv.FormatUint(version, 10), c.ttl).Err()
}

// Get returns the cached document, or ok=false on miss.
func (c *Cache) Get(ctx context.Context) (Version, bool, error) {
	text, err := c.client.Get(ctx, cacheKeyText).Result()
	if err != nil {
		return Version{}, false, nil
	}
	raw, err := c.client.Get(ctx, cacheKeyVersion).Result()
	if err != nil {
		return Version{}, false, nil
	}
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Version{}, false, err
	}
	return Version{Text: text, Version: version}, true, nil
}
