// Package cache provides a cache-aside layer over Redis for domain metadata.
//
// Values are stored as JSON snapshots under namespaced keys with a TTL. The
// read path checks the cache first, falls back to the authoritative source on
// a miss, and populates the cache afterward (see Lookup). Whether a result
// came from the cache is a first-class signal: every lookup reports one of
// hit, miss, or disabled.
//
// Every operation fails open. A down or disabled cache never produces an
// error, only a miss or a no-op; the authoritative data path is always the
// fallback of record. An entry that fails to decode is deleted and reported
// as a miss so it cannot keep poisoning reads.
//
// JSON round-trips time.Time fields through RFC 3339, so timestamps come back
// from a cache hit as genuine times, not strings.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Outcome classifies where a lookup's value came from.
type Outcome string

const (
	// Hit means the value was served from the cache.
	Hit Outcome = "hit"

	// Miss means the cache had no usable entry and the authoritative
	// source was consulted.
	Miss Outcome = "miss"

	// Disabled means the cache was skipped entirely, either by
	// configuration or because no client is available.
	Disabled Outcome = "disabled"
)

// Cache stores JSON snapshots of entities in Redis.
type Cache struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	enabled    bool
}

// Config holds cache settings.
type Config struct {
	// Prefix namespaces every key, e.g. "snapvault".
	Prefix string

	// DefaultTTL applies to Set calls that don't specify one.
	DefaultTTL time.Duration

	// Enabled toggles the cache. When false every operation is a no-op
	// and lookups report Disabled.
	Enabled bool
}

// New creates a cache on the given client. A nil client behaves like a
// disabled cache.
func New(client *redis.Client, config Config) *Cache {
	if config.Prefix == "" {
		config.Prefix = "snapvault"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	return &Cache{
		client:     client,
		prefix:     config.Prefix,
		defaultTTL: config.DefaultTTL,
		enabled:    config.Enabled,
	}
}

// Enabled reports whether the cache is active: enabled by configuration and
// backed by a client.
func (c *Cache) Enabled() bool {
	return c.enabled && c.client != nil
}

// Connected reports whether the cache's Redis backend answers a ping.
func (c *Cache) Connected(ctx context.Context) bool {
	if !c.Enabled() {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// Key builds the namespaced cache key for an entity: "<prefix>:<kind>:<id>".
func (c *Cache) Key(kind, id string) string {
	var sb strings.Builder
	sb.Grow(len(c.prefix) + 1 + len(kind) + 1 + len(id))
	sb.WriteString(c.prefix)
	sb.WriteByte(':')
	sb.WriteString(kind)
	sb.WriteByte(':')
	sb.WriteString(id)
	return sb.String()
}

// Get loads the entry for (kind, id) into dest. Returns true only when a
// valid entry was found and decoded. A store error is a miss; an entry that
// fails to decode is deleted and reported as a miss.
func (c *Cache) Get(ctx context.Context, kind, id string, dest any) bool {
	if !c.Enabled() {
		return false
	}

	data, err := c.client.Get(ctx, c.Key(kind, id)).Bytes()
	if err != nil {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// Corrupt entry: best-effort cleanup so it stops causing
		// failed decodes on every read.
		c.Invalidate(ctx, kind, id)
		return false
	}
	return true
}

// Set stores value under (kind, id) with the given TTL, or the default TTL
// when ttl is non-positive. Returns false on any error; never raises.
func (c *Cache) Set(ctx context.Context, kind, id string, value any, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false
	}

	return c.client.Set(ctx, c.Key(kind, id), data, ttl).Err() == nil
}

// Invalidate removes the entry for (kind, id). Deleting a key that doesn't
// exist counts as success.
func (c *Cache) Invalidate(ctx context.Context, kind, id string) bool {
	if !c.Enabled() {
		return false
	}
	return c.client.Del(ctx, c.Key(kind, id)).Err() == nil
}

// Lookup is the cache-aside read path. It tries the cache first; on a hit it
// returns the cached value. On a miss it calls load for the authoritative
// value and, if load succeeds, populates the cache. When the cache is
// disabled it goes straight to load and reports Disabled.
//
// load errors are returned as-is; cache failures never surface as errors.
func Lookup[T any](ctx context.Context, c *Cache, kind, id string, load func(ctx context.Context) (T, error)) (T, Outcome, error) {
	if !c.Enabled() {
		v, err := load(ctx)
		return v, Disabled, err
	}

	var cached T
	if c.Get(ctx, kind, id, &cached) {
		return cached, Hit, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, Miss, err
	}

	c.Set(ctx, kind, id, v, 0)
	return v, Miss, nil
}
