package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ByteCache stores opaque values with a TTL.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheRecorder observes cache lookups.
type CacheRecorder interface {
	CacheLookup(hit bool)
}

// Cached keeps original image bytes in a ByteCache in front of another
// Fetcher. Cache failures are logged and never fail a fetch.
type Cached struct {
	next     Fetcher
	cache    ByteCache
	ttl      time.Duration
	log      *slog.Logger
	recorder CacheRecorder
}

// NewCached wraps next with cache. recorder may be nil.
func NewCached(next Fetcher, cache ByteCache, ttl time.Duration, log *slog.Logger, recorder CacheRecorder) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{next: next, cache: cache, ttl: ttl, log: log, recorder: recorder}
}

// Fetch returns cached bytes when present, otherwise fetches and fills the cache.
func (c *Cached) Fetch(ctx context.Context, loc Locator) ([]byte, error) {
	key := cacheKey(loc)

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "source cache read failed", "key", key, "error", err)
	}
	if ok {
		c.record(true)
		return data, nil
	}
	c.record(false)

	data, err = c.next.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.log.WarnContext(ctx, "source cache write failed", "key", key, "error", err)
	}
	return data, nil
}

func (c *Cached) record(hit bool) {
	if c.recorder != nil {
		c.recorder.CacheLookup(hit)
	}
}

func cacheKey(loc Locator) string {
	return "drape:source:" + loc.String()
}

// ValkeyCache implements ByteCache on a Valkey (Redis-compatible) server.
type ValkeyCache struct {
	client valkey.Client
}

// NewValkeyCache connects to the Valkey server at addr.
func NewValkeyCache(addr string) (*ValkeyCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyCache{client: client}, nil
}

// Get retrieves a value by key. A missing key is not an error.
func (c *ValkeyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores a value with a TTL.
func (c *ValkeyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Ex(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Close releases the client.
func (c *ValkeyCache) Close() {
	c.client.Close()
}
