package feedcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klicktape/backend/internal/cache"
	"github.com/klicktape/backend/internal/feed"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cacheName = "feed_pages"

// FetchFunc produces a feed page on cache miss
type FetchFunc func(ctx context.Context, p feed.Params) (*feed.Page, error)

// PageCache is a Redis-backed cache of feed pages with single-flight
// deduplication: concurrent requests for the same key share one underlying
// fetch. Entries expire after the stale window; a failed or timed-out fetch
// resolves every waiter with the error and writes nothing.
type PageCache struct {
	redis        *cache.RedisClient
	group        singleflight.Group
	staleWindow  time.Duration
	fetchTimeout time.Duration
	fetch        FetchFunc
}

// envelope is the serialized cache entry
type envelope struct {
	Page      *feed.Page `json:"page"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// New creates a page cache. staleWindow <= 0 defaults to 5 minutes,
// fetchTimeout <= 0 to 10 seconds.
func New(redis *cache.RedisClient, staleWindow, fetchTimeout time.Duration, fetch FetchFunc) *PageCache {
	if staleWindow <= 0 {
		staleWindow = 5 * time.Minute
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &PageCache{
		redis:        redis,
		staleWindow:  staleWindow,
		fetchTimeout: fetchTimeout,
		fetch:        fetch,
	}
}

// CacheKey builds the request signature. Viewer id comes first so
// per-viewer invalidation can match on a prefix.
func CacheKey(p feed.Params) string {
	return fmt.Sprintf("feed:%s:%s:%d:%d:%t:%t",
		p.ViewerID, p.SessionID, p.Offset, p.Limit,
		p.ExcludeViewedTwice, p.RespectCooldown)
}

// GetPage returns the cached page when fresh, otherwise performs exactly one
// underlying fetch among concurrent callers with the same key. The returned
// bool reports whether the page came from cache.
func (c *PageCache) GetPage(ctx context.Context, p feed.Params) (*feed.Page, bool, error) {
	key := CacheKey(p)

	if page := c.lookup(ctx, key); page != nil {
		metrics.RecordCacheHit(cacheName)
		return page, true, nil
	}
	metrics.RecordCacheMiss(cacheName)

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// The flight is shared across callers, so its lifetime is bounded by
		// the fetch timeout rather than any single caller's context.
		fctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
		defer cancel()

		page, err := c.fetch(fctx, p)
		if err != nil {
			return nil, err
		}

		c.store(fctx, key, page)
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}

	if shared {
		logger.Log.Debug("Feed fetch shared between concurrent callers",
			logger.WithCacheKey(key))
	}

	return result.(*feed.Page), false, nil
}

// InvalidateViewer drops every cached page for a viewer, e.g. after they
// publish a new post.
func (c *PageCache) InvalidateViewer(ctx context.Context, viewerID string) error {
	pattern := fmt.Sprintf("feed:%s:*", viewerID)
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	metrics.RecordCacheInvalidation(cacheName)
	logger.Log.Debug("Feed cache invalidated",
		logger.WithViewerID(viewerID),
		zap.Int("keys", len(keys)))
	return nil
}

// lookup reads and decodes a cache entry; any decode problem is treated as
// a miss so a corrupt entry can't wedge the feed.
func (c *PageCache) lookup(ctx context.Context, key string) *feed.Page {
	start := time.Now()
	raw, err := c.redis.Get(ctx, key)
	metrics.RecordCacheOperation("GET", cacheName, time.Since(start))
	if err != nil {
		if !cache.IsNil(err) {
			logger.Log.Warn("Feed cache read failed",
				logger.WithCacheKey(key),
				zap.Error(err))
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.Page == nil {
		logger.Log.Warn("Dropping undecodable feed cache entry",
			logger.WithCacheKey(key))
		_ = c.redis.Del(ctx, key)
		return nil
	}

	return env.Page
}

// store writes a cache entry with the stale window as TTL. Failures are
// logged, not surfaced: the fetched page is still valid for the caller.
func (c *PageCache) store(ctx context.Context, key string, page *feed.Page) {
	payload, err := json.Marshal(envelope{Page: page, FetchedAt: time.Now().UTC()})
	if err != nil {
		logger.Log.Warn("Failed to encode feed page for cache",
			logger.WithCacheKey(key),
			zap.Error(err))
		return
	}

	start := time.Now()
	if err := c.redis.SetEx(ctx, key, string(payload), c.staleWindow); err != nil {
		logger.Log.Warn("Failed to write feed page to cache",
			logger.WithCacheKey(key),
			zap.Error(err))
		return
	}
	metrics.RecordCacheOperation("SET", cacheName, time.Since(start))
}
