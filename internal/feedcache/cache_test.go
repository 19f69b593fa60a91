package feedcache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/klicktape/backend/internal/cache"
	"github.com/klicktape/backend/internal/feed"
	"github.com/klicktape/backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitializeForTesting()
	os.Exit(m.Run())
}

func newTestRedis(t *testing.T) (*cache.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := cache.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return rc, mr
}

func staticPage(caption string) *feed.Page {
	return &feed.Page{
		Items: []feed.Item{{ID: "post-1", Caption: caption}},
		Meta:  feed.Meta{Limit: 20, Count: 1},
	}
}

func TestGetPageMissThenHit(t *testing.T) {
	rc, _ := newTestRedis(t)

	var calls int32
	pc := New(rc, 5*time.Minute, time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		atomic.AddInt32(&calls, 1)
		return staticPage("fetched"), nil
	})

	params := feed.Params{ViewerID: "viewer-1", Limit: 20}

	page, cached, err := pc.GetPage(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "fetched", page.Items[0].Caption)

	page, cached, err = pc.GetPage(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "fetched", page.Items[0].Caption)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second request must not refetch")
}

func TestGetPageExpiresAfterStaleWindow(t *testing.T) {
	rc, mr := newTestRedis(t)

	var calls int32
	pc := New(rc, 5*time.Minute, time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		atomic.AddInt32(&calls, 1)
		return staticPage("fetched"), nil
	})

	params := feed.Params{ViewerID: "viewer-1", Limit: 20}

	_, _, err := pc.GetPage(context.Background(), params)
	require.NoError(t, err)

	mr.FastForward(5*time.Minute + time.Second)

	_, cached, err := pc.GetPage(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetPageSingleFlight(t *testing.T) {
	rc, _ := newTestRedis(t)

	var calls int32
	release := make(chan struct{})
	pc := New(rc, 5*time.Minute, 5*time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return staticPage("shared"), nil
	})

	params := feed.Params{ViewerID: "viewer-1", Limit: 20}

	const concurrency = 8
	var wg sync.WaitGroup
	results := make([]*feed.Page, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = pc.GetPage(context.Background(), params)
		}(i)
	}

	// Let all goroutines pile onto the flight before resolving it
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent identical requests share one fetch")
	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].Items[0].Caption)
	}
}

func TestGetPageDistinctKeysDoNotShareFlights(t *testing.T) {
	rc, _ := newTestRedis(t)

	var calls int32
	pc := New(rc, 5*time.Minute, time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		atomic.AddInt32(&calls, 1)
		return staticPage(p.ViewerID), nil
	})

	_, _, err := pc.GetPage(context.Background(), feed.Params{ViewerID: "viewer-1", Limit: 20})
	require.NoError(t, err)
	_, _, err = pc.GetPage(context.Background(), feed.Params{ViewerID: "viewer-2", Limit: 20})
	require.NoError(t, err)
	_, _, err = pc.GetPage(context.Background(), feed.Params{ViewerID: "viewer-1", Limit: 20, Offset: 20})
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetPageFailureIsNotCached(t *testing.T) {
	rc, mr := newTestRedis(t)

	var calls int32
	pc := New(rc, 5*time.Minute, time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("database down")
		}
		return staticPage("recovered"), nil
	})

	params := feed.Params{ViewerID: "viewer-1", Limit: 20}

	_, _, err := pc.GetPage(context.Background(), params)
	require.Error(t, err)
	assert.Empty(t, mr.Keys(), "failed fetch must leave no cache entry")

	page, cached, err := pc.GetPage(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "recovered", page.Items[0].Caption)
}

func TestGetPageFetchTimeout(t *testing.T) {
	rc, _ := newTestRedis(t)

	pc := New(rc, 5*time.Minute, 50*time.Millisecond, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return staticPage("too late"), nil
		}
	})

	_, _, err := pc.GetPage(context.Background(), feed.Params{ViewerID: "viewer-1", Limit: 20})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvalidateViewerDropsOnlyThatViewer(t *testing.T) {
	rc, mr := newTestRedis(t)

	pc := New(rc, 5*time.Minute, time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		return staticPage(p.ViewerID), nil
	})

	ctx := context.Background()
	_, _, err := pc.GetPage(ctx, feed.Params{ViewerID: "viewer-1", Limit: 20})
	require.NoError(t, err)
	_, _, err = pc.GetPage(ctx, feed.Params{ViewerID: "viewer-1", Limit: 20, Offset: 20})
	require.NoError(t, err)
	_, _, err = pc.GetPage(ctx, feed.Params{ViewerID: "viewer-2", Limit: 20})
	require.NoError(t, err)

	require.NoError(t, pc.InvalidateViewer(ctx, "viewer-1"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "viewer-2")

	// Invalidating a viewer with no entries is a no-op
	require.NoError(t, pc.InvalidateViewer(ctx, "viewer-3"))
}

func TestLookupDropsCorruptEntry(t *testing.T) {
	rc, mr := newTestRedis(t)

	var calls int32
	pc := New(rc, 5*time.Minute, time.Second, func(ctx context.Context, p feed.Params) (*feed.Page, error) {
		atomic.AddInt32(&calls, 1)
		return staticPage("rebuilt"), nil
	})

	params := feed.Params{ViewerID: "viewer-1", Limit: 20}
	key := CacheKey(params)
	require.NoError(t, mr.Set(key, "not json"))

	page, cached, err := pc.GetPage(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "rebuilt", page.Items[0].Caption)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
