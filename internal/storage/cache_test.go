package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatekit/media-crawler/internal/crawler"
	"github.com/estatekit/media-crawler/internal/profile"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// memoryRedis is an in-memory RedisClient for tests. TTLs are recorded but
// never enforced.
type memoryRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	pingErr error
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (m *memoryRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.ttls[key] = expiration
	return nil
}

func (m *memoryRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) Ping(ctx context.Context) error { return m.pingErr }
func (m *memoryRedis) Close() error                   { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

func TestCrawlCacheRoundTrip(t *testing.T) {
	rc := NewResultCache(newMemoryRedis(), testLogger(), DefaultCacheConfig())
	ctx := context.Background()

	assets := []crawler.MediaAsset{
		{ID: "img-0", URL: "https://example.com/a.jpg", Type: crawler.TypeImage},
		{ID: "video-0", URL: "https://example.com/tour.mp4", Type: crawler.TypeVideo},
	}

	_, found := rc.GetCrawl(ctx, "https://example.com/listing/1")
	assert.False(t, found)

	rc.SetCrawl(ctx, "https://example.com/listing/1", assets)

	got, found := rc.GetCrawl(ctx, "https://example.com/listing/1")
	require.True(t, found)
	assert.Equal(t, assets, got)

	// A different URL is a different key.
	_, found = rc.GetCrawl(ctx, "https://example.com/listing/2")
	assert.False(t, found)
}

func TestCrawlCacheTTL(t *testing.T) {
	mem := newMemoryRedis()
	cfg := DefaultCacheConfig()
	cfg.CrawlTTL = 42 * time.Second
	rc := NewResultCache(mem, testLogger(), cfg)

	rc.SetCrawl(context.Background(), "https://example.com", []crawler.MediaAsset{})

	for _, ttl := range mem.ttls {
		assert.Equal(t, 42*time.Second, ttl)
	}
	assert.Len(t, mem.ttls, 1)
}

func TestProfileCacheRoundTrip(t *testing.T) {
	rc := NewResultCache(newMemoryRedis(), testLogger(), DefaultCacheConfig())
	ctx := context.Background()

	result := &profile.Result{
		Images:       []profile.CandidateImage{{Type: "image", URL: "https://example.com/jane.jpg", Confidence: 0.5}},
		AgentDetails: profile.AgentDetails{Name: "Jane Smith", Email: "jane@example.com"},
	}

	rc.SetProfile(ctx, "https://example.com/agents/jane", result)

	got, found := rc.GetProfile(ctx, "https://example.com/agents/jane")
	require.True(t, found)
	assert.Equal(t, result, got)
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	mem := newMemoryRedis()
	mem.pingErr = errors.New("connection refused")

	rc := NewResultCache(mem, testLogger(), DefaultCacheConfig())
	assert.False(t, rc.IsHealthy())

	// All operations become no-ops instead of errors.
	rc.SetCrawl(context.Background(), "https://example.com", []crawler.MediaAsset{{ID: "img-0"}})
	_, found := rc.GetCrawl(context.Background(), "https://example.com")
	assert.False(t, found)
}

func TestCacheNilClient(t *testing.T) {
	rc := NewResultCache(nil, testLogger(), DefaultCacheConfig())
	assert.False(t, rc.IsHealthy())
}

func TestCacheMetrics(t *testing.T) {
	rc := NewResultCache(newMemoryRedis(), testLogger(), DefaultCacheConfig())
	ctx := context.Background()

	rc.GetCrawl(ctx, "https://example.com") // miss
	rc.SetCrawl(ctx, "https://example.com", []crawler.MediaAsset{})
	rc.GetCrawl(ctx, "https://example.com") // hit

	m := rc.GetMetrics()
	assert.Equal(t, uint64(1), m.CrawlMisses)
	assert.Equal(t, uint64(1), m.CrawlHits)
}
