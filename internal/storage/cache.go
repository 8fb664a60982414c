package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/estatekit/media-crawler/internal/crawler"
	"github.com/estatekit/media-crawler/internal/profile"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// CacheConfig holds tuning for the result cache.
type CacheConfig struct {
	Prefix              string
	CrawlTTL            time.Duration
	ProfileTTL          time.Duration
	GracefulDegradation bool // serve without cache when Redis is down
}

// DefaultCacheConfig returns the standard cache tuning. Crawl results are
// expensive (a full browser session) so they keep a longer TTL than static
// profile extractions.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Prefix:              "crawl",
		CrawlTTL:            15 * time.Minute,
		ProfileTTL:          5 * time.Minute,
		GracefulDegradation: true,
	}
}

// CacheMetrics tracks hit/miss statistics.
type CacheMetrics struct {
	CrawlHits     uint64
	CrawlMisses   uint64
	ProfileHits   uint64
	ProfileMisses uint64
	Errors        uint64
}

// ResultCache is a TTL cache for crawl and profile responses. Results are
// ephemeral by design; nothing here outlives its TTL and no media bytes are
// ever stored, only the discovered URLs.
type ResultCache struct {
	client  RedisClient
	config  CacheConfig
	log     *logger.Logger
	metrics *CacheMetrics
	healthy bool
}

// NewResultCache creates the cache. A nil client or a failed ping disables
// the cache rather than failing startup when graceful degradation is on.
func NewResultCache(client RedisClient, log *logger.Logger, cfg CacheConfig) *ResultCache {
	rc := &ResultCache{
		client:  client,
		config:  cfg,
		log:     log.WithComponent("result_cache"),
		metrics: &CacheMetrics{},
		healthy: true,
	}

	if client == nil {
		rc.healthy = false
		return rc
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		rc.log.Warn("Redis unreachable, result cache disabled", "error", err)
		rc.healthy = false
	}

	return rc
}

// IsHealthy reports whether the cache is operational.
func (rc *ResultCache) IsHealthy() bool {
	return rc.healthy && rc.client != nil
}

// GetMetrics returns a snapshot of the hit/miss counters.
func (rc *ResultCache) GetMetrics() CacheMetrics {
	return CacheMetrics{
		CrawlHits:     atomic.LoadUint64(&rc.metrics.CrawlHits),
		CrawlMisses:   atomic.LoadUint64(&rc.metrics.CrawlMisses),
		ProfileHits:   atomic.LoadUint64(&rc.metrics.ProfileHits),
		ProfileMisses: atomic.LoadUint64(&rc.metrics.ProfileMisses),
		Errors:        atomic.LoadUint64(&rc.metrics.Errors),
	}
}

// GetCrawl returns a cached crawl result for the URL, or found=false.
func (rc *ResultCache) GetCrawl(ctx context.Context, pageURL string) ([]crawler.MediaAsset, bool) {
	if !rc.IsHealthy() {
		return nil, false
	}

	data, err := rc.client.Get(ctx, rc.key("media", pageURL))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			atomic.AddUint64(&rc.metrics.Errors, 1)
			rc.log.Debug("crawl cache lookup failed", "error", err)
		}
		atomic.AddUint64(&rc.metrics.CrawlMisses, 1)
		return nil, false
	}

	var assets []crawler.MediaAsset
	if err := json.Unmarshal([]byte(data), &assets); err != nil {
		atomic.AddUint64(&rc.metrics.Errors, 1)
		rc.log.Warn("discarding undecodable crawl cache entry", "error", err)
		return nil, false
	}

	atomic.AddUint64(&rc.metrics.CrawlHits, 1)
	return assets, true
}

// SetCrawl stores a crawl result. Failures are logged, not returned; the
// response has already been computed and a cache write must not fail it.
func (rc *ResultCache) SetCrawl(ctx context.Context, pageURL string, assets []crawler.MediaAsset) {
	if !rc.IsHealthy() {
		return
	}

	data, err := json.Marshal(assets)
	if err != nil {
		atomic.AddUint64(&rc.metrics.Errors, 1)
		return
	}

	if err := rc.client.Set(ctx, rc.key("media", pageURL), string(data), rc.config.CrawlTTL); err != nil {
		atomic.AddUint64(&rc.metrics.Errors, 1)
		rc.log.Debug("crawl cache write failed", "error", err)
	}
}

// GetProfile returns a cached profile extraction, or found=false.
func (rc *ResultCache) GetProfile(ctx context.Context, pageURL string) (*profile.Result, bool) {
	if !rc.IsHealthy() {
		return nil, false
	}

	data, err := rc.client.Get(ctx, rc.key("profile", pageURL))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			atomic.AddUint64(&rc.metrics.Errors, 1)
		}
		atomic.AddUint64(&rc.metrics.ProfileMisses, 1)
		return nil, false
	}

	var result profile.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		atomic.AddUint64(&rc.metrics.Errors, 1)
		return nil, false
	}

	atomic.AddUint64(&rc.metrics.ProfileHits, 1)
	return &result, true
}

// SetProfile stores a profile extraction result.
func (rc *ResultCache) SetProfile(ctx context.Context, pageURL string, result *profile.Result) {
	if !rc.IsHealthy() || result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		atomic.AddUint64(&rc.metrics.Errors, 1)
		return
	}

	if err := rc.client.Set(ctx, rc.key("profile", pageURL), string(data), rc.config.ProfileTTL); err != nil {
		atomic.AddUint64(&rc.metrics.Errors, 1)
	}
}

// key hashes the URL so arbitrary page URLs become fixed-length Redis keys.
func (rc *ResultCache) key(kind, pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("%s:%s:%s", rc.config.Prefix, kind, hex.EncodeToString(sum[:]))
}
