package crawler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/estatekit/media-crawler/internal/config"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// Crawler runs media-discovery crawls. Each Crawl call owns exactly one
// browser session; concurrent calls each launch and tear down their own.
type Crawler struct {
	cfg config.CrawlerConfig
	log *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Crawler with the given configuration.
func New(cfg config.CrawlerConfig, log *logger.Logger) *Crawler {
	if log == nil {
		log = logger.Default()
	}
	return &Crawler{
		cfg:      cfg,
		log:      log.WithComponent("media-crawler"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Crawl navigates to targetURL in a fresh browser session, reveals hidden
// galleries by clicking qualifying elements, and returns the deduplicated,
// classified asset list. Navigation failures abort the crawl; exploration
// failures are recovered locally and never surface to the caller.
func (c *Crawler) Crawl(ctx context.Context, targetURL string) ([]MediaAsset, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q", targetURL)
	}

	if err := c.hostLimiter(parsed.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	c.log.Info("crawl started", "url", targetURL)

	fp := DefaultFingerprint(c.cfg.UserAgent, c.cfg.ViewportWidth, c.cfg.ViewportHeight)
	sess, cancel := newSession(ctx, fp, c.log)
	defer cancel()

	if err := sess.navigate(targetURL, c.cfg.NavigationTimeout); err != nil {
		c.log.WithError(err).Warn("crawl failed", "url", targetURL)
		return nil, err
	}

	sess.waitForMedia(c.cfg.MediaWait)
	sess.settle(c.cfg.LoadSettle)

	agg := NewAggregator()

	snap, err := sess.snapshot()
	if err != nil {
		// Initial extraction failing after a successful navigation means the
		// page is gone; treat it like an unreachable target.
		return nil, &NavigationError{URL: targetURL, Err: err}
	}
	agg.Merge(Resolve(sess.base, snap))

	exp := &explorer{settle: c.cfg.ClickSettle, log: c.log}
	exp.explore(sess, agg)

	assets := agg.Assemble()
	c.log.Info("crawl completed",
		"url", targetURL,
		"assets", len(assets),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return assets, nil
}

// hostLimiter returns the polite-crawling limiter for a host, creating it on
// first use.
func (c *Crawler) hostLimiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.cfg.HostRateLimit), 1)
		c.limiters[host] = lim
	}
	return lim
}
