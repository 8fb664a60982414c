// Package handlers provides HTTP request handlers for the API.
package handlers

import (
	"context"
	"io"
	"time"

	"github.com/estatekit/media-crawler/internal/crawler"
	"github.com/estatekit/media-crawler/internal/fetch"
	"github.com/estatekit/media-crawler/internal/profile"
)

// CrawlService runs a full browser crawl of a listing page.
type CrawlService interface {
	Crawl(ctx context.Context, pageURL string) ([]crawler.MediaAsset, error)
}

// Fetcher retrieves static resources with browser-mimicking headers.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Document, error)
}

// AssetStore persists uploaded assets, resolves their public URLs, and
// removes them again. A nil AssetStore means storage is not configured;
// handlers answer 503 rather than dereferencing it.
type AssetStore interface {
	UploadReader(ctx context.Context, reader io.Reader, size int64, path, contentType string) (string, error)
	GetURL(ctx context.Context, path string) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	Health(ctx context.Context) error
}

// ResultCache is the optional TTL cache in front of crawl and profile
// operations. A nil cache is valid; handlers treat every lookup as a miss.
type ResultCache interface {
	GetCrawl(ctx context.Context, pageURL string) ([]crawler.MediaAsset, bool)
	SetCrawl(ctx context.Context, pageURL string, assets []crawler.MediaAsset)
	GetProfile(ctx context.Context, pageURL string) (*profile.Result, bool)
	SetProfile(ctx context.Context, pageURL string, result *profile.Result)
	IsHealthy() bool
}

// HealthChecker is implemented by dependencies that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// nowRFC3339 keeps health timestamps consistent across handlers.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
