// Package fetch provides a plain HTTP client that presents itself as a
// desktop browser. Used for static profile pages and for proxying media
// that origin servers refuse to serve to obvious bots.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/estatekit/media-crawler/internal/config"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// Client fetches resources with browser-mimicking request headers.
type Client struct {
	http    *http.Client
	ua      string
	maxBody int64
	log     *logger.Logger
}

// Document is a fetched resource body plus the metadata callers need to
// re-serve it.
type Document struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

func NewClient(cfg config.FetchConfig, log *logger.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		ua:      cfg.UserAgent,
		maxBody: cfg.MaxBody,
		log:     log.WithComponent("fetch"),
	}
}

// Get retrieves the URL with spoofed headers. Redirects are followed; the
// returned FinalURL reflects where the body actually came from so relative
// references resolve correctly.
func (c *Client) Get(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: upstream returned %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", rawURL, err)
	}

	c.log.Debug("fetched resource",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body))

	return &Document{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}
