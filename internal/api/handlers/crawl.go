package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/estatekit/media-crawler/internal/crawler"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// CrawlRequest is the body of POST /api/v1/media/crawl.
type CrawlRequest struct {
	URL string `json:"url"`
}

// CrawlResponse carries the discovered media assets. Assets is always
// present, empty when the page yielded nothing.
type CrawlResponse struct {
	URL      string               `json:"url"`
	Assets   []crawler.MediaAsset `json:"assets"`
	Cached   bool                 `json:"cached"`
	Duration int64                `json:"duration_ms"`
}

// HandleCrawl returns the handler for media discovery. Each request costs a
// full browser session unless the cache answers first.
func HandleCrawl(svc CrawlService, cache ResultCache, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("crawl_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		var req CrawlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondBadRequest(w, "Invalid JSON body")
			return
		}

		pageURL, err := validatePageURL(req.URL)
		if err != nil {
			RespondBadRequest(w, err.Error())
			return
		}

		ctx := r.Context()
		start := time.Now()

		if cache != nil {
			if assets, found := cache.GetCrawl(ctx, pageURL); found {
				log.Info("serving crawl from cache", "url", pageURL, "assets", len(assets))
				RespondJSON(w, http.StatusOK, CrawlResponse{
					URL:      pageURL,
					Assets:   assets,
					Cached:   true,
					Duration: time.Since(start).Milliseconds(),
				})
				return
			}
		}

		assets, err := svc.Crawl(ctx, pageURL)
		if err != nil {
			respondCrawlError(w, log, pageURL, err)
			return
		}

		if cache != nil {
			cache.SetCrawl(ctx, pageURL, assets)
		}

		log.Info("crawl completed",
			"url", pageURL,
			"assets", len(assets),
			"duration_ms", time.Since(start).Milliseconds())

		RespondJSON(w, http.StatusOK, CrawlResponse{
			URL:      pageURL,
			Assets:   assets,
			Cached:   false,
			Duration: time.Since(start).Milliseconds(),
		})
	}
}

// respondCrawlError translates crawl failures into the structured error
// taxonomy: navigation failures map to 502, budget exhaustion to 504.
func respondCrawlError(w http.ResponseWriter, log *logger.Logger, pageURL string, err error) {
	var navErr *crawler.NavigationError
	var timeoutErr *crawler.TimeoutError

	switch {
	case errors.As(err, &timeoutErr):
		log.Warn("crawl timed out", "url", pageURL, "budget", timeoutErr.Budget.String())
		RespondErrorWithDetails(w, http.StatusGatewayTimeout, ErrCodeCrawlTimeout,
			"Page did not finish loading within the crawl budget",
			map[string]any{"url": pageURL, "budget_ms": timeoutErr.Budget.Milliseconds()})

	case errors.As(err, &navErr):
		log.Warn("navigation failed", "url", pageURL, "status", navErr.Status)
		details := map[string]any{"url": pageURL}
		if navErr.Status != 0 {
			details["upstream_status"] = navErr.Status
		}
		RespondErrorWithDetails(w, http.StatusBadGateway, ErrCodeNavigationFailed,
			"Target page could not be loaded", details)

	default:
		log.WithError(err).Error("crawl failed", "url", pageURL)
		RespondInternalError(w, "")
	}
}

// validatePageURL rejects anything that is not an absolute http(s) URL
// before a browser session gets spent on it.
func validatePageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errors.New("url must be an absolute http or https URL")
	}

	return u.String(), nil
}
