package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/estatekit/media-crawler/pkg/logger"
)

// ProxyRequest is the body of POST /api/v1/media/proxy.
type ProxyRequest struct {
	URL string `json:"url"`
}

// HandleProxy returns the handler that fetches a media URL with spoofed
// browser headers and streams the bytes back. Origin servers that refuse
// datacenter clients usually accept this path.
func HandleProxy(fetcher Fetcher, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("proxy_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		var req ProxyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondBadRequest(w, "Invalid JSON body")
			return
		}

		mediaURL, err := validatePageURL(req.URL)
		if err != nil {
			RespondBadRequest(w, err.Error())
			return
		}

		doc, err := fetcher.Get(r.Context(), mediaURL)
		if err != nil {
			log.WithError(err).Warn("proxy fetch failed", "url", mediaURL)
			RespondErrorWithDetails(w, http.StatusBadGateway, ErrCodeUpstreamFailed,
				"Upstream media could not be fetched", map[string]any{"url": mediaURL})
			return
		}

		contentType := doc.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(doc.Body)
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(doc.Body); err != nil {
			log.WithError(err).Debug("client aborted proxy response", "url", mediaURL)
		}
	}
}
