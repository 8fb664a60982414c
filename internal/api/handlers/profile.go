package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/estatekit/media-crawler/internal/profile"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// ProfileRequest is the body of POST /api/v1/profile/extract.
type ProfileRequest struct {
	URL string `json:"url"`
}

// ProfileResponse carries avatar candidates and best-guess agent details.
type ProfileResponse struct {
	URL          string                   `json:"url"`
	Images       []profile.CandidateImage `json:"images"`
	AgentDetails profile.AgentDetails     `json:"agentDetails"`
	Cached       bool                     `json:"cached"`
}

// HandleProfile returns the handler for static profile extraction: one
// spoofed HTTP fetch followed by pure HTML heuristics, no browser.
func HandleProfile(fetcher Fetcher, cache ResultCache, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("profile_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
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

		if cache != nil {
			if cached, found := cache.GetProfile(ctx, pageURL); found {
				RespondJSON(w, http.StatusOK, ProfileResponse{
					URL:          pageURL,
					Images:       cached.Images,
					AgentDetails: cached.AgentDetails,
					Cached:       true,
				})
				return
			}
		}

		start := time.Now()
		doc, err := fetcher.Get(ctx, pageURL)
		if err != nil {
			log.WithError(err).Warn("profile page fetch failed", "url", pageURL)
			RespondErrorWithDetails(w, http.StatusBadGateway, ErrCodeUpstreamFailed,
				"Profile page could not be fetched", map[string]any{"url": pageURL})
			return
		}

		// Extraction never fails; worst case is empty fields.
		result := profile.Extract(string(doc.Body), doc.FinalURL)

		if cache != nil {
			cache.SetProfile(ctx, pageURL, &result)
		}

		log.Info("profile extracted",
			"url", pageURL,
			"images", len(result.Images),
			"duration_ms", time.Since(start).Milliseconds())

		RespondJSON(w, http.StatusOK, ProfileResponse{
			URL:          pageURL,
			Images:       result.Images,
			AgentDetails: result.AgentDetails,
		})
	}
}
