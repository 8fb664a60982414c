package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/estatekit/media-crawler/internal/storage"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// maxUploadSize bounds multipart uploads. Listing photos rarely exceed a
// few megabytes; anything bigger is a mistake or abuse.
const maxUploadSize = 32 << 20

// UploadResponse is the body returned after a successful asset upload.
type UploadResponse struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// HandleUpload returns the handler for POST /api/v1/assets/upload. It
// accepts a multipart form with a "file" field, stores the asset, and
// returns its public URL for embedding in listings.
func HandleUpload(store AssetStore, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("upload_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			RespondServiceUnavailable(w, "Asset storage is not configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			RespondBadRequest(w, "Invalid multipart form or file too large")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			RespondBadRequest(w, "Missing 'file' field")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		path := storage.BuildUploadPath(header.Filename)

		key, err := store.UploadReader(r.Context(), file, header.Size, path, contentType)
		if err != nil {
			log.WithError(err).Error("asset upload failed", "filename", header.Filename)
			RespondInternalError(w, "Failed to store asset")
			return
		}

		publicURL, err := store.GetURL(r.Context(), key)
		if err != nil {
			log.WithError(err).Error("failed to resolve asset URL", "key", key)
			RespondInternalError(w, "Failed to resolve asset URL")
			return
		}

		log.Info("asset uploaded", "key", key, "size", header.Size)

		RespondJSON(w, http.StatusCreated, UploadResponse{
			Key:         key,
			URL:         publicURL,
			ContentType: contentType,
			Size:        header.Size,
		})
	}
}

// HandleDeleteAsset returns the handler for DELETE /api/v1/assets/{key}.
// Callers remove assets for listings that were unpublished or re-crawled.
// Keys contain slashes, so the route uses a catch-all parameter.
func HandleDeleteAsset(store AssetStore, log *logger.Logger) http.HandlerFunc {
	log = log.WithComponent("delete_asset_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			RespondServiceUnavailable(w, "Asset storage is not configured")
			return
		}

		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if key == "" {
			RespondBadRequest(w, "Missing asset key")
			return
		}

		exists, err := store.Exists(r.Context(), key)
		if err != nil {
			log.WithError(err).Error("asset lookup failed", "key", key)
			RespondInternalError(w, "Failed to look up asset")
			return
		}
		if !exists {
			RespondError(w, http.StatusNotFound, ErrCodeNotFound, "Asset not found")
			return
		}

		if err := store.Delete(r.Context(), key); err != nil {
			log.WithError(err).Error("asset delete failed", "key", key)
			RespondInternalError(w, "Failed to delete asset")
			return
		}

		log.Info("asset deleted", "key", key)
		w.WriteHeader(http.StatusNoContent)
	}
}
