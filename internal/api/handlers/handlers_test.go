package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatekit/media-crawler/internal/crawler"
	"github.com/estatekit/media-crawler/internal/fetch"
	"github.com/estatekit/media-crawler/internal/profile"
	"github.com/estatekit/media-crawler/pkg/logger"
)

// --- mocks ---

type mockCrawler struct {
	assets []crawler.MediaAsset
	err    error
	calls  int
}

func (m *mockCrawler) Crawl(ctx context.Context, pageURL string) ([]crawler.MediaAsset, error) {
	m.calls++
	return m.assets, m.err
}

type mockFetcher struct {
	doc *fetch.Document
	err error
}

func (m *mockFetcher) Get(ctx context.Context, rawURL string) (*fetch.Document, error) {
	return m.doc, m.err
}

type mockAssetStore struct {
	uploadErr error
	deleteErr error
	healthErr error
	gotPath   string
	gotSize   int64
	stored    map[string]bool
	deleted   []string
}

func (m *mockAssetStore) UploadReader(ctx context.Context, reader io.Reader, size int64, path, contentType string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.gotPath = path
	m.gotSize = size
	return path, nil
}

func (m *mockAssetStore) GetURL(ctx context.Context, path string) (string, error) {
	return "https://assets.example.com/listing-assets/" + path, nil
}

func (m *mockAssetStore) Exists(ctx context.Context, path string) (bool, error) {
	return m.stored[path], nil
}

func (m *mockAssetStore) Delete(ctx context.Context, path string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockAssetStore) Health(ctx context.Context) error { return m.healthErr }

type mockCache struct {
	crawls   map[string][]crawler.MediaAsset
	profiles map[string]*profile.Result
	healthy  bool
}

func newMockCache() *mockCache {
	return &mockCache{
		crawls:   map[string][]crawler.MediaAsset{},
		profiles: map[string]*profile.Result{},
		healthy:  true,
	}
}

func (m *mockCache) GetCrawl(ctx context.Context, pageURL string) ([]crawler.MediaAsset, bool) {
	a, ok := m.crawls[pageURL]
	return a, ok
}

func (m *mockCache) SetCrawl(ctx context.Context, pageURL string, assets []crawler.MediaAsset) {
	m.crawls[pageURL] = assets
}

func (m *mockCache) GetProfile(ctx context.Context, pageURL string) (*profile.Result, bool) {
	p, ok := m.profiles[pageURL]
	return p, ok
}

func (m *mockCache) SetProfile(ctx context.Context, pageURL string, result *profile.Result) {
	m.profiles[pageURL] = result
}

func (m *mockCache) IsHealthy() bool { return m.healthy }

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "text"})
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// --- crawl handler ---

func TestHandleCrawlSuccess(t *testing.T) {
	svc := &mockCrawler{assets: []crawler.MediaAsset{
		{ID: "img-0", URL: "https://example.com/a.jpg", Type: crawler.TypeImage, Selected: false},
		{ID: "floorplan-0", URL: "https://example.com/plan.pdf", Type: crawler.TypeImage, Category: crawler.CategoryFloorplan},
	}}

	rec := postJSON(t, HandleCrawl(svc, nil, testLog()), CrawlRequest{URL: "https://example.com/listing/1"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CrawlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Assets, 2)
	assert.Equal(t, "img-0", resp.Assets[0].ID)
	assert.False(t, resp.Assets[0].Selected)
	assert.Equal(t, "floorplan", resp.Assets[1].Category)
	assert.False(t, resp.Cached)
}

func TestHandleCrawlEmptyResult(t *testing.T) {
	rec := postJSON(t, HandleCrawl(&mockCrawler{assets: []crawler.MediaAsset{}}, nil, testLog()),
		CrawlRequest{URL: "https://example.com"})

	require.Equal(t, http.StatusOK, rec.Code)
	// Assets serializes as an empty array, never null.
	assert.Contains(t, rec.Body.String(), `"assets":[]`)
}

func TestHandleCrawlInvalidURL(t *testing.T) {
	for _, bad := range []string{"", "not a url", "ftp://example.com/x", "/relative/path"} {
		rec := postJSON(t, HandleCrawl(&mockCrawler{}, nil, testLog()), CrawlRequest{URL: bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "url: %q", bad)
	}
}

func TestHandleCrawlNavigationError(t *testing.T) {
	svc := &mockCrawler{err: &crawler.NavigationError{URL: "https://example.com/gone", Status: 404}}

	rec := postJSON(t, HandleCrawl(svc, nil, testLog()), CrawlRequest{URL: "https://example.com/gone"})

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeNavigationFailed, resp.Error.Code)
}

func TestHandleCrawlTimeout(t *testing.T) {
	svc := &mockCrawler{err: &crawler.TimeoutError{URL: "https://slow.example.com", Budget: 45 * time.Second}}

	rec := postJSON(t, HandleCrawl(svc, nil, testLog()), CrawlRequest{URL: "https://slow.example.com"})

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeCrawlTimeout, resp.Error.Code)
}

func TestHandleCrawlInternalError(t *testing.T) {
	svc := &mockCrawler{err: errors.New("browser exploded")}

	rec := postJSON(t, HandleCrawl(svc, nil, testLog()), CrawlRequest{URL: "https://example.com"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleCrawlCacheHit(t *testing.T) {
	cache := newMockCache()
	cache.crawls["https://example.com/listing/1"] = []crawler.MediaAsset{{ID: "img-0"}}
	svc := &mockCrawler{}

	rec := postJSON(t, HandleCrawl(svc, cache, testLog()), CrawlRequest{URL: "https://example.com/listing/1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.calls, "cache hit must not start a browser session")

	var resp CrawlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
}

func TestHandleCrawlPopulatesCache(t *testing.T) {
	cache := newMockCache()
	svc := &mockCrawler{assets: []crawler.MediaAsset{{ID: "video-0", Type: crawler.TypeVideo}}}

	rec := postJSON(t, HandleCrawl(svc, cache, testLog()), CrawlRequest{URL: "https://example.com"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, cache.crawls["https://example.com"], 1)
}

// --- profile handler ---

func TestHandleProfileSuccess(t *testing.T) {
	html := `
	<html><body>
		<h1>Jane Smith</h1>
		<a href="mailto:jane@example.com">mail</a>
		<img src="/photos/jane.jpg" alt="Jane">
	</body></html>`

	fetcher := &mockFetcher{doc: &fetch.Document{
		Body:        []byte(html),
		ContentType: "text/html",
		FinalURL:    "https://example.com/agents/jane",
	}}

	rec := postJSON(t, HandleProfile(fetcher, nil, testLog()), ProfileRequest{URL: "https://example.com/agents/jane"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Jane Smith", resp.AgentDetails.Name)
	assert.Equal(t, "jane@example.com", resp.AgentDetails.Email)
	require.Len(t, resp.Images, 1)
	assert.Equal(t, "https://example.com/photos/jane.jpg", resp.Images[0].URL)
	assert.Equal(t, 0.5, resp.Images[0].Confidence)
}

func TestHandleProfileFetchFailure(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("connection refused")}

	rec := postJSON(t, HandleProfile(fetcher, nil, testLog()), ProfileRequest{URL: "https://example.com"})

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeUpstreamFailed, resp.Error.Code)
}

func TestHandleProfileEmptyPage(t *testing.T) {
	fetcher := &mockFetcher{doc: &fetch.Document{
		Body:     []byte("<html><body></body></html>"),
		FinalURL: "https://example.com",
	}}

	rec := postJSON(t, HandleProfile(fetcher, nil, testLog()), ProfileRequest{URL: "https://example.com"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"images":[]`)
}

// --- upload handler ---

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleUploadSuccess(t *testing.T) {
	store := &mockAssetStore{}
	body, contentType := multipartUpload(t, "file", "photo.jpg", []byte("jpegdata"))

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	HandleUpload(store, testLog())(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.URL, "https://assets.example.com/")
	assert.Contains(t, resp.Key, "uploads/")
	assert.Equal(t, int64(8), resp.Size)
}

func TestHandleUploadMissingFile(t *testing.T) {
	store := &mockAssetStore{}
	body, contentType := multipartUpload(t, "wrong_field", "photo.jpg", []byte("x"))

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	HandleUpload(store, testLog())(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUploadStoreFailure(t *testing.T) {
	store := &mockAssetStore{uploadErr: errors.New("bucket gone")}
	body, contentType := multipartUpload(t, "file", "photo.jpg", []byte("x"))

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	HandleUpload(store, testLog())(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleUploadStorageNotConfigured(t *testing.T) {
	body, contentType := multipartUpload(t, "file", "photo.jpg", []byte("x"))

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	HandleUpload(nil, testLog())(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeServiceUnavailable, resp.Error.Code)
}

// deleteAsset routes the request through chi so the catch-all key
// parameter is populated the way the real router populates it.
func deleteAsset(store AssetStore, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Delete("/assets/*", HandleDeleteAsset(store, testLog()))

	req := httptest.NewRequest(http.MethodDelete, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleDeleteAssetSuccess(t *testing.T) {
	store := &mockAssetStore{stored: map[string]bool{"uploads/2026/08/31/a1.jpg": true}}

	rec := deleteAsset(store, "/assets/uploads/2026/08/31/a1.jpg")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"uploads/2026/08/31/a1.jpg"}, store.deleted)
}

func TestHandleDeleteAssetNotFound(t *testing.T) {
	store := &mockAssetStore{}

	rec := deleteAsset(store, "/assets/uploads/2026/08/31/missing.jpg")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.deleted)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestHandleDeleteAssetStoreFailure(t *testing.T) {
	store := &mockAssetStore{
		stored:    map[string]bool{"uploads/x.jpg": true},
		deleteErr: errors.New("minio unreachable"),
	}

	rec := deleteAsset(store, "/assets/uploads/x.jpg")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleDeleteAssetStorageNotConfigured(t *testing.T) {
	rec := deleteAsset(nil, "/assets/uploads/x.jpg")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// --- proxy handler ---

func TestHandleProxyStreamsContent(t *testing.T) {
	fetcher := &mockFetcher{doc: &fetch.Document{
		Body:        []byte("binary-image-bytes"),
		ContentType: "image/jpeg",
		FinalURL:    "https://cdn.example.com/a.jpg",
	}}

	rec := postJSON(t, HandleProxy(fetcher, testLog()), ProxyRequest{URL: "https://cdn.example.com/a.jpg"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "binary-image-bytes", rec.Body.String())
}

func TestHandleProxyUpstreamFailure(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("403 from origin")}

	rec := postJSON(t, HandleProxy(fetcher, testLog()), ProxyRequest{URL: "https://cdn.example.com/a.jpg"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// --- health handlers ---

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	HealthCheck("1.2.3")(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "media-crawler", status.Service)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestReadyCheckAllHealthy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()

	ReadyCheck(&mockAssetStore{}, newMockCache())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status ReadyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "healthy", status.Components["asset_store"])
	assert.Equal(t, "healthy", status.Components["result_cache"])
}

func TestReadyCheckStoreDown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()

	ReadyCheck(&mockAssetStore{healthErr: errors.New("minio unreachable")}, nil)(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyCheckCacheDegradedStillReady(t *testing.T) {
	cache := newMockCache()
	cache.healthy = false

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()

	ReadyCheck(&mockAssetStore{}, cache)(rec, req)

	// Cache loss degrades performance, not availability.
	require.Equal(t, http.StatusOK, rec.Code)

	var status ReadyStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Components["result_cache"])
}
