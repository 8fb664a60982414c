package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatekit/media-crawler/internal/config"
	"github.com/estatekit/media-crawler/pkg/logger"
)

func testClient(maxBody int64) *Client {
	log := logger.New(logger.Config{Level: "error", Format: "text"})
	return NewClient(config.FetchConfig{
		UserAgent: "TestBrowser/1.0",
		Timeout:   5 * time.Second,
		MaxBody:   maxBody,
	}, log)
}

func TestGetSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	doc, err := testClient(1 << 20).Get(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "TestBrowser/1.0", gotUA)
	assert.Equal(t, "en-US,en;q=0.9", gotAccept)
	assert.Equal(t, "<html></html>", string(doc.Body))
	assert.Equal(t, "text/html; charset=utf-8", doc.ContentType)
}

func TestGetErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := testClient(1 << 20).Get(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "410")
}

func TestGetFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer srv.Close()

	doc, err := testClient(1 << 20).Get(context.Background(), srv.URL+"/old")
	require.NoError(t, err)

	assert.Equal(t, "landed", string(doc.Body))
	assert.Equal(t, srv.URL+"/new", doc.FinalURL)
}

func TestGetBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	doc, err := testClient(128).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, doc.Body, 128)
}
