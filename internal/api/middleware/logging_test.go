package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatekit/media-crawler/pkg/logger"
)

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestRecovererConvertsPanicTo500(t *testing.T) {
	handler := Recoverer(testLog())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("browser session wedged")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/crawl", nil)
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecovererPassesThroughNormalRequests(t *testing.T) {
	handler := Recoverer(testLog())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestResponseWriterCapturesStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot) // later writes must not override
	n, err := rw.Write([]byte("done"))

	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusAccepted, rw.status)
	assert.Equal(t, 4, rw.size)
}
