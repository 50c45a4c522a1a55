package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limitedHandler(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(okHandler())
}

func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitUnderLimit(t *testing.T) {
	handler := limitedHandler(t, RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := doRequest(handler, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitOverLimit(t *testing.T) {
	handler := limitedHandler(t, RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:9999").Code)
	}

	w := doRequest(handler, "10.0.0.1:9999")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	handler := limitedHandler(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1234").Code)
	// Same client, different source port: still over the limit.
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:5678").Code)
}

func TestRateLimitWindowReset(t *testing.T) {
	handler := limitedHandler(t, RateLimitConfig{Max: 1, Window: 50 * time.Millisecond})

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1").Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1").Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	handler := limitedHandler(t, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})

	byKey := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, byKey("key-a").Code)
	assert.Equal(t, http.StatusTooManyRequests, byKey("key-a").Code)
	assert.Equal(t, http.StatusOK, byKey("key-b").Code)
}

func TestRateLimitXForwardedFor(t *testing.T) {
	handler := limitedHandler(t, RateLimitConfig{Max: 1, Window: time.Minute})

	forwarded := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, forwarded("192.168.1.1:4444").Code)
	// Same forwarded client behind a different proxy hop is still limited.
	assert.Equal(t, http.StatusTooManyRequests, forwarded("192.168.1.2:5555").Code)
}
