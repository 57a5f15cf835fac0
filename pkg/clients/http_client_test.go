package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGetSetsDefaultHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.Headers = map[string]string{"X-Team": "ars"}
	c := NewHTTPClient(cfg, zaptest.NewLogger(t))
	defer c.Close()

	resp, err := c.Get(context.Background(), srv.URL, map[string]string{"X-Call": "1"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "pitchline/1.0", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "ars", got.Get("X-Team"))
	assert.Equal(t, "1", got.Get("X-Call"))

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, 100.0, stats.SuccessRate)
	assert.Nil(t, stats.RateLimiter)
}

func TestTransportErrorCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(nil, nil)
	_, err := c.Get(context.Background(), url, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), c.GetStats().FailedRequests)
}

func TestRateLimitWaitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	c := NewHTTPClient(cfg, nil)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	stats := c.GetStats()
	require.NotNil(t, stats.RateLimiter)
	assert.Equal(t, int64(1), stats.RateLimiter.AllowedRequests)
	assert.Equal(t, int64(1), stats.RateLimiter.BlockedRequests)
}
