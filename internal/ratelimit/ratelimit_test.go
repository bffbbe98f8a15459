package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recaudo/internal/platform/logger"
)

func TestMemoryAllowsUpToLimit(t *testing.T) {
	limiter := NewMemory(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	limiter := NewMemory(1, time.Minute)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = limiter.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryWindowResets(t *testing.T) {
	limiter := NewMemory(1, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "a")
	require.True(t, ok)
	ok, _ = limiter.Allow(ctx, "a")
	require.False(t, ok)

	now = now.Add(time.Minute + time.Second)
	ok, _ = limiter.Allow(ctx, "a")
	assert.True(t, ok)
}

func TestMiddlewareDeniesOverQuota(t *testing.T) {
	mw := Middleware(NewMemory(2, time.Minute), logger.New())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/approve", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/approve", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestMiddlewareKeysByFirstForwardedAddress(t *testing.T) {
	mw := Middleware(NewMemory(1, time.Minute), logger.New())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(fwd string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/approve", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		req.Header.Set("X-Forwarded-For", fwd)
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("1.2.3.4"))
	// Hops appended by later proxies do not mint a fresh bucket.
	assert.Equal(t, http.StatusTooManyRequests, do("1.2.3.4, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do(" 1.2.3.4 , 172.16.0.1, 10.0.0.1"))
}
