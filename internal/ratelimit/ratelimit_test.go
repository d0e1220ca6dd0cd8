package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govvault/pkg/domain"
	"govvault/pkg/requestcontext"
)

func TestMemoryStoreSlidingWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.GreaterOrEqual(t, result.RetryAfter, 1)

	// Separate keys have separate windows.
	result, err = store.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryStoreWindowExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)

	result, err := store.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	time.Sleep(20 * time.Millisecond)

	result, err = store.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMiddlewareThrottles(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Middleware(NewMemoryStore(), 2, time.Minute, log)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/messages/pay", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestMiddlewareKeysByCallerWhenAuthenticated(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Middleware(NewMemoryStore(), 1, time.Minute, log)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	do := func(caller domain.Address) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/policy/edits", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req = req.WithContext(requestcontext.WithCaller(req.Context(), caller))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	// Two callers behind the same IP are limited independently.
	assert.Equal(t, http.StatusOK, do(domain.Address{0x01}).Code)
	assert.Equal(t, http.StatusOK, do(domain.Address{0x02}).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(domain.Address{0x01}).Code)
}
