// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dqerr "github.com/sigil-dev/docquery/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr string
	}{
		{name: "disabled", cfg: RateLimitConfig{}},
		{name: "valid", cfg: RateLimitConfig{RequestsPerSecond: 5, Burst: 10}},
		{name: "negative rate", cfg: RateLimitConfig{RequestsPerSecond: -1}, wantErr: "must not be negative"},
		{name: "rate without burst", cfg: RateLimitConfig{RequestsPerSecond: 1}, wantErr: "burst must be positive"},
		{name: "negative visitors", cfg: RateLimitConfig{MaxVisitors: -1}, wantErr: "max visitors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 10000, cfg.MaxVisitors)
				return
			}
			require.Error(t, err)
			assert.True(t, dqerr.HasCode(err, dqerr.CodeServerConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	wrapped := rateLimitMiddleware(RateLimitConfig{Burst: 1}, done)(okHandler)

	for range 50 {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimitMiddleware_ExceedsBurst(t *testing.T) {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	wrapped := rateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 3}, done)(okHandler)

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/search/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, req)
		return w
	}

	for i := range 3 {
		assert.Equal(t, http.StatusOK, send(fmt.Sprintf("10.0.0.1:%d", 4000+i)).Code)
	}

	w := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "a new port is the same client")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded.")

	assert.Equal(t, http.StatusOK, send("10.0.0.2:4000").Code, "other clients have their own bucket")
}

func TestIPLimiter_Refill(t *testing.T) {
	l := newIPLimiter(RateLimitConfig{RequestsPerSecond: 2, Burst: 2})
	now := time.Now()

	assert.True(t, l.allow("a", now))
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))

	// Half a second at 2 rps earns one token.
	assert.True(t, l.allow("a", now.Add(500*time.Millisecond)))
	assert.False(t, l.allow("a", now.Add(500*time.Millisecond)))

	// Refill never exceeds the burst.
	later := now.Add(time.Hour)
	assert.True(t, l.allow("a", later))
	assert.True(t, l.allow("a", later))
	assert.False(t, l.allow("a", later))
}

func TestIPLimiter_Cleanup(t *testing.T) {
	l := newIPLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, MaxVisitors: 2})
	now := time.Now()

	l.allow("stale", now.Add(-time.Hour))
	l.allow("old", now.Add(-3*time.Minute))
	l.allow("mid", now.Add(-2*time.Minute))
	l.allow("new", now.Add(-time.Minute))
	require.Equal(t, 4, l.size())

	l.cleanup(now)

	assert.Equal(t, 2, l.size())
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Contains(t, l.visitors, "mid")
	assert.Contains(t, l.visitors, "new")
}
