package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitByIP(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 3})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)

		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/segments/abc/evaluate", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("rejects requests over the limit", func(t *testing.T) {
		handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)

		var lastCode int
		var lastBody string
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/segments/abc/evaluate", nil)
			req.RemoteAddr = "10.0.0.2:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			lastCode = rec.Code
			lastBody = rec.Body.String()
		}

		assert.Equal(t, http.StatusTooManyRequests, lastCode)
		assert.Contains(t, lastBody, "Rate limit exceeded")
	})

	t.Run("tracks limits per IP", func(t *testing.T) {
		handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)

		first := httptest.NewRequest(http.MethodPost, "/api/v1/segments/evaluate", nil)
		first.RemoteAddr = "10.0.1.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, first)
		assert.Equal(t, http.StatusOK, rec.Code)

		second := httptest.NewRequest(http.MethodPost, "/api/v1/segments/evaluate", nil)
		second.RemoteAddr = "10.0.1.2:1234"
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, second)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestDefaultEvaluationRateLimit(t *testing.T) {
	config := DefaultEvaluationRateLimit()
	assert.Equal(t, 10, config.RequestsPerMinute)
}
