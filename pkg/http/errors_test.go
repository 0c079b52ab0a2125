package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/echoboardhq/echoboard-segments/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) pkghttp.ErrorResponse {
	t.Helper()
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteErrorWithDetails(w, 400, "test_error", "Test message", "rule 2: unsupported operator")

	assert.Equal(t, 400, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "rule 2: unsupported operator", resp.Details)
}

func TestStatusWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(http.ResponseWriter, string)
		message    string
		wantStatus int
		wantCode   string
	}{
		{"bad request", pkghttp.WriteBadRequest, "Invalid rule definition", 400, "bad_request"},
		{"forbidden", pkghttp.WriteForbidden, "Segment is not manual", 403, "forbidden"},
		{"not found", pkghttp.WriteNotFound, "Segment not found", 404, "not_found"},
		{"conflict", pkghttp.WriteConflict, "Segment already exists", 409, "conflict"},
		{"too many requests", pkghttp.WriteTooManyRequests, "Rate limit exceeded", 429, "rate_limit_exceeded"},
		{"internal error", pkghttp.WriteInternalError, "Internal server error", 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, tt.message)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestErrorResponseOmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteNotFound(w, "Segment not found")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "error")
	assert.Contains(t, resp, "message")
	assert.NotContains(t, resp, "details")
}
