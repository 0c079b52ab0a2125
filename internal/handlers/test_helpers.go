package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/echoboardhq/echoboard-segments/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithURLParam injects a chi route parameter into the request context
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "application/json"),
		"Content-Type should be application/json, got %s", contentType)

	if target != nil {
		err := json.NewDecoder(w.Body).Decode(target)
		assert.NoError(t, err, "Failed to decode JSON response")
	}
}

// MockSegmentService implements SegmentService for handler tests
type MockSegmentService struct {
	CreateSegmentFunc             func(input services.CreateSegmentInput) (*models.Segment, error)
	GetSegmentFunc                func(id string) (*models.Segment, error)
	ListSegmentsFunc              func() ([]*models.Segment, error)
	UpdateSegmentFunc             func(id string, input services.UpdateSegmentInput) (*models.Segment, error)
	DeleteSegmentFunc             func(id string) error
	AssignPrincipalsFunc          func(segmentID string, principalIDs []string) error
	RemovePrincipalsFunc          func(segmentID string, principalIDs []string) error
	GetUserSegmentsFunc           func(principalID string) ([]*models.SegmentSummary, error)
	GetPrincipalIDsInSegmentsFunc func(segmentIDs []string) (map[string]struct{}, error)
}

func (m *MockSegmentService) CreateSegment(input services.CreateSegmentInput) (*models.Segment, error) {
	if m.CreateSegmentFunc != nil {
		return m.CreateSegmentFunc(input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSegmentService) GetSegment(id string) (*models.Segment, error) {
	if m.GetSegmentFunc != nil {
		return m.GetSegmentFunc(id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSegmentService) ListSegments() ([]*models.Segment, error) {
	if m.ListSegmentsFunc != nil {
		return m.ListSegmentsFunc()
	}
	return []*models.Segment{}, nil
}

func (m *MockSegmentService) UpdateSegment(id string, input services.UpdateSegmentInput) (*models.Segment, error) {
	if m.UpdateSegmentFunc != nil {
		return m.UpdateSegmentFunc(id, input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSegmentService) DeleteSegment(id string) error {
	if m.DeleteSegmentFunc != nil {
		return m.DeleteSegmentFunc(id)
	}
	return nil
}

func (m *MockSegmentService) AssignPrincipals(segmentID string, principalIDs []string) error {
	if m.AssignPrincipalsFunc != nil {
		return m.AssignPrincipalsFunc(segmentID, principalIDs)
	}
	return nil
}

func (m *MockSegmentService) RemovePrincipals(segmentID string, principalIDs []string) error {
	if m.RemovePrincipalsFunc != nil {
		return m.RemovePrincipalsFunc(segmentID, principalIDs)
	}
	return nil
}

func (m *MockSegmentService) GetUserSegments(principalID string) ([]*models.SegmentSummary, error) {
	if m.GetUserSegmentsFunc != nil {
		return m.GetUserSegmentsFunc(principalID)
	}
	return []*models.SegmentSummary{}, nil
}

func (m *MockSegmentService) GetPrincipalIDsInSegments(segmentIDs []string) (map[string]struct{}, error) {
	if m.GetPrincipalIDsInSegmentsFunc != nil {
		return m.GetPrincipalIDsInSegmentsFunc(segmentIDs)
	}
	return nil, nil
}

// MockEvaluationService implements EvaluationService for handler tests
type MockEvaluationService struct {
	EvaluateSegmentFunc     func(ctx context.Context, segmentID string) (*models.EvaluationResult, error)
	EvaluateAllSegmentsFunc func(ctx context.Context) ([]*models.EvaluationResult, error)
}

func (m *MockEvaluationService) EvaluateSegment(ctx context.Context, segmentID string) (*models.EvaluationResult, error) {
	if m.EvaluateSegmentFunc != nil {
		return m.EvaluateSegmentFunc(ctx, segmentID)
	}
	return nil, models.ErrNotFound
}

func (m *MockEvaluationService) EvaluateAllSegments(ctx context.Context) ([]*models.EvaluationResult, error) {
	if m.EvaluateAllSegmentsFunc != nil {
		return m.EvaluateAllSegmentsFunc(ctx)
	}
	return []*models.EvaluationResult{}, nil
}

// MockStatsService implements StatsService for handler tests
type MockStatsService struct {
	GetSegmentStatsFunc func() (*services.SegmentStatsResponse, error)
}

func (m *MockStatsService) GetSegmentStats() (*services.SegmentStatsResponse, error) {
	if m.GetSegmentStatsFunc != nil {
		return m.GetSegmentStatsFunc()
	}
	return &services.SegmentStatsResponse{}, nil
}
