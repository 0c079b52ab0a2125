package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/echoboardhq/echoboard-segments/internal/database"
	"github.com/echoboardhq/echoboard-segments/internal/handlers"
	middlewareCustom "github.com/echoboardhq/echoboard-segments/internal/middleware"
	"github.com/echoboardhq/echoboard-segments/internal/routes"
	"github.com/echoboardhq/echoboard-segments/internal/services"
)

// NotifiedEvent represents one captured membership churn notification
type NotifiedEvent struct {
	SegmentName string
	AddedIDs    []string
	RemovedIDs  []string
}

// CapturingNotifier records churn notifications for test assertions
type CapturingNotifier struct {
	mu     sync.Mutex
	Events []NotifiedEvent
}

func (n *CapturingNotifier) Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Events = append(n.Events, NotifiedEvent{
		SegmentName: segmentName,
		AddedIDs:    addedIDs,
		RemovedIDs:  removedIDs,
	})
	return nil
}

// GetEvents returns a copy of the captured notifications
func (n *CapturingNotifier) GetEvents() []NotifiedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]NotifiedEvent, len(n.Events))
	copy(out, n.Events)
	return out
}

// Reset clears captured notifications between test cases
func (n *CapturingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Notifier *CapturingNotifier

	// Service references for direct inspection in tests
	SegmentService    *services.SegmentService
	EvaluationService *services.EvaluationService

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database + captured notifications
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Initialize repositories
	segmentRepo, membershipRepo, principalRepo := InitializeRepositories(db)

	// Capture notifications instead of delivering them
	notifier := &CapturingNotifier{}

	// Initialize services
	segmentService := services.NewSegmentService(segmentRepo, membershipRepo, logger)
	evaluationService := services.NewEvaluationService(segmentRepo, membershipRepo, principalRepo, notifier, logger)
	statsService := services.NewStatsService(segmentRepo, membershipRepo, principalRepo, logger)

	// Initialize handlers
	segmentHandler := handlers.NewSegmentHandler(segmentService, evaluationService, statsService)

	// Setup Chi router with middleware
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Setup routes using production pattern
	routes.RegisterRoutes(r, segmentHandler)

	// Create httptest.Server
	server := httptest.NewServer(r)

	return &TestServer{
		Server:            server,
		DB:                db,
		Notifier:          notifier,
		SegmentService:    segmentService,
		EvaluationService: evaluationService,
		logger:            logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
