package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/echoboardhq/echoboard-segments/internal/services"
	pkghttp "github.com/echoboardhq/echoboard-segments/pkg/http"
	pkglogger "github.com/echoboardhq/echoboard-segments/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// SegmentService defines the interface for segment business logic
type SegmentService interface {
	CreateSegment(input services.CreateSegmentInput) (*models.Segment, error)
	GetSegment(id string) (*models.Segment, error)
	ListSegments() ([]*models.Segment, error)
	UpdateSegment(id string, input services.UpdateSegmentInput) (*models.Segment, error)
	DeleteSegment(id string) error
	AssignPrincipals(segmentID string, principalIDs []string) error
	RemovePrincipals(segmentID string, principalIDs []string) error
	GetUserSegments(principalID string) ([]*models.SegmentSummary, error)
	GetPrincipalIDsInSegments(segmentIDs []string) (map[string]struct{}, error)
}

// EvaluationService defines the interface for dynamic segment evaluation
type EvaluationService interface {
	EvaluateSegment(ctx context.Context, segmentID string) (*models.EvaluationResult, error)
	EvaluateAllSegments(ctx context.Context) ([]*models.EvaluationResult, error)
}

// StatsService defines the interface for the dashboard stats endpoint
type StatsService interface {
	GetSegmentStats() (*services.SegmentStatsResponse, error)
}

// SegmentHandler handles segment-related HTTP requests
type SegmentHandler struct {
	service    SegmentService
	evaluation EvaluationService
	stats      StatsService
	audit      *pkglogger.AuditLogger
	ipConfig   *pkghttp.IPConfig
}

// NewSegmentHandler creates a new SegmentHandler
func NewSegmentHandler(service SegmentService, evaluation EvaluationService, stats StatsService) *SegmentHandler {
	return &SegmentHandler{
		service:    service,
		evaluation: evaluation,
		stats:      stats,
	}
}

// NewSegmentHandlerWithAudit creates a SegmentHandler that records admin
// actions through the audit logger
func NewSegmentHandlerWithAudit(
	service SegmentService,
	evaluation EvaluationService,
	stats StatsService,
	audit *pkglogger.AuditLogger,
	ipConfig *pkghttp.IPConfig,
) *SegmentHandler {
	h := NewSegmentHandler(service, evaluation, stats)
	h.audit = audit
	h.ipConfig = ipConfig
	return h
}

// logAdminAction records a mutation on the segment surface. No-op when no
// audit logger is wired.
func (h *SegmentHandler) logAdminAction(r *http.Request, eventType, segmentID string, err error) {
	if h.audit == nil {
		return
	}

	event := pkglogger.AuditEvent{
		EventType: eventType,
		SegmentID: segmentID,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		Success:   err == nil,
	}
	if err != nil {
		event.FailureReason = err.Error()
	}

	h.audit.LogSegmentAction(event)
}

// Request/Response DTOs

// RulesPayload is the JSON shape of a dynamic segment's rule set
type RulesPayload struct {
	Match      string             `json:"match" validate:"required,oneof=all any"`
	Conditions []ConditionPayload `json:"conditions" validate:"required"`
}

// ConditionPayload is one rule condition in a request body
type ConditionPayload struct {
	Attribute   string `json:"attribute" validate:"required"`
	Operator    string `json:"operator" validate:"required"`
	Value       any    `json:"value,omitempty"`
	MetadataKey string `json:"metadataKey,omitempty"`
}

// CreateSegmentRequest represents the request body for creating a segment
type CreateSegmentRequest struct {
	Name        string        `json:"name" validate:"required,min=1,max=100"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=500"`
	Type        string        `json:"type" validate:"required,oneof=manual dynamic"`
	Color       string        `json:"color" validate:"omitempty,hexcolor"`
	Rules       *RulesPayload `json:"rules,omitempty"`
	Schedule    *string       `json:"schedule,omitempty"`
}

// UpdateSegmentRequest represents a partial segment update
type UpdateSegmentRequest struct {
	Name        *string       `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=500"`
	Color       *string       `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Rules       *RulesPayload `json:"rules,omitempty"`
	Schedule    *string       `json:"schedule,omitempty"`
}

// MembershipRequest carries the principal ids for manual assign/remove
type MembershipRequest struct {
	PrincipalIDs []string `json:"principal_ids" validate:"required,min=1,dive,uuid"`
}

// SegmentResponse represents a segment in the HTTP response
type SegmentResponse struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	Type        string        `json:"type"`
	Color       string        `json:"color"`
	Rules       *RulesPayload `json:"rules,omitempty"`
	Schedule    *string       `json:"schedule,omitempty"`
	MemberCount int64         `json:"member_count"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

// ListSegmentsResponse represents a list of segments
type ListSegmentsResponse struct {
	Segments []*SegmentResponse `json:"segments"`
	Total    int                `json:"total"`
}

// MembersResponse carries the union of principal ids across segments; the
// list is null when no segment filter was given.
type MembersResponse struct {
	PrincipalIDs []string `json:"principal_ids"`
}

func (p *RulesPayload) toModel() *models.SegmentRules {
	if p == nil {
		return nil
	}
	rules := &models.SegmentRules{
		Match:      models.RuleMatch(p.Match),
		Conditions: make([]models.SegmentCondition, len(p.Conditions)),
	}
	for i, c := range p.Conditions {
		rules.Conditions[i] = models.SegmentCondition{
			Attribute:   models.ConditionAttribute(c.Attribute),
			Operator:    models.ConditionOperator(c.Operator),
			Value:       c.Value,
			MetadataKey: c.MetadataKey,
		}
	}
	return rules
}

func rulesToPayload(rules *models.SegmentRules) *RulesPayload {
	if rules == nil {
		return nil
	}
	payload := &RulesPayload{
		Match:      string(rules.Match),
		Conditions: make([]ConditionPayload, len(rules.Conditions)),
	}
	for i, c := range rules.Conditions {
		payload.Conditions[i] = ConditionPayload{
			Attribute:   string(c.Attribute),
			Operator:    string(c.Operator),
			Value:       c.Value,
			MetadataKey: c.MetadataKey,
		}
	}
	return payload
}

// segmentModelToResponse converts a segment model to a response DTO
func segmentModelToResponse(seg *models.Segment) *SegmentResponse {
	return &SegmentResponse{
		ID:          seg.ID,
		Name:        seg.Name,
		Description: seg.Description,
		Type:        string(seg.Type),
		Color:       seg.Color,
		Rules:       rulesToPayload(seg.Rules),
		Schedule:    seg.Schedule,
		MemberCount: seg.MemberCount,
		CreatedAt:   seg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   seg.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeServiceError maps service-layer sentinel errors to HTTP responses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Segment not found")
	case errors.Is(err, models.ErrSegmentTypeMismatch):
		pkghttp.WriteForbidden(w, err.Error())
	case errors.Is(err, models.ErrRulesRequired), errors.Is(err, models.ErrMetadataKeyRequired):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Segment already exists")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// CreateSegment creates a new segment
//
// @Summary Create a segment
// @Accept json
// @Param request body CreateSegmentRequest true "Create segment request"
// @Produce json
// @Success 201 {object} SegmentResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /segments [post]
func (h *SegmentHandler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var req CreateSegmentRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	seg, err := h.service.CreateSegment(services.CreateSegmentInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        models.SegmentType(req.Type),
		Color:       req.Color,
		Rules:       req.Rules.toModel(),
		Schedule:    req.Schedule,
	})
	if err != nil {
		h.logAdminAction(r, "segment_created", "", err)
		writeServiceError(w, err)
		return
	}
	h.logAdminAction(r, "segment_created", seg.ID, nil)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(segmentModelToResponse(seg))
}

// ListSegments lists all live segments with member counts
//
// @Summary List segments
// @Produce json
// @Success 200 {object} ListSegmentsResponse
// @Router /segments [get]
func (h *SegmentHandler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.service.ListSegments()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := &ListSegmentsResponse{
		Segments: make([]*SegmentResponse, len(segments)),
		Total:    len(segments),
	}
	for i, seg := range segments {
		response.Segments[i] = segmentModelToResponse(seg)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetSegment retrieves a segment by ID
//
// @Summary Get segment by ID
// @Param id path string true "Segment ID"
// @Produce json
// @Success 200 {object} SegmentResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /segments/{id} [get]
func (h *SegmentHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "id")
	if segmentID == "" {
		pkghttp.WriteBadRequest(w, "Segment ID is required")
		return
	}

	seg, err := h.service.GetSegment(segmentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(segmentModelToResponse(seg))
}

// UpdateSegment applies a partial update to a segment
//
// @Summary Update a segment
// @Param id path string true "Segment ID"
// @Accept json
// @Param request body UpdateSegmentRequest true "Update segment request"
// @Produce json
// @Success 200 {object} SegmentResponse
// @Router /segments/{id} [patch]
func (h *SegmentHandler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "id")

	var req UpdateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	seg, err := h.service.UpdateSegment(segmentID, services.UpdateSegmentInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Rules:       req.Rules.toModel(),
		Schedule:    req.Schedule,
	})
	if err != nil {
		h.logAdminAction(r, "segment_updated", segmentID, err)
		writeServiceError(w, err)
		return
	}
	h.logAdminAction(r, "segment_updated", segmentID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(segmentModelToResponse(seg))
}

// DeleteSegment soft-deletes a segment and removes its memberships
//
// @Summary Delete a segment
// @Param id path string true "Segment ID"
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /segments/{id} [delete]
func (h *SegmentHandler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "id")

	if err := h.service.DeleteSegment(segmentID); err != nil {
		h.logAdminAction(r, "segment_deleted", segmentID, err)
		writeServiceError(w, err)
		return
	}
	h.logAdminAction(r, "segment_deleted", segmentID, nil)

	w.WriteHeader(http.StatusNoContent)
}

// AssignMembers adds principals to a manual segment
//
// @Summary Assign principals to a segment
// @Param id path string true "Segment ID"
// @Accept json
// @Param request body MembershipRequest true "Principal ids"
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /segments/{id}/members [post]
func (h *SegmentHandler) AssignMembers(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "id")

	var req MembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.AssignPrincipals(segmentID, req.PrincipalIDs); err != nil {
		h.logAdminAction(r, "members_assigned", segmentID, err)
		writeServiceError(w, err)
		return
	}
	h.logAdminAction(r, "members_assigned", segmentID, nil)

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMembers removes principals from a manual segment
//
// @Summary Remove principals from a segment
// @Param id path string true "Segment ID"
// @Accept json
// @Param request body MembershipRequest true "Principal ids"
// @Success 204
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /segments/{id}/members [delete]
func (h *SegmentHandler) RemoveMembers(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "id")

	var req MembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RemovePrincipals(segmentID, req.PrincipalIDs); err != nil {
		h.logAdminAction(r, "members_removed", segmentID, err)
		writeServiceError(w, err)
		return
	}
	h.logAdminAction(r, "members_removed", segmentID, nil)

	w.WriteHeader(http.StatusNoContent)
}

// EvaluateSegment reconciles one dynamic segment on demand
//
// @Summary Evaluate a dynamic segment
// @Param id path string true "Segment ID"
// @Produce json
// @Success 200 {object} models.EvaluationResult
// @Failure 403 {object} pkghttp.ErrorResponse
// @Router /segments/{id}/evaluate [post]
func (h *SegmentHandler) EvaluateSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := chi.URLParam(r, "id")

	result, err := h.evaluation.EvaluateSegment(r.Context(), segmentID)
	if err != nil {
		h.logAdminAction(r, "evaluation_triggered", segmentID, err)
		writeServiceError(w, err)
		return
	}
	h.logAdminAction(r, "evaluation_triggered", segmentID, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// EvaluateAllSegments reconciles every dynamic segment
//
// @Summary Evaluate all dynamic segments
// @Produce json
// @Success 200 {array} models.EvaluationResult
// @Router /segments/evaluate [post]
func (h *SegmentHandler) EvaluateAllSegments(w http.ResponseWriter, r *http.Request) {
	results, err := h.evaluation.EvaluateAllSegments(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// GetSegmentMembers returns the union of members across the segments named
// in the segment_ids query parameter
//
// @Summary Get principal ids across segments
// @Param segment_ids query string false "Comma-separated segment ids"
// @Produce json
// @Success 200 {object} MembersResponse
// @Router /segments/members [get]
func (h *SegmentHandler) GetSegmentMembers(w http.ResponseWriter, r *http.Request) {
	var segmentIDs []string
	if raw := r.URL.Query().Get("segment_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				segmentIDs = append(segmentIDs, id)
			}
		}
	}

	ids, err := h.service.GetPrincipalIDsInSegments(segmentIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := MembersResponse{}
	if ids != nil {
		response.PrincipalIDs = make([]string, 0, len(ids))
		for id := range ids {
			response.PrincipalIDs = append(response.PrincipalIDs, id)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetPrincipalSegments lists the segments a principal belongs to
//
// @Summary Get a principal's segments
// @Param id path string true "Principal ID"
// @Produce json
// @Success 200 {array} models.SegmentSummary
// @Router /principals/{id}/segments [get]
func (h *SegmentHandler) GetPrincipalSegments(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "id")
	if principalID == "" {
		pkghttp.WriteBadRequest(w, "Principal ID is required")
		return
	}

	summaries, err := h.service.GetUserSegments(principalID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// GetStats returns aggregate segmentation metrics
//
// @Summary Segment dashboard stats
// @Produce json
// @Success 200 {object} services.SegmentStatsResponse
// @Router /segments/stats [get]
func (h *SegmentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetSegmentStats()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
