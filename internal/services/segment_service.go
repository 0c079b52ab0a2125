package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/robfig/cron/v3"
)

// SegmentRepository defines the interface for segment data access
type SegmentRepository interface {
	Create(ctx context.Context, seg *models.Segment) (*models.Segment, error)
	GetByID(ctx context.Context, id string) (*models.Segment, error)
	List(ctx context.Context) ([]*models.Segment, error)
	Update(ctx context.Context, id string, seg *models.Segment) (*models.Segment, error)
	SoftDelete(ctx context.Context, id string) error
}

// MembershipRepository defines the membership operations used by SegmentService
type MembershipRepository interface {
	AddBatch(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error
	RemoveBatch(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error
	DeleteBySegment(ctx context.Context, segmentID string) error
	SegmentsForPrincipal(ctx context.Context, principalID string) ([]*models.SegmentSummary, error)
	PrincipalIDsInSegments(ctx context.Context, segmentIDs []string) (map[string]struct{}, error)
}

// ScheduleReloader lets the service refresh per-segment cron entries after
// a segment changes.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// CreateSegmentInput carries the fields accepted when creating a segment.
type CreateSegmentInput struct {
	Name        string
	Description *string
	Type        models.SegmentType
	Color       string
	Rules       *models.SegmentRules
	Schedule    *string
}

// UpdateSegmentInput carries a partial update; nil fields are left unchanged.
type UpdateSegmentInput struct {
	Name        *string
	Description *string
	Color       *string
	Rules       *models.SegmentRules
	Schedule    *string
}

// SegmentService handles segment business logic
type SegmentService struct {
	repo        SegmentRepository
	memberships MembershipRepository
	reloader    ScheduleReloader
	logger      *slog.Logger
}

// NewSegmentService creates a new SegmentService
func NewSegmentService(repo SegmentRepository, memberships MembershipRepository, logger *slog.Logger) *SegmentService {
	return &SegmentService{
		repo:        repo,
		memberships: memberships,
		logger:      logger,
	}
}

// SetScheduleReloader wires the cron scheduler once it exists. Optional; a
// nil reloader simply skips schedule refreshes.
func (s *SegmentService) SetScheduleReloader(r ScheduleReloader) {
	s.reloader = r
}

// CreateSegment creates a new segment
func (s *SegmentService) CreateSegment(input CreateSegmentInput) (*models.Segment, error) {
	ctx := context.Background()

	name := strings.TrimSpace(input.Name)
	if name == "" {
		s.logger.Info("rejected segment with empty name")
		return nil, models.ErrBadRequest
	}

	if !input.Type.Valid() {
		return nil, models.ErrBadRequest
	}

	switch input.Type {
	case models.SegmentTypeDynamic:
		if input.Rules == nil || len(input.Rules.Conditions) == 0 {
			return nil, models.ErrRulesRequired
		}
		if err := validateRules(input.Rules); err != nil {
			return nil, err
		}
	case models.SegmentTypeManual:
		// A manual segment never carries rules.
		if input.Rules != nil {
			return nil, models.ErrSegmentTypeMismatch
		}
		if input.Schedule != nil {
			return nil, models.ErrSegmentTypeMismatch
		}
	}

	if err := validateSchedule(input.Schedule); err != nil {
		return nil, err
	}

	color := input.Color
	if color == "" {
		color = models.DefaultSegmentColor
	}

	seg := &models.Segment{
		Name:        name,
		Description: input.Description,
		Type:        input.Type,
		Color:       color,
		Rules:       input.Rules,
		Schedule:    input.Schedule,
	}

	created, err := s.repo.Create(ctx, seg)
	if err != nil {
		s.logger.Error("failed to create segment", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.reloadSchedules(ctx)

	s.logger.Info("segment created",
		slog.String("segment_id", created.ID),
		slog.String("type", string(created.Type)))
	return created, nil
}

// GetSegment retrieves a segment by ID
func (s *SegmentService) GetSegment(id string) (*models.Segment, error) {
	ctx := context.Background()

	seg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("segment not found", slog.String("segment_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get segment", slog.String("segment_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return seg, nil
}

// ListSegments retrieves all live segments with member counts
func (s *SegmentService) ListSegments() ([]*models.Segment, error) {
	ctx := context.Background()

	segments, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list segments", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return segments, nil
}

// UpdateSegment applies a partial update to an existing segment
func (s *SegmentService) UpdateSegment(id string, input UpdateSegmentInput) (*models.Segment, error) {
	ctx := context.Background()

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get segment", slog.String("segment_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, models.ErrBadRequest
		}
		existing.Name = name
	}
	if input.Description != nil {
		existing.Description = input.Description
	}
	if input.Color != nil {
		existing.Color = *input.Color
	}
	if input.Rules != nil {
		if existing.Type != models.SegmentTypeDynamic {
			return nil, models.ErrSegmentTypeMismatch
		}
		if len(input.Rules.Conditions) == 0 {
			return nil, models.ErrRulesRequired
		}
		if err := validateRules(input.Rules); err != nil {
			return nil, err
		}
		existing.Rules = input.Rules
	}
	if input.Schedule != nil {
		if existing.Type != models.SegmentTypeDynamic {
			return nil, models.ErrSegmentTypeMismatch
		}
		// An empty string clears the per-segment schedule.
		if *input.Schedule == "" {
			existing.Schedule = nil
		} else {
			if err := validateSchedule(input.Schedule); err != nil {
				return nil, err
			}
			existing.Schedule = input.Schedule
		}
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		s.logger.Error("failed to update segment", slog.String("segment_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.reloadSchedules(ctx)

	s.logger.Info("segment updated", slog.String("segment_id", id))
	return updated, nil
}

// DeleteSegment soft-deletes a segment and eagerly removes its membership
// rows and any schedule tied to it
func (s *SegmentService) DeleteSegment(id string) error {
	ctx := context.Background()

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete segment", slog.String("segment_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.memberships.DeleteBySegment(ctx, id); err != nil {
		s.logger.Error("failed to remove memberships of deleted segment",
			slog.String("segment_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.reloadSchedules(ctx)

	s.logger.Info("segment deleted", slog.String("segment_id", id))
	return nil
}

// AssignPrincipals adds principals to a manual segment. Assignment is
// idempotent; principals already in the segment are skipped.
func (s *SegmentService) AssignPrincipals(segmentID string, principalIDs []string) error {
	ctx := context.Background()

	seg, err := s.repo.GetByID(ctx, segmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get segment", slog.String("segment_id", segmentID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if seg.Type != models.SegmentTypeManual {
		s.logger.Info("rejected manual assignment on dynamic segment",
			slog.String("segment_id", segmentID))
		return models.ErrSegmentTypeMismatch
	}

	if err := s.memberships.AddBatch(ctx, segmentID, principalIDs, models.MembershipSourceManual); err != nil {
		s.logger.Error("failed to assign principals", slog.String("segment_id", segmentID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("principals assigned",
		slog.String("segment_id", segmentID),
		slog.Int("count", len(principalIDs)))
	return nil
}

// RemovePrincipals removes principals from a manual segment
func (s *SegmentService) RemovePrincipals(segmentID string, principalIDs []string) error {
	ctx := context.Background()

	seg, err := s.repo.GetByID(ctx, segmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get segment", slog.String("segment_id", segmentID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if seg.Type != models.SegmentTypeManual {
		s.logger.Info("rejected manual removal on dynamic segment",
			slog.String("segment_id", segmentID))
		return models.ErrSegmentTypeMismatch
	}

	if err := s.memberships.RemoveBatch(ctx, segmentID, principalIDs, models.MembershipSourceManual); err != nil {
		s.logger.Error("failed to remove principals", slog.String("segment_id", segmentID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("principals removed",
		slog.String("segment_id", segmentID),
		slog.Int("count", len(principalIDs)))
	return nil
}

// GetUserSegments lists the segments a principal belongs to
func (s *SegmentService) GetUserSegments(principalID string) ([]*models.SegmentSummary, error) {
	ctx := context.Background()

	summaries, err := s.memberships.SegmentsForPrincipal(ctx, principalID)
	if err != nil {
		s.logger.Error("failed to get principal segments",
			slog.String("principal_id", principalID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return summaries, nil
}

// GetPrincipalIDsInSegments returns the union of members across segments.
// A nil set means "no filter" (no segment ids were given).
func (s *SegmentService) GetPrincipalIDsInSegments(segmentIDs []string) (map[string]struct{}, error) {
	ctx := context.Background()

	ids, err := s.memberships.PrincipalIDsInSegments(ctx, segmentIDs)
	if err != nil {
		s.logger.Error("failed to get segment members", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return ids, nil
}

func (s *SegmentService) reloadSchedules(ctx context.Context) {
	if s.reloader == nil {
		return
	}
	if err := s.reloader.Reload(ctx); err != nil {
		s.logger.Error("failed to reload segment schedules", slog.Any("error", err))
	}
}

// validateRules checks the structural shape of a rule set. Whether each
// (attribute, operator) pair is actually evaluable is decided later by the
// compiler; unsupported pairs degrade to no-ops instead of failing here.
func validateRules(rules *models.SegmentRules) error {
	if rules.Match != models.RuleMatchAll && rules.Match != models.RuleMatchAny {
		return models.ErrBadRequest
	}

	for _, cond := range rules.Conditions {
		if cond.Attribute == "" || cond.Operator == "" {
			return models.ErrBadRequest
		}
		if cond.Attribute == models.AttrMetadataKey && cond.MetadataKey == "" {
			return models.ErrMetadataKeyRequired
		}
	}

	return nil
}

func validateSchedule(schedule *string) error {
	if schedule == nil || *schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(*schedule); err != nil {
		return models.ErrBadRequest
	}
	return nil
}
