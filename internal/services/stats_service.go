package services

import (
	"context"
	"log/slog"

	"github.com/echoboardhq/echoboard-segments/internal/models"
)

// StatsSegmentRepository is the subset of SegmentRepository methods needed by StatsService.
type StatsSegmentRepository interface {
	CountByType(ctx context.Context, segType models.SegmentType) (int64, error)
}

// StatsMembershipRepository is the subset of MembershipRepository methods needed by StatsService.
type StatsMembershipRepository interface {
	CountBySource(ctx context.Context, source models.MembershipSource) (int64, error)
}

// StatsPrincipalRepository is the subset of PrincipalRepository methods needed by StatsService.
type StatsPrincipalRepository interface {
	CountEvaluable(ctx context.Context) (int64, error)
}

// SegmentStatsResponse contains aggregate segmentation metrics for the admin
// dashboard.
type SegmentStatsResponse struct {
	TotalSegments       int64 `json:"total_segments"`
	ManualSegments      int64 `json:"manual_segments"`
	DynamicSegments     int64 `json:"dynamic_segments"`
	ManualMemberships   int64 `json:"manual_memberships"`
	DynamicMemberships  int64 `json:"dynamic_memberships"`
	EvaluablePrincipals int64 `json:"evaluable_principals"`
}

// StatsService aggregates data for the segment dashboard endpoint.
type StatsService struct {
	segmentRepo    StatsSegmentRepository
	membershipRepo StatsMembershipRepository
	principalRepo  StatsPrincipalRepository
	logger         *slog.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(
	segmentRepo StatsSegmentRepository,
	membershipRepo StatsMembershipRepository,
	principalRepo StatsPrincipalRepository,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		segmentRepo:    segmentRepo,
		membershipRepo: membershipRepo,
		principalRepo:  principalRepo,
		logger:         logger,
	}
}

// GetSegmentStats returns aggregate segment and membership counts.
func (s *StatsService) GetSegmentStats() (*SegmentStatsResponse, error) {
	ctx := context.Background()

	manual, err := s.segmentRepo.CountByType(ctx, models.SegmentTypeManual)
	if err != nil {
		s.logger.Error("stats: failed to count manual segments", slog.Any("error", err))
		return nil, err
	}

	dynamic, err := s.segmentRepo.CountByType(ctx, models.SegmentTypeDynamic)
	if err != nil {
		s.logger.Error("stats: failed to count dynamic segments", slog.Any("error", err))
		return nil, err
	}

	manualMembers, err := s.membershipRepo.CountBySource(ctx, models.MembershipSourceManual)
	if err != nil {
		s.logger.Error("stats: failed to count manual memberships", slog.Any("error", err))
		return nil, err
	}

	dynamicMembers, err := s.membershipRepo.CountBySource(ctx, models.MembershipSourceDynamic)
	if err != nil {
		s.logger.Error("stats: failed to count dynamic memberships", slog.Any("error", err))
		return nil, err
	}

	principals, err := s.principalRepo.CountEvaluable(ctx)
	if err != nil {
		s.logger.Error("stats: failed to count principals", slog.Any("error", err))
		return nil, err
	}

	return &SegmentStatsResponse{
		TotalSegments:       manual + dynamic,
		ManualSegments:      manual,
		DynamicSegments:     dynamic,
		ManualMemberships:   manualMembers,
		DynamicMemberships:  dynamicMembers,
		EvaluablePrincipals: principals,
	}, nil
}
