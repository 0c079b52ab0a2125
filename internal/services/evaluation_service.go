package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/echoboardhq/echoboard-segments/internal/models"
)

// EvaluationSegmentRepository is the subset of segment data access needed by
// the evaluator.
type EvaluationSegmentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Segment, error)
	ListDynamic(ctx context.Context) ([]*models.Segment, error)
}

// EvaluationMembershipRepository is the membership access needed for
// reconciliation.
type EvaluationMembershipRepository interface {
	DynamicMemberIDs(ctx context.Context, segmentID string) ([]string, error)
	ApplyDiff(ctx context.Context, segmentID string, toAdd, toRemove []string) error
}

// RuleEvaluator executes a compiled rule set against the principal
// population.
type RuleEvaluator interface {
	EvaluateRules(ctx context.Context, rules *models.SegmentRules) ([]string, error)
}

const notifyTimeout = 30 * time.Second

// EvaluationService recomputes dynamic segment membership: it evaluates a
// segment's rules, diffs the result against the materialized membership, and
// applies the minimal insert/delete sets in one transaction.
type EvaluationService struct {
	segments    EvaluationSegmentRepository
	memberships EvaluationMembershipRepository
	evaluator   RuleEvaluator
	notifier    Notifier
	logger      *slog.Logger

	notifyWG sync.WaitGroup
}

// NewEvaluationService creates a new EvaluationService
func NewEvaluationService(
	segments EvaluationSegmentRepository,
	memberships EvaluationMembershipRepository,
	evaluator RuleEvaluator,
	notifier Notifier,
	logger *slog.Logger,
) *EvaluationService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &EvaluationService{
		segments:    segments,
		memberships: memberships,
		evaluator:   evaluator,
		notifier:    notifier,
		logger:      logger,
	}
}

// EvaluateSegment reconciles one dynamic segment and reports the churn.
func (s *EvaluationService) EvaluateSegment(ctx context.Context, segmentID string) (*models.EvaluationResult, error) {
	seg, err := s.segments.GetByID(ctx, segmentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load segment for evaluation",
			slog.String("segment_id", segmentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if seg.Type != models.SegmentTypeDynamic {
		return nil, models.ErrSegmentTypeMismatch
	}

	return s.reconcile(ctx, seg)
}

// EvaluateAllSegments reconciles every live dynamic segment sequentially.
// A failing segment is logged and skipped so the rest of the batch still
// runs; completed reconciliations are not rolled back.
func (s *EvaluationService) EvaluateAllSegments(ctx context.Context) ([]*models.EvaluationResult, error) {
	segments, err := s.segments.ListDynamic(ctx)
	if err != nil {
		s.logger.Error("failed to list dynamic segments", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	results := make([]*models.EvaluationResult, 0, len(segments))
	for _, seg := range segments {
		result, err := s.reconcile(ctx, seg)
		if err != nil {
			s.logger.Error("segment evaluation failed",
				slog.String("segment_id", seg.ID), slog.Any("error", err))
			continue
		}
		results = append(results, result)
	}

	return results, nil
}

// reconcile converges the persisted dynamic membership of one segment to a
// fresh evaluation result. The evaluation read and the diff write are not a
// single transaction; only the write is atomic. The window in between is an
// accepted race: inserts tolerate duplicates and dynamic writes never touch
// manually-added rows.
func (s *EvaluationService) reconcile(ctx context.Context, seg *models.Segment) (*models.EvaluationResult, error) {
	current, err := s.memberships.DynamicMemberIDs(ctx, seg.ID)
	if err != nil {
		return nil, err
	}

	// A dynamic segment without usable rules is empty by definition; the
	// evaluator returns no matches and the diff clears everything.
	matching, err := s.evaluator.EvaluateRules(ctx, seg.Rules)
	if err != nil {
		return nil, err
	}

	toAdd, toRemove := diffMembership(current, matching)

	if err := s.memberships.ApplyDiff(ctx, seg.ID, toAdd, toRemove); err != nil {
		return nil, err
	}

	if len(toAdd) > 0 || len(toRemove) > 0 {
		s.dispatchNotification(seg.Name, toAdd, toRemove)
		s.logger.Info("segment reconciled",
			slog.String("segment_id", seg.ID),
			slog.Int("added", len(toAdd)),
			slog.Int("removed", len(toRemove)))
	}

	return &models.EvaluationResult{
		SegmentID: seg.ID,
		Added:     len(toAdd),
		Removed:   len(toRemove),
	}, nil
}

// diffMembership computes the minimal insert and delete sets that turn
// current into matching. Results are sorted so notifications are stable.
func diffMembership(current, matching []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	matchingSet := make(map[string]struct{}, len(matching))
	for _, id := range matching {
		matchingSet[id] = struct{}{}
	}

	toAdd = make([]string, 0)
	for id := range matchingSet {
		if _, ok := currentSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}

	toRemove = make([]string, 0)
	for id := range currentSet {
		if _, ok := matchingSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}

	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

// Drain blocks until all in-flight notification deliveries have finished.
// Called during shutdown so committed churn is not silently dropped.
func (s *EvaluationService) Drain() {
	s.notifyWG.Wait()
}

// dispatchNotification fires the churn notification in a detached goroutine.
// Membership state is already committed; a delivery failure is logged and
// never propagated to or retried for the caller.
func (s *EvaluationService) dispatchNotification(segmentName string, added, removed []string) {
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, segmentName, added, removed); err != nil {
			s.logger.Error("segment notification failed",
				slog.String("segment", segmentName), slog.Any("error", err))
		}
	}()
}
