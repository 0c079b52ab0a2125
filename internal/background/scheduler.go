package background

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/echoboardhq/echoboard-segments/internal/services"
	pkglogger "github.com/echoboardhq/echoboard-segments/pkg/logger"
)

// SchedulerSegmentRepository lists segments carrying their own cron schedule
type SchedulerSegmentRepository interface {
	ListScheduled(ctx context.Context) ([]*models.Segment, error)
}

// SchedulerEvaluationService runs segment evaluations on cron triggers
type SchedulerEvaluationService interface {
	EvaluateSegment(ctx context.Context, segmentID string) (*models.EvaluationResult, error)
	EvaluateAllSegments(ctx context.Context) ([]*models.EvaluationResult, error)
}

// Scheduler manages cron-based segment evaluation. Every dynamic segment is
// covered by the default schedule; segments with their own cron expression
// get an additional dedicated entry.
type Scheduler struct {
	cron        *cron.Cron
	evaluations SchedulerEvaluationService
	segments    SchedulerSegmentRepository
	logger      *slog.Logger
	audit       *pkglogger.AuditLogger
	defaultSpec string
	mu          sync.Mutex
	entries     map[string]cron.EntryID // segment ID → cron entry
}

// NewScheduler creates a new evaluation scheduler. defaultSpec is the cron
// expression for the all-segments sweep.
func NewScheduler(
	evaluations SchedulerEvaluationService,
	segments SchedulerSegmentRepository,
	logger *slog.Logger,
	defaultSpec string,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		evaluations: evaluations,
		segments:    segments,
		logger:      logger,
		audit:       pkglogger.NewAuditLogger(logger),
		defaultSpec: defaultSpec,
		entries:     make(map[string]cron.EntryID),
	}
}

// Start registers the default sweep, loads per-segment schedules, and starts cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.defaultSpec, s.runSweep); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.loadSchedules(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("evaluation scheduler started", slog.String("default_schedule", s.defaultSpec))
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("evaluation scheduler stopped")
}

// Reload clears per-segment cron entries and reloads them from the database.
// The default sweep entry is left in place.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)

	return s.loadSchedules(ctx)
}

func (s *Scheduler) runSweep() {
	results, err := s.evaluations.EvaluateAllSegments(context.Background())
	if err != nil {
		s.audit.LogEvaluationRun(0, 0, 0, err)
		return
	}

	var added, removed int
	for _, res := range results {
		added += res.Added
		removed += res.Removed
	}
	s.audit.LogEvaluationRun(len(results), added, removed, nil)
}

// loadSchedules queries for segments with a dedicated cron expression and adds
// them to cron. Callers must hold s.mu.
func (s *Scheduler) loadSchedules(ctx context.Context) error {
	segments, err := s.segments.ListScheduled(ctx)
	if err != nil {
		return err
	}

	for _, seg := range segments {
		if seg.Schedule == nil {
			continue
		}
		schedule := *seg.Schedule
		segmentID := seg.ID
		segmentName := seg.Name

		entryID, err := s.cron.AddFunc(schedule, func() {
			_, evalErr := s.evaluations.EvaluateSegment(context.Background(), segmentID)
			if evalErr != nil {
				s.logger.Warn("scheduled evaluation failed",
					slog.String("segment_name", segmentName),
					slog.Any("error", evalErr),
				)
			}
		})
		if err != nil {
			s.logger.Warn("invalid cron schedule",
				slog.String("segment_name", segmentName),
				slog.String("schedule", schedule),
				slog.Any("error", err),
			)
			continue
		}

		s.entries[segmentID] = entryID
		s.logger.Info("scheduled segment evaluation",
			slog.String("segment_name", segmentName),
			slog.String("schedule", schedule),
		)
	}

	return nil
}

var _ services.ScheduleReloader = (*Scheduler)(nil)
