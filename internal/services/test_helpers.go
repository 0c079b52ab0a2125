package services

import (
	"context"
	"sync"
	"time"

	"github.com/echoboardhq/echoboard-segments/internal/models"
)

// NewTestSegment builds a segment for tests
func NewTestSegment(id, name string, segType models.SegmentType) *models.Segment {
	now := time.Now()
	return &models.Segment{
		ID:        id,
		Name:      name,
		Type:      segType,
		Color:     models.DefaultSegmentColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MockSegmentRepository implements the segment repository interfaces for testing
type MockSegmentRepository struct {
	CreateFunc      func(ctx context.Context, seg *models.Segment) (*models.Segment, error)
	GetByIDFunc     func(ctx context.Context, id string) (*models.Segment, error)
	ListFunc        func(ctx context.Context) ([]*models.Segment, error)
	ListDynamicFunc func(ctx context.Context) ([]*models.Segment, error)
	UpdateFunc      func(ctx context.Context, id string, seg *models.Segment) (*models.Segment, error)
	SoftDeleteFunc  func(ctx context.Context, id string) error
	CountByTypeFunc func(ctx context.Context, segType models.SegmentType) (int64, error)
}

func (m *MockSegmentRepository) Create(ctx context.Context, seg *models.Segment) (*models.Segment, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, seg)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSegmentRepository) GetByID(ctx context.Context, id string) (*models.Segment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSegmentRepository) List(ctx context.Context) ([]*models.Segment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Segment{}, nil
}

func (m *MockSegmentRepository) ListDynamic(ctx context.Context) ([]*models.Segment, error) {
	if m.ListDynamicFunc != nil {
		return m.ListDynamicFunc(ctx)
	}
	return []*models.Segment{}, nil
}

func (m *MockSegmentRepository) Update(ctx context.Context, id string, seg *models.Segment) (*models.Segment, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, seg)
	}
	return nil, models.ErrInternalServer
}

func (m *MockSegmentRepository) SoftDelete(ctx context.Context, id string) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockSegmentRepository) CountByType(ctx context.Context, segType models.SegmentType) (int64, error) {
	if m.CountByTypeFunc != nil {
		return m.CountByTypeFunc(ctx, segType)
	}
	return 0, nil
}

// MockMembershipRepository implements the membership repository interfaces for testing
type MockMembershipRepository struct {
	AddBatchFunc               func(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error
	RemoveBatchFunc            func(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error
	DeleteBySegmentFunc        func(ctx context.Context, segmentID string) error
	SegmentsForPrincipalFunc   func(ctx context.Context, principalID string) ([]*models.SegmentSummary, error)
	PrincipalIDsInSegmentsFunc func(ctx context.Context, segmentIDs []string) (map[string]struct{}, error)
	DynamicMemberIDsFunc       func(ctx context.Context, segmentID string) ([]string, error)
	ApplyDiffFunc              func(ctx context.Context, segmentID string, toAdd, toRemove []string) error
	CountBySourceFunc          func(ctx context.Context, source models.MembershipSource) (int64, error)
}

func (m *MockMembershipRepository) AddBatch(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error {
	if m.AddBatchFunc != nil {
		return m.AddBatchFunc(ctx, segmentID, principalIDs, source)
	}
	return nil
}

func (m *MockMembershipRepository) RemoveBatch(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error {
	if m.RemoveBatchFunc != nil {
		return m.RemoveBatchFunc(ctx, segmentID, principalIDs, source)
	}
	return nil
}

func (m *MockMembershipRepository) DeleteBySegment(ctx context.Context, segmentID string) error {
	if m.DeleteBySegmentFunc != nil {
		return m.DeleteBySegmentFunc(ctx, segmentID)
	}
	return nil
}

func (m *MockMembershipRepository) SegmentsForPrincipal(ctx context.Context, principalID string) ([]*models.SegmentSummary, error) {
	if m.SegmentsForPrincipalFunc != nil {
		return m.SegmentsForPrincipalFunc(ctx, principalID)
	}
	return []*models.SegmentSummary{}, nil
}

func (m *MockMembershipRepository) PrincipalIDsInSegments(ctx context.Context, segmentIDs []string) (map[string]struct{}, error) {
	if m.PrincipalIDsInSegmentsFunc != nil {
		return m.PrincipalIDsInSegmentsFunc(ctx, segmentIDs)
	}
	return nil, nil
}

func (m *MockMembershipRepository) DynamicMemberIDs(ctx context.Context, segmentID string) ([]string, error) {
	if m.DynamicMemberIDsFunc != nil {
		return m.DynamicMemberIDsFunc(ctx, segmentID)
	}
	return []string{}, nil
}

func (m *MockMembershipRepository) ApplyDiff(ctx context.Context, segmentID string, toAdd, toRemove []string) error {
	if m.ApplyDiffFunc != nil {
		return m.ApplyDiffFunc(ctx, segmentID, toAdd, toRemove)
	}
	return nil
}

func (m *MockMembershipRepository) CountBySource(ctx context.Context, source models.MembershipSource) (int64, error) {
	if m.CountBySourceFunc != nil {
		return m.CountBySourceFunc(ctx, source)
	}
	return 0, nil
}

// MockRuleEvaluator implements RuleEvaluator for testing
type MockRuleEvaluator struct {
	EvaluateRulesFunc func(ctx context.Context, rules *models.SegmentRules) ([]string, error)
}

func (m *MockRuleEvaluator) EvaluateRules(ctx context.Context, rules *models.SegmentRules) ([]string, error) {
	if m.EvaluateRulesFunc != nil {
		return m.EvaluateRulesFunc(ctx, rules)
	}
	return []string{}, nil
}

// RecordingNotifier captures notification calls for assertions
type RecordingNotifier struct {
	mu    sync.Mutex
	Calls []NotifierCall
	Err   error
}

type NotifierCall struct {
	SegmentName string
	AddedIDs    []string
	RemovedIDs  []string
}

func (n *RecordingNotifier) Notify(ctx context.Context, segmentName string, addedIDs, removedIDs []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Calls = append(n.Calls, NotifierCall{
		SegmentName: segmentName,
		AddedIDs:    addedIDs,
		RemovedIDs:  removedIDs,
	})
	return n.Err
}

func (n *RecordingNotifier) CallCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Calls)
}
