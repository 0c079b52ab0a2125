package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enterpriseRules() *models.SegmentRules {
	return &models.SegmentRules{
		Match: models.RuleMatchAll,
		Conditions: []models.SegmentCondition{
			{Attribute: models.AttrPlan, Operator: models.OpEq, Value: "enterprise"},
		},
	}
}

func TestSegmentService_CreateSegment_Dynamic(t *testing.T) {
	mockRepo := &MockSegmentRepository{
		CreateFunc: func(ctx context.Context, seg *models.Segment) (*models.Segment, error) {
			seg.ID = "seg1"
			return seg, nil
		},
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	created, err := svc.CreateSegment(CreateSegmentInput{
		Name:  "Enterprise",
		Type:  models.SegmentTypeDynamic,
		Rules: enterpriseRules(),
	})

	require.NoError(t, err)
	assert.Equal(t, "seg1", created.ID)
	assert.Equal(t, models.SegmentTypeDynamic, created.Type)
}

func TestSegmentService_CreateSegment_EmptyName(t *testing.T) {
	svc := NewSegmentService(&MockSegmentRepository{}, &MockMembershipRepository{}, slog.Default())

	_, err := svc.CreateSegment(CreateSegmentInput{
		Name: "   ",
		Type: models.SegmentTypeManual,
	})

	assert.Equal(t, models.ErrBadRequest, err)
}

func TestSegmentService_CreateSegment_TrimsName(t *testing.T) {
	mockRepo := &MockSegmentRepository{
		CreateFunc: func(ctx context.Context, seg *models.Segment) (*models.Segment, error) {
			return seg, nil
		},
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	created, err := svc.CreateSegment(CreateSegmentInput{
		Name: "  VIP Customers  ",
		Type: models.SegmentTypeManual,
	})

	require.NoError(t, err)
	assert.Equal(t, "VIP Customers", created.Name)
}

func TestSegmentService_CreateSegment_DefaultsColor(t *testing.T) {
	mockRepo := &MockSegmentRepository{
		CreateFunc: func(ctx context.Context, seg *models.Segment) (*models.Segment, error) {
			return seg, nil
		},
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	created, err := svc.CreateSegment(CreateSegmentInput{
		Name: "VIP",
		Type: models.SegmentTypeManual,
	})

	require.NoError(t, err)
	assert.Equal(t, models.DefaultSegmentColor, created.Color)
}

func TestSegmentService_CreateSegment_DynamicWithoutRules(t *testing.T) {
	svc := NewSegmentService(&MockSegmentRepository{}, &MockMembershipRepository{}, slog.Default())

	_, err := svc.CreateSegment(CreateSegmentInput{
		Name: "Enterprise",
		Type: models.SegmentTypeDynamic,
	})
	assert.Equal(t, models.ErrRulesRequired, err)

	_, err = svc.CreateSegment(CreateSegmentInput{
		Name:  "Enterprise",
		Type:  models.SegmentTypeDynamic,
		Rules: &models.SegmentRules{Match: models.RuleMatchAll, Conditions: []models.SegmentCondition{}},
	})
	assert.Equal(t, models.ErrRulesRequired, err)
}

func TestSegmentService_CreateSegment_ManualWithRules(t *testing.T) {
	svc := NewSegmentService(&MockSegmentRepository{}, &MockMembershipRepository{}, slog.Default())

	_, err := svc.CreateSegment(CreateSegmentInput{
		Name:  "VIP",
		Type:  models.SegmentTypeManual,
		Rules: enterpriseRules(),
	})

	assert.Equal(t, models.ErrSegmentTypeMismatch, err)
}

func TestSegmentService_CreateSegment_MissingMetadataKey(t *testing.T) {
	svc := NewSegmentService(&MockSegmentRepository{}, &MockMembershipRepository{}, slog.Default())

	_, err := svc.CreateSegment(CreateSegmentInput{
		Name: "Gold tier",
		Type: models.SegmentTypeDynamic,
		Rules: &models.SegmentRules{
			Match: models.RuleMatchAll,
			Conditions: []models.SegmentCondition{
				{Attribute: models.AttrMetadataKey, Operator: models.OpEq, Value: "gold"},
			},
		},
	})

	assert.Equal(t, models.ErrMetadataKeyRequired, err)
}

func TestSegmentService_CreateSegment_InvalidSchedule(t *testing.T) {
	svc := NewSegmentService(&MockSegmentRepository{}, &MockMembershipRepository{}, slog.Default())

	badSchedule := "every five minutes"
	_, err := svc.CreateSegment(CreateSegmentInput{
		Name:     "Enterprise",
		Type:     models.SegmentTypeDynamic,
		Rules:    enterpriseRules(),
		Schedule: &badSchedule,
	})

	assert.Equal(t, models.ErrBadRequest, err)
}

func TestSegmentService_UpdateSegment_PartialMerge(t *testing.T) {
	existing := NewTestSegment("seg1", "Enterprise", models.SegmentTypeDynamic)
	existing.Rules = enterpriseRules()

	var saved *models.Segment
	mockRepo := &MockSegmentRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Segment, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id string, seg *models.Segment) (*models.Segment, error) {
			saved = seg
			return seg, nil
		},
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	newName := "Enterprise accounts"
	_, err := svc.UpdateSegment("seg1", UpdateSegmentInput{Name: &newName})

	require.NoError(t, err)
	assert.Equal(t, "Enterprise accounts", saved.Name)
	assert.NotNil(t, saved.Rules, "untouched fields must survive the merge")
}

func TestSegmentService_UpdateSegment_RulesOnManualSegment(t *testing.T) {
	mockRepo := &MockSegmentRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Segment, error) {
			return NewTestSegment("seg1", "VIP", models.SegmentTypeManual), nil
		},
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	_, err := svc.UpdateSegment("seg1", UpdateSegmentInput{Rules: enterpriseRules()})

	assert.Equal(t, models.ErrSegmentTypeMismatch, err)
}

func TestSegmentService_DeleteSegment_CascadesMemberships(t *testing.T) {
	deletedSegment := ""
	mockMemberships := &MockMembershipRepository{
		DeleteBySegmentFunc: func(ctx context.Context, segmentID string) error {
			deletedSegment = segmentID
			return nil
		},
	}
	mockRepo := &MockSegmentRepository{
		SoftDeleteFunc: func(ctx context.Context, id string) error { return nil },
	}

	svc := NewSegmentService(mockRepo, mockMemberships, slog.Default())

	err := svc.DeleteSegment("seg1")

	require.NoError(t, err)
	assert.Equal(t, "seg1", deletedSegment)
}

func TestSegmentService_DeleteSegment_NotFound(t *testing.T) {
	mockRepo := &MockSegmentRepository{
		SoftDeleteFunc: func(ctx context.Context, id string) error { return models.ErrNotFound },
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	assert.Equal(t, models.ErrNotFound, svc.DeleteSegment("missing"))
}

func TestSegmentService_AssignPrincipals_DynamicRejected(t *testing.T) {
	addCalled := false
	mockMemberships := &MockMembershipRepository{
		AddBatchFunc: func(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error {
			addCalled = true
			return nil
		},
	}
	mockRepo := &MockSegmentRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Segment, error) {
			return NewTestSegment("seg1", "Enterprise", models.SegmentTypeDynamic), nil
		},
	}

	svc := NewSegmentService(mockRepo, mockMemberships, slog.Default())

	err := svc.AssignPrincipals("seg1", []string{"p1"})

	assert.Equal(t, models.ErrSegmentTypeMismatch, err)
	assert.False(t, addCalled, "membership must not be mutated on type mismatch")
}

func TestSegmentService_AssignPrincipals_Manual(t *testing.T) {
	var gotSource models.MembershipSource
	mockMemberships := &MockMembershipRepository{
		AddBatchFunc: func(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error {
			gotSource = source
			return nil
		},
	}
	mockRepo := &MockSegmentRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Segment, error) {
			return NewTestSegment("seg1", "VIP", models.SegmentTypeManual), nil
		},
	}

	svc := NewSegmentService(mockRepo, mockMemberships, slog.Default())

	require.NoError(t, svc.AssignPrincipals("seg1", []string{"p1", "p2"}))
	assert.Equal(t, models.MembershipSourceManual, gotSource)
}

func TestSegmentService_RemovePrincipals_DynamicRejected(t *testing.T) {
	mockRepo := &MockSegmentRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Segment, error) {
			return NewTestSegment("seg1", "Enterprise", models.SegmentTypeDynamic), nil
		},
	}

	svc := NewSegmentService(mockRepo, &MockMembershipRepository{}, slog.Default())

	assert.Equal(t, models.ErrSegmentTypeMismatch, svc.RemovePrincipals("seg1", []string{"p1"}))
}

func TestSegmentService_GetPrincipalIDsInSegments_NoFilter(t *testing.T) {
	svc := NewSegmentService(&MockSegmentRepository{}, &MockMembershipRepository{}, slog.Default())

	ids, err := svc.GetPrincipalIDsInSegments(nil)

	require.NoError(t, err)
	assert.Nil(t, ids, "empty segment list means no filter, not empty set")
}
