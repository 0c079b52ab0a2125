package models

import (
	"time"
)

// DefaultSegmentColor is the neutral gray applied when a segment is created
// without an explicit color.
const DefaultSegmentColor = "#6b7280"

// SegmentType distinguishes admin-curated segments from rule-driven ones.
type SegmentType string

const (
	SegmentTypeManual  SegmentType = "manual"
	SegmentTypeDynamic SegmentType = "dynamic"
)

func (t SegmentType) Valid() bool {
	return t == SegmentTypeManual || t == SegmentTypeDynamic
}

// MembershipSource records how a principal ended up in a segment. Dynamic
// reconciliation only ever touches rows it created itself.
type MembershipSource string

const (
	MembershipSourceManual  MembershipSource = "manual"
	MembershipSourceDynamic MembershipSource = "dynamic"
)

// RuleMatch is the combinator for a rule set: all = AND, any = OR.
type RuleMatch string

const (
	RuleMatchAll RuleMatch = "all"
	RuleMatchAny RuleMatch = "any"
)

// ConditionAttribute enumerates the principal attributes a rule condition
// can test.
type ConditionAttribute string

const (
	AttrEmailDomain      ConditionAttribute = "email_domain"
	AttrEmailVerified    ConditionAttribute = "email_verified"
	AttrPlan             ConditionAttribute = "plan"
	AttrMetadataKey      ConditionAttribute = "metadata_key"
	AttrCreatedAtDaysAgo ConditionAttribute = "created_at_days_ago"
	AttrPostCount        ConditionAttribute = "post_count"
	AttrVoteCount        ConditionAttribute = "vote_count"
	AttrCommentCount     ConditionAttribute = "comment_count"
)

// ConditionOperator enumerates the comparison operators.
type ConditionOperator string

const (
	OpEq         ConditionOperator = "eq"
	OpNeq        ConditionOperator = "neq"
	OpLt         ConditionOperator = "lt"
	OpLte        ConditionOperator = "lte"
	OpGt         ConditionOperator = "gt"
	OpGte        ConditionOperator = "gte"
	OpContains   ConditionOperator = "contains"
	OpStartsWith ConditionOperator = "starts_with"
	OpEndsWith   ConditionOperator = "ends_with"
	OpIn         ConditionOperator = "in"
	OpIsSet      ConditionOperator = "is_set"
	OpIsNotSet   ConditionOperator = "is_not_set"
)

// SegmentCondition is one predicate over a principal's derived attributes.
// Value may be a string, number, bool, or array depending on the operator.
// MetadataKey is only meaningful when Attribute is metadata_key.
type SegmentCondition struct {
	Attribute   ConditionAttribute `json:"attribute"`
	Operator    ConditionOperator  `json:"operator"`
	Value       any                `json:"value,omitempty"`
	MetadataKey string             `json:"metadataKey,omitempty"`
}

// SegmentRules is the declarative membership rule set of a dynamic segment.
// An empty Conditions list resolves to no matches, never to everyone.
type SegmentRules struct {
	Match      RuleMatch          `json:"match"`
	Conditions []SegmentCondition `json:"conditions"`
}

// Segment is a named grouping of principals.
type Segment struct {
	ID          string
	Name        string
	Description *string
	Type        SegmentType
	Color       string
	Rules       *SegmentRules // nil unless Type is dynamic
	Schedule    *string       // optional cron expression for per-segment evaluation
	MemberCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// SegmentMembership is an edge between a principal and a segment.
type SegmentMembership struct {
	PrincipalID string
	SegmentID   string
	AddedBy     MembershipSource
	CreatedAt   time.Time
}

// SegmentSummary is the compact shape returned when listing the segments a
// principal belongs to.
type SegmentSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

// EvaluationResult reports the membership churn of one reconciliation run.
type EvaluationResult struct {
	SegmentID string `json:"segment_id"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
}
