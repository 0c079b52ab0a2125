package repositories

import (
	"testing"

	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, cond models.SegmentCondition) (string, []any, bool) {
	t.Helper()
	args := []any{}
	frag, ok := compileCondition(cond, &args)
	return frag, args, ok
}

func TestCompileCondition_EmailDomain_EndsWith(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrEmailDomain,
		Operator:  models.OpEndsWith,
		Value:     "acme.io",
	})

	require.True(t, ok)
	assert.Equal(t, "split_part(p.email, '@', 2) ILIKE $1", frag)
	assert.Equal(t, []any{"%acme.io"}, args)
}

func TestCompileCondition_Plan_Eq(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrPlan,
		Operator:  models.OpEq,
		Value:     "enterprise",
	})

	require.True(t, ok)
	assert.Equal(t, "p.plan = $1", frag)
	assert.Equal(t, []any{"enterprise"}, args)
}

func TestCompileCondition_Plan_In(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrPlan,
		Operator:  models.OpIn,
		Value:     []any{"pro", "enterprise"},
	})

	require.True(t, ok)
	assert.Equal(t, "p.plan = ANY($1)", frag)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"pro", "enterprise"}, args[0])
}

func TestCompileCondition_In_RejectsNonArray(t *testing.T) {
	_, _, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrPlan,
		Operator:  models.OpIn,
		Value:     "enterprise",
	})
	assert.False(t, ok)

	_, _, ok = compile(t, models.SegmentCondition{
		Attribute: models.AttrPlan,
		Operator:  models.OpIn,
		Value:     []any{},
	})
	assert.False(t, ok, "empty array should not compile")
}

func TestCompileCondition_MetadataKey_RequiresKey(t *testing.T) {
	_, _, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrMetadataKey,
		Operator:  models.OpEq,
		Value:     "gold",
	})
	assert.False(t, ok)
}

func TestCompileCondition_MetadataKey_IsSet(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute:   models.AttrMetadataKey,
		Operator:    models.OpIsSet,
		MetadataKey: "tier",
	})

	require.True(t, ok)
	assert.Equal(t, "p.metadata ? $1", frag)
	assert.Equal(t, []any{"tier"}, args)
}

func TestCompileCondition_MetadataKey_NumericComparison(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute:   models.AttrMetadataKey,
		Operator:    models.OpGte,
		MetadataKey: "seats",
		Value:       float64(50),
	})

	require.True(t, ok)
	assert.Equal(t, "(p.metadata->>$1)::numeric >= $2", frag)
	assert.Equal(t, []any{"seats", float64(50)}, args)
}

func TestCompileCondition_EmailVerified(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrEmailVerified,
		Operator:  models.OpEq,
		Value:     true,
	})

	require.True(t, ok)
	assert.Equal(t, "p.email_verified = $1", frag)
	assert.Equal(t, []any{true}, args)

	_, _, ok = compile(t, models.SegmentCondition{
		Attribute: models.AttrEmailVerified,
		Operator:  models.OpEq,
		Value:     "yes",
	})
	assert.False(t, ok, "non-bool value should not compile")
}

func TestCompileCondition_EmailVerified_IsSet(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrEmailVerified,
		Operator:  models.OpIsSet,
	})

	require.True(t, ok)
	assert.Equal(t, "p.email_verified", frag)
	assert.Empty(t, args)

	frag, _, ok = compile(t, models.SegmentCondition{
		Attribute: models.AttrEmailVerified,
		Operator:  models.OpIsNotSet,
	})

	require.True(t, ok)
	assert.Equal(t, "NOT p.email_verified", frag)
}

func TestCompileCondition_CreatedAtDaysAgo(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrCreatedAtDaysAgo,
		Operator:  models.OpGt,
		Value:     float64(30),
	})

	require.True(t, ok)
	assert.Equal(t, "floor(extract(epoch FROM (now() - p.created_at)) / 86400) > $1", frag)
	assert.Equal(t, []any{float64(30)}, args)
}

func TestCompileCondition_PostCount_IsSet(t *testing.T) {
	frag, args, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrPostCount,
		Operator:  models.OpIsSet,
	})

	require.True(t, ok)
	assert.Contains(t, frag, "po.deleted_at IS NULL")
	assert.Contains(t, frag, "> 0")
	assert.Empty(t, args)
}

func TestCompileCondition_VoteCount_NoSoftDeleteFilter(t *testing.T) {
	frag, _, ok := compile(t, models.SegmentCondition{
		Attribute: models.AttrVoteCount,
		Operator:  models.OpGte,
		Value:     float64(5),
	})

	require.True(t, ok)
	assert.NotContains(t, frag, "deleted_at", "votes have no soft delete")
}

func TestCompileCondition_UnsupportedPairs(t *testing.T) {
	unsupported := []models.SegmentCondition{
		{Attribute: models.AttrPostCount, Operator: models.OpContains, Value: "x"},
		{Attribute: models.AttrCreatedAtDaysAgo, Operator: models.OpIn, Value: []any{float64(1)}},
		{Attribute: models.AttrEmailVerified, Operator: models.OpGt, Value: true},
		{Attribute: models.AttrEmailDomain, Operator: models.OpIsSet},
		{Attribute: "favorite_color", Operator: models.OpEq, Value: "red"},
		{Attribute: models.AttrPlan, Operator: "matches", Value: "ent.*"},
	}

	for _, cond := range unsupported {
		_, _, ok := compile(t, cond)
		assert.False(t, ok, "%s %s should not compile", cond.Attribute, cond.Operator)
	}
}

func TestCompileCondition_Deterministic(t *testing.T) {
	cond := models.SegmentCondition{
		Attribute: models.AttrEmailDomain,
		Operator:  models.OpContains,
		Value:     "acme",
	}

	frag1, args1, ok1 := compile(t, cond)
	frag2, args2, ok2 := compile(t, cond)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, frag1, frag2)
	assert.Equal(t, args1, args2)
}

func TestEscapeLikePattern(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLikePattern("100%"))
	assert.Equal(t, `a\_b`, escapeLikePattern("a_b"))
	assert.Equal(t, `c:\\temp`, escapeLikePattern(`c:\temp`))
}

func TestBindArg_SequentialPlaceholders(t *testing.T) {
	args := []any{}
	assert.Equal(t, "$1", bindArg(&args, "a"))
	assert.Equal(t, "$2", bindArg(&args, "b"))
	assert.Equal(t, []any{"a", "b"}, args)
}
