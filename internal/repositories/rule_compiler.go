package repositories

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/echoboardhq/echoboard-segments/internal/models"
)

// The rule compiler translates one SegmentCondition into a parameterized SQL
// fragment over the principals row (aliased p). Values are always bound as
// query parameters; condition input never reaches the SQL text itself.
//
// Unsupported (attribute, operator) pairs compile to ("", false) rather than
// an error. The caller drops those conditions, and a rule set left with zero
// usable conditions matches nobody.

const (
	postCountSubquery    = "(SELECT count(*) FROM posts po WHERE po.author_id = p.id AND po.deleted_at IS NULL)"
	voteCountSubquery    = "(SELECT count(*) FROM votes v WHERE v.author_id = p.id)"
	commentCountSubquery = "(SELECT count(*) FROM comments c WHERE c.author_id = p.id AND c.deleted_at IS NULL)"
	principalAgeDays     = "floor(extract(epoch FROM (now() - p.created_at)) / 86400)"
)

// compileCondition returns a boolean SQL fragment for one condition,
// appending any bound values to args. ok is false when the pair is not
// representable.
func compileCondition(cond models.SegmentCondition, args *[]any) (string, bool) {
	switch cond.Attribute {
	case models.AttrEmailDomain:
		return compileTextCondition("split_part(p.email, '@', 2)", cond, args)

	case models.AttrPlan:
		switch cond.Operator {
		case models.OpIsSet:
			return "p.plan <> ''", true
		case models.OpIsNotSet:
			return "p.plan = ''", true
		}
		return compileTextCondition("p.plan", cond, args)

	case models.AttrMetadataKey:
		if cond.MetadataKey == "" {
			return "", false
		}
		switch cond.Operator {
		case models.OpIsSet:
			return fmt.Sprintf("p.metadata ? %s", bindArg(args, cond.MetadataKey)), true
		case models.OpIsNotSet:
			return fmt.Sprintf("NOT (p.metadata ? %s)", bindArg(args, cond.MetadataKey)), true
		}
		expr := fmt.Sprintf("p.metadata->>%s", bindArg(args, cond.MetadataKey))
		return compileTextCondition(expr, cond, args)

	case models.AttrEmailVerified:
		// Existence checks read as "is verified" on a boolean flag.
		switch cond.Operator {
		case models.OpIsSet:
			return "p.email_verified", true
		case models.OpIsNotSet:
			return "NOT p.email_verified", true
		}
		val, ok := asBool(cond.Value)
		if !ok {
			return "", false
		}
		switch cond.Operator {
		case models.OpEq:
			return fmt.Sprintf("p.email_verified = %s", bindArg(args, val)), true
		case models.OpNeq:
			return fmt.Sprintf("p.email_verified <> %s", bindArg(args, val)), true
		}
		return "", false

	case models.AttrCreatedAtDaysAgo:
		return compileNumericCondition(principalAgeDays, cond, args)

	case models.AttrPostCount:
		return compileCountCondition(postCountSubquery, cond, args)
	case models.AttrVoteCount:
		return compileCountCondition(voteCountSubquery, cond, args)
	case models.AttrCommentCount:
		return compileCountCondition(commentCountSubquery, cond, args)
	}

	return "", false
}

// compileTextCondition handles operators over a text-valued expression.
// Substring operators match case-insensitively; magnitude operators cast to
// numeric when the condition value is a number.
func compileTextCondition(expr string, cond models.SegmentCondition, args *[]any) (string, bool) {
	switch cond.Operator {
	case models.OpEq:
		val, ok := asText(cond.Value)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s = %s", expr, bindArg(args, val)), true

	case models.OpNeq:
		val, ok := asText(cond.Value)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s <> %s", expr, bindArg(args, val)), true

	case models.OpContains, models.OpStartsWith, models.OpEndsWith:
		val, ok := asText(cond.Value)
		if !ok {
			return "", false
		}
		pattern := escapeLikePattern(val)
		switch cond.Operator {
		case models.OpContains:
			pattern = "%" + pattern + "%"
		case models.OpStartsWith:
			pattern = pattern + "%"
		case models.OpEndsWith:
			pattern = "%" + pattern
		}
		return fmt.Sprintf("%s ILIKE %s", expr, bindArg(args, pattern)), true

	case models.OpLt, models.OpLte, models.OpGt, models.OpGte:
		if num, ok := asNumber(cond.Value); ok {
			return fmt.Sprintf("(%s)::numeric %s %s", expr, comparisonSQL(cond.Operator), bindArg(args, num)), true
		}
		val, ok := asText(cond.Value)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s %s %s", expr, comparisonSQL(cond.Operator), bindArg(args, val)), true

	case models.OpIn:
		vals, ok := asTextSlice(cond.Value)
		if !ok || len(vals) == 0 {
			return "", false
		}
		return fmt.Sprintf("%s = ANY(%s)", expr, bindArg(args, vals)), true
	}

	return "", false
}

// compileNumericCondition handles the six relational operators over a
// numeric expression.
func compileNumericCondition(expr string, cond models.SegmentCondition, args *[]any) (string, bool) {
	num, ok := asNumber(cond.Value)
	if !ok {
		return "", false
	}

	switch cond.Operator {
	case models.OpEq, models.OpNeq, models.OpLt, models.OpLte, models.OpGt, models.OpGte:
		return fmt.Sprintf("%s %s %s", expr, comparisonSQL(cond.Operator), bindArg(args, num)), true
	}

	return "", false
}

// compileCountCondition handles activity counters. Existence checks are
// redefined over counts: is_set means "has any", is_not_set means "has none".
func compileCountCondition(subquery string, cond models.SegmentCondition, args *[]any) (string, bool) {
	switch cond.Operator {
	case models.OpIsSet:
		return fmt.Sprintf("%s > 0", subquery), true
	case models.OpIsNotSet:
		return fmt.Sprintf("%s = 0", subquery), true
	}
	return compileNumericCondition(subquery, cond, args)
}

// bindArg appends a value to the argument list and returns its placeholder.
func bindArg(args *[]any, val any) string {
	*args = append(*args, val)
	return fmt.Sprintf("$%d", len(*args))
}

func comparisonSQL(op models.ConditionOperator) string {
	switch op {
	case models.OpEq:
		return "="
	case models.OpNeq:
		return "<>"
	case models.OpLt:
		return "<"
	case models.OpLte:
		return "<="
	case models.OpGt:
		return ">"
	case models.OpGte:
		return ">="
	}
	return ""
}

// escapeLikePattern neutralizes LIKE wildcards in a user-supplied value so
// it matches literally inside a pattern.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// asText accepts strings and stringifiable scalars. Rule payloads arrive as
// decoded JSON, so numbers show up as float64.
func asText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

func asNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	val, ok := v.(bool)
	return val, ok
}

func asTextSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		// Already-typed slices can show up when rules are built in code.
		if typed, isTyped := v.([]string); isTyped {
			return typed, true
		}
		return nil, false
	}

	vals := make([]string, 0, len(raw))
	for _, item := range raw {
		text, isText := asText(item)
		if !isText {
			return nil, false
		}
		vals = append(vals, text)
	}
	return vals, true
}
