package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/echoboardhq/echoboard-segments/internal/database"
	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalRepository reads the portal-owned principals table. This service
// never writes principals.
type PrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(db *database.DB) *PrincipalRepository {
	return &PrincipalRepository{pool: db.Pool}
}

// evaluablePopulation restricts rule evaluation to real end users: the user
// role, linked to an auth record, and not soft-deleted.
const evaluablePopulation = "p.role = 'user' AND p.user_id IS NOT NULL AND p.deleted_at IS NULL"

// EvaluateRules returns the ids of all principals currently matching the
// rule set. Uncompilable conditions are dropped; a rule set with no usable
// conditions matches nobody and no query is issued. Matching happens
// entirely in the database so evaluation cost scales with the query plan,
// not with a full table load into process memory.
func (r *PrincipalRepository) EvaluateRules(ctx context.Context, rules *models.SegmentRules) ([]string, error) {
	if rules == nil || len(rules.Conditions) == 0 {
		return []string{}, nil
	}

	args := make([]any, 0, len(rules.Conditions))
	fragments := make([]string, 0, len(rules.Conditions))
	for _, cond := range rules.Conditions {
		if frag, ok := compileCondition(cond, &args); ok {
			fragments = append(fragments, frag)
		}
	}

	if len(fragments) == 0 {
		return []string{}, nil
	}

	combinator := " AND "
	if rules.Match == models.RuleMatchAny {
		combinator = " OR "
	}

	query := fmt.Sprintf(
		"SELECT p.id FROM principals p WHERE %s AND ((%s))",
		evaluablePopulation,
		strings.Join(fragments, ")"+combinator+"("),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate segment rules: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan principal id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating principal ids: %w", err)
	}

	return ids, nil
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	query := `
		SELECT id, email, email_verified, plan, metadata, role, user_id, created_at, deleted_at
		FROM principals WHERE id = $1 AND deleted_at IS NULL
	`

	var p models.Principal
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.EmailVerified, &p.Plan, &p.Metadata,
		&p.Role, &p.UserID, &p.CreatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &p, nil
}

// CountEvaluable returns the size of the segmentable user population.
func (r *PrincipalRepository) CountEvaluable(ctx context.Context) (int64, error) {
	query := "SELECT count(*) FROM principals p WHERE " + evaluablePopulation

	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count principals: %w", err)
	}

	return count, nil
}
