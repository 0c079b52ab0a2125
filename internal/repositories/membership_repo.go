package repositories

import (
	"context"
	"fmt"

	"github.com/echoboardhq/echoboard-segments/internal/database"
	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/jackc/pgx/v5"
)

type MembershipRepository struct {
	db *database.DB
}

func NewMembershipRepository(db *database.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// DynamicMemberIDs returns the principal ids currently materialized for a
// segment by the evaluator. Manual rows are invisible here.
func (r *MembershipRepository) DynamicMemberIDs(ctx context.Context, segmentID string) ([]string, error) {
	query := `
		SELECT principal_id FROM segment_memberships
		WHERE segment_id = $1 AND added_by = 'dynamic'
	`

	rows, err := r.db.Pool.Query(ctx, query, segmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dynamic members: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member ids: %w", err)
	}

	return ids, nil
}

// AddBatch inserts membership rows for the given principals. Duplicate rows
// are skipped, so repeated assignment is a no-op.
func (r *MembershipRepository) AddBatch(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error {
	if len(principalIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO segment_memberships (principal_id, segment_id, added_by)
		SELECT unnest($1::uuid[]), $2, $3
		ON CONFLICT (principal_id, segment_id) DO NOTHING
	`

	if _, err := r.db.Pool.Exec(ctx, query, principalIDs, segmentID, source); err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// RemoveBatch deletes membership rows of the given source for the given
// principals. Rows added by the other source are left alone.
func (r *MembershipRepository) RemoveBatch(ctx context.Context, segmentID string, principalIDs []string, source models.MembershipSource) error {
	if len(principalIDs) == 0 {
		return nil
	}

	query := `
		DELETE FROM segment_memberships
		WHERE segment_id = $1 AND added_by = $2 AND principal_id = ANY($3::uuid[])
	`

	if _, err := r.db.Pool.Exec(ctx, query, segmentID, source, principalIDs); err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// ApplyDiff applies a reconciliation diff to the dynamic membership of one
// segment in a single transaction: either both the inserts and the deletes
// land or neither does. Inserts tolerate duplicate-key races with concurrent
// runs.
func (r *MembershipRepository) ApplyDiff(ctx context.Context, segmentID string, toAdd, toRemove []string) error {
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if len(toAdd) > 0 {
			query := `
				INSERT INTO segment_memberships (principal_id, segment_id, added_by)
				SELECT unnest($1::uuid[]), $2, 'dynamic'
				ON CONFLICT (principal_id, segment_id) DO NOTHING
			`
			if _, err := tx.Exec(ctx, query, toAdd, segmentID); err != nil {
				return fmt.Errorf("failed to insert memberships: %w", err)
			}
		}

		if len(toRemove) > 0 {
			query := `
				DELETE FROM segment_memberships
				WHERE segment_id = $1 AND added_by = 'dynamic' AND principal_id = ANY($2::uuid[])
			`
			if _, err := tx.Exec(ctx, query, segmentID, toRemove); err != nil {
				return fmt.Errorf("failed to delete memberships: %w", err)
			}
		}

		return nil
	})
}

// RemoveAllDynamic clears every evaluator-created row for a segment. Used
// when a dynamic segment loses its rules.
func (r *MembershipRepository) RemoveAllDynamic(ctx context.Context, segmentID string) error {
	query := `DELETE FROM segment_memberships WHERE segment_id = $1 AND added_by = 'dynamic'`

	if _, err := r.db.Pool.Exec(ctx, query, segmentID); err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// DeleteBySegment removes all membership rows when a segment is deleted.
func (r *MembershipRepository) DeleteBySegment(ctx context.Context, segmentID string) error {
	query := `DELETE FROM segment_memberships WHERE segment_id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, segmentID); err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// SegmentsForPrincipal lists the live segments a principal belongs to.
func (r *MembershipRepository) SegmentsForPrincipal(ctx context.Context, principalID string) ([]*models.SegmentSummary, error) {
	query := `
		SELECT s.id, s.name, s.type, s.color
		FROM segment_memberships m
		JOIN segments s ON s.id = m.segment_id AND s.deleted_at IS NULL
		WHERE m.principal_id = $1
		ORDER BY s.name
	`

	rows, err := r.db.Pool.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query principal segments: %w", err)
	}
	defer rows.Close()

	summaries := make([]*models.SegmentSummary, 0)
	for rows.Next() {
		var s models.SegmentSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Color); err != nil {
			return nil, fmt.Errorf("failed to scan segment summary: %w", err)
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segment summaries: %w", err)
	}

	return summaries, nil
}

// PrincipalIDsInSegments returns the union of members across the given
// segments. A nil result means "no filter" (no segments were given).
func (r *MembershipRepository) PrincipalIDsInSegments(ctx context.Context, segmentIDs []string) (map[string]struct{}, error) {
	if len(segmentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT principal_id FROM segment_memberships
		WHERE segment_id = ANY($1::uuid[])
	`

	rows, err := r.db.Pool.Query(ctx, query, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment members: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member ids: %w", err)
	}

	return ids, nil
}

// CountBySource counts membership rows with the given provenance across all
// live segments.
func (r *MembershipRepository) CountBySource(ctx context.Context, source models.MembershipSource) (int64, error) {
	query := `
		SELECT count(*) FROM segment_memberships m
		JOIN segments s ON s.id = m.segment_id AND s.deleted_at IS NULL
		WHERE m.added_by = $1
	`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, source).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}

	return count, nil
}
