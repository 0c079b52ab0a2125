package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/echoboardhq/echoboard-segments/internal/database"
	"github.com/echoboardhq/echoboard-segments/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SegmentRepository struct {
	pool *pgxpool.Pool
}

func NewSegmentRepository(db *database.DB) *SegmentRepository {
	return &SegmentRepository{pool: db.Pool}
}

const segmentColumns = `s.id, s.name, s.description, s.type, s.color, s.rules, s.schedule, s.created_at, s.updated_at, s.deleted_at`

const segmentMemberCount = `(SELECT count(*) FROM segment_memberships m WHERE m.segment_id = s.id)`

// rowScanner interface for scanning segment rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSegmentRow handles nullable fields and the JSONB rules column.
func scanSegmentRow(scanner rowScanner) (*models.Segment, error) {
	var seg models.Segment
	var rulesJSON []byte

	err := scanner.Scan(
		&seg.ID, &seg.Name, &seg.Description, &seg.Type, &seg.Color,
		&rulesJSON, &seg.Schedule, &seg.CreatedAt, &seg.UpdatedAt, &seg.DeletedAt,
		&seg.MemberCount,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(rulesJSON) > 0 {
		var rules models.SegmentRules
		if err := json.Unmarshal(rulesJSON, &rules); err != nil {
			return nil, fmt.Errorf("failed to decode segment rules: %w", err)
		}
		seg.Rules = &rules
	}

	return &seg, nil
}

func scanSegmentRows(rows pgx.Rows) ([]*models.Segment, error) {
	defer rows.Close()

	segments := make([]*models.Segment, 0)

	for rows.Next() {
		seg, err := scanSegmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, seg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return segments, nil
}

func marshalRules(rules *models.SegmentRules) ([]byte, error) {
	if rules == nil {
		return nil, nil
	}
	return json.Marshal(rules)
}

func (r *SegmentRepository) Create(ctx context.Context, seg *models.Segment) (*models.Segment, error) {
	seg.ID = uuid.New().String()

	now := time.Now()
	seg.CreatedAt = now
	seg.UpdatedAt = now

	rulesJSON, err := marshalRules(seg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment rules: %w", err)
	}

	query := `
		INSERT INTO segments (id, name, description, type, color, rules, schedule, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + segmentColumns + `, 0::bigint AS member_count
	`

	created, err := scanSegmentRow(r.pool.QueryRow(ctx, query,
		seg.ID, seg.Name, seg.Description, seg.Type, seg.Color,
		rulesJSON, seg.Schedule, seg.CreatedAt, seg.UpdatedAt,
	))
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*models.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `, ` + segmentMemberCount + `
		FROM segments s WHERE s.id = $1 AND s.deleted_at IS NULL
	`

	return scanSegmentRow(r.pool.QueryRow(ctx, query, id))
}

func (r *SegmentRepository) List(ctx context.Context) ([]*models.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `, ` + segmentMemberCount + `
		FROM segments s WHERE s.deleted_at IS NULL ORDER BY s.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}

	return scanSegmentRows(rows)
}

// ListDynamic returns all live dynamic segments, the batch evaluation input.
func (r *SegmentRepository) ListDynamic(ctx context.Context) ([]*models.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `, ` + segmentMemberCount + `
		FROM segments s
		WHERE s.type = 'dynamic' AND s.deleted_at IS NULL
		ORDER BY s.created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dynamic segments: %w", err)
	}

	return scanSegmentRows(rows)
}

// ListScheduled returns dynamic segments carrying their own cron schedule.
func (r *SegmentRepository) ListScheduled(ctx context.Context) ([]*models.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `, ` + segmentMemberCount + `
		FROM segments s
		WHERE s.type = 'dynamic' AND s.schedule IS NOT NULL AND s.deleted_at IS NULL
		ORDER BY s.created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled segments: %w", err)
	}

	return scanSegmentRows(rows)
}

func (r *SegmentRepository) Update(ctx context.Context, id string, seg *models.Segment) (*models.Segment, error) {
	seg.UpdatedAt = time.Now()

	rulesJSON, err := marshalRules(seg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment rules: %w", err)
	}

	query := `
		UPDATE segments s SET name = $1, description = $2, color = $3, rules = $4, schedule = $5, updated_at = $6
		WHERE s.id = $7 AND s.deleted_at IS NULL
		RETURNING ` + segmentColumns + `, ` + segmentMemberCount + `
	`

	updated, err := scanSegmentRow(r.pool.QueryRow(ctx, query,
		seg.Name, seg.Description, seg.Color, rulesJSON, seg.Schedule, seg.UpdatedAt, id,
	))
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *SegmentRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE segments SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// PurgeDeletedBefore hard-deletes segments soft-deleted before the cutoff.
// Membership rows go with them via the FK cascade.
func (r *SegmentRepository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM segments WHERE deleted_at IS NOT NULL AND deleted_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

func (r *SegmentRepository) CountByType(ctx context.Context, segType models.SegmentType) (int64, error) {
	query := `SELECT count(*) FROM segments WHERE type = $1 AND deleted_at IS NULL`

	var count int64
	if err := r.pool.QueryRow(ctx, query, segType).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}

	return count, nil
}
