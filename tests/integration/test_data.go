package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalSpec describes a principal to seed. Zero values get sensible
// defaults: role "user", a linked user_id, and an email on example.com.
type PrincipalSpec struct {
	Email         string
	EmailVerified bool
	Plan          string
	Metadata      map[string]any
	Role          string
	Anonymous     bool // no linked user account
	CreatedAgo    time.Duration
	Deleted       bool
}

// SeedPrincipal inserts a principal and returns its ID
func SeedPrincipal(ctx context.Context, pool *pgxpool.Pool, spec PrincipalSpec) (string, error) {
	id := uuid.New().String()

	if spec.Email == "" {
		spec.Email = fmt.Sprintf("p-%s@example.com", id[:8])
	}
	if spec.Role == "" {
		spec.Role = "user"
	}
	if spec.Metadata == nil {
		spec.Metadata = map[string]any{}
	}

	var userID *string
	if !spec.Anonymous {
		linked := uuid.New().String()
		userID = &linked
	}

	createdAt := time.Now().Add(-spec.CreatedAgo)
	var deletedAt *time.Time
	if spec.Deleted {
		now := time.Now()
		deletedAt = &now
	}

	query := `
		INSERT INTO principals (id, email, email_verified, plan, metadata, role, user_id, created_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := pool.Exec(ctx, query,
		id, spec.Email, spec.EmailVerified, spec.Plan, spec.Metadata, spec.Role, userID, createdAt, deletedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert principal: %w", err)
	}

	return id, nil
}

// SeedPost inserts a post authored by the given principal and returns its ID
func SeedPost(ctx context.Context, pool *pgxpool.Pool, authorID string, deleted bool) (string, error) {
	id := uuid.New().String()

	var deletedAt *time.Time
	if deleted {
		now := time.Now()
		deletedAt = &now
	}

	query := `
		INSERT INTO posts (id, author_id, title, created_at, deleted_at)
		VALUES ($1, $2, $3, now(), $4)
	`
	if _, err := pool.Exec(ctx, query, id, authorID, "post "+id[:8], deletedAt); err != nil {
		return "", fmt.Errorf("failed to insert post: %w", err)
	}

	return id, nil
}

// SeedVote inserts a vote by the given principal on the given post
func SeedVote(ctx context.Context, pool *pgxpool.Pool, authorID, postID string) error {
	query := `
		INSERT INTO votes (id, author_id, post_id, created_at)
		VALUES ($1, $2, $3, now())
	`
	if _, err := pool.Exec(ctx, query, uuid.New().String(), authorID, postID); err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// SeedComment inserts a comment by the given principal on the given post
func SeedComment(ctx context.Context, pool *pgxpool.Pool, authorID, postID string, deleted bool) error {
	var deletedAt *time.Time
	if deleted {
		now := time.Now()
		deletedAt = &now
	}

	query := `
		INSERT INTO comments (id, author_id, post_id, body, created_at, deleted_at)
		VALUES ($1, $2, $3, $4, now(), $5)
	`
	if _, err := pool.Exec(ctx, query, uuid.New().String(), authorID, postID, "comment", deletedAt); err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}
