package models

import (
	"time"
)

// Principal is a portal end-user record, the unit of segmentation. The
// principals table is owned by the portal core; this service reads it.
type Principal struct {
	ID            string
	Email         string
	EmailVerified bool
	Plan          string
	Metadata      map[string]any // arbitrary JSON metadata set by the portal
	Role          string         // "user" for end users, "team" for staff
	UserID        *string        // linked auth user, nil for shadow profiles
	CreatedAt     time.Time
	DeletedAt     *time.Time
}
