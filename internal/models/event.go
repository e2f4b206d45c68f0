package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is the remote event row, limited to the fields staff devices need.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string     `bun:"id,pk" json:"id"`
	Title       string     `bun:"title" json:"title"`
	StartDate   *time.Time `bun:"start_date,nullzero" json:"start_date,omitempty"`
	VenueName   string     `bun:"venue_name" json:"venue_name"`
	OrganizerID string     `bun:"organizer_id" json:"organizer_id"`
}

// CachedEvent is an Event snapshot held in the offline store, stamped with
// the moment it was downloaded. One row per event, upsert semantics.
type CachedEvent struct {
	bun.BaseModel `bun:"table:events"`

	ID          string     `bun:"id,pk" json:"id"`
	Title       string     `bun:"title" json:"title"`
	StartDate   *time.Time `bun:"start_date,nullzero" json:"start_date,omitempty"`
	VenueName   string     `bun:"venue_name" json:"venue_name"`
	OrganizerID string     `bun:"organizer_id" json:"organizer_id"`
	CachedAt    time.Time  `bun:"cached_at" json:"cached_at"`
}
