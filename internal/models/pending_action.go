package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ActionKind string

const (
	ActionCheckIn ActionKind = "check_in"
	ActionUndo    ActionKind = "undo"
)

// PendingAction is one check-in or undo performed while disconnected,
// queued durably for replay against the remote store. The autoincrement
// primary key doubles as the FIFO position.
type PendingAction struct {
	bun.BaseModel `bun:"table:pending_actions"`

	ID       int64      `bun:"id,pk,autoincrement" json:"id"`
	TicketID string     `bun:"ticket_id" json:"ticket_id"`
	EventID  string     `bun:"event_id" json:"event_id"`
	Kind     ActionKind `bun:"kind" json:"kind"`
	ActedAt  time.Time  `bun:"acted_at" json:"acted_at"`
	ActorID  string     `bun:"actor_id" json:"actor_id"`

	CreatedAt time.Time `bun:"created_at,nullzero" json:"created_at"`
	Attempts  int       `bun:"attempts" json:"attempts"`
	LastError string    `bun:"last_error" json:"last_error,omitempty"`
}
