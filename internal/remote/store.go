// Package remote is the adapter to the hosted system of record. Everything
// the check-in engine needs from the backend goes through the Store
// interface; the concrete implementation is a Postgres database via bun.
package remote

import (
	"context"
	"errors"
	"time"

	"ms-checkin/internal/models"
)

var (
	// ErrNotFound reports that no row matched the lookup.
	ErrNotFound = errors.New("remote: not found")
)

// Store is the tabular interface consumed from the remote system of record.
type Store interface {
	// GetEvent fetches one event row by identifier.
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)

	// FindTicketByID fetches one ticket row by identifier, regardless of
	// payment status; status policy is enforced by the check-in engine so
	// a rejected status is distinguishable from a missing ticket.
	FindTicketByID(ctx context.Context, id string) (*models.Ticket, error)

	// FindTicketByCode fetches one ticket row by its unique human-readable
	// code, case-insensitively.
	FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error)

	// SetCheckInState assigns the check-in fields of a ticket. It is a
	// state assignment, never a toggle, so repeated application with the
	// same arguments is idempotent.
	SetCheckInState(ctx context.Context, ticketID string, checkedIn bool, at *time.Time, by string) error

	// ListEventTickets returns every ticket for the event whose payment
	// status is in the accepted set, ordered by attendee name.
	ListEventTickets(ctx context.Context, eventID string) ([]models.Ticket, error)
}
