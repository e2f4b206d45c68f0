package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is the attendee-facing ticket row. The same shape is used for the
// remote system of record (Postgres) and the local offline snapshot (sqlite).
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string     `bun:"id,pk" json:"id"`
	EventID       string     `bun:"event_id" json:"event_id"`
	TicketCode    string     `bun:"ticket_code" json:"ticket_code"`
	AttendeeName  string     `bun:"attendee_name" json:"attendee_name"`
	AttendeeEmail string     `bun:"attendee_email" json:"attendee_email"`
	TicketType    string     `bun:"ticket_type" json:"ticket_type,omitempty"`
	Quantity      int        `bun:"quantity" json:"quantity"`
	PaymentStatus string     `bun:"payment_status" json:"payment_status"`
	CheckedIn     bool       `bun:"is_checked_in" json:"is_checked_in"`
	CheckedInAt   *time.Time `bun:"checked_in_at,nullzero" json:"checked_in_at,omitempty"`
	CheckedInBy   string     `bun:"checked_in_by" json:"checked_in_by,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero" json:"created_at"`
}

// AcceptedPaymentStatuses is the fixed vocabulary of payment states that
// admit a ticket to check-in. Anything else is a hard validation failure.
var AcceptedPaymentStatuses = []string{"completed", "free", "paid", "complimentary"}

func PaymentStatusAccepted(status string) bool {
	for _, s := range AcceptedPaymentStatuses {
		if s == status {
			return true
		}
	}
	return false
}
