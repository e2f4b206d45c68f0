package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkin/internal/models"
)

// DB implements Store against the Postgres backend.
type DB struct {
	Bun *bun.DB
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.Bun.Close()
}

// Connect opens the remote database. A failed ping is not fatal to the
// caller: the device may simply be offline at startup.
func Connect(dsn string, maxOpen, maxIdle int) (*DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open remote database: %w", err)
	}
	sqldb.SetMaxOpenConns(maxOpen)
	sqldb.SetMaxIdleConns(maxIdle)

	return &DB{Bun: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// Ping probes the remote database with a short deadline.
func (d *DB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.Bun.PingContext(pingCtx)
}

func (d *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) FindTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("upper(ticket_code) = ?", strings.ToUpper(code)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) SetCheckInState(ctx context.Context, ticketID string, checkedIn bool, at *time.Time, by string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_checked_in = ?", checkedIn).
		Set("checked_in_at = ?", at).
		Set("checked_in_by = ?", by).
		Where("id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set check-in state for %s: %w", ticketID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) ListEventTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Where("payment_status IN (?)", bun.In(models.AcceptedPaymentStatuses)).
		Order("attendee_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
