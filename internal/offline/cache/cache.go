// Package cache is the local cache store: a per-event snapshot of ticket
// records that lets check-in keep working with no connectivity.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

type Store struct {
	Bun *bun.DB
}

// New prepares the cache tables on the shared offline database.
func New(ctx context.Context, db *bun.DB) (*Store, error) {
	if _, err := db.NewCreateTable().
		Model((*models.CachedEvent)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create events table: %w", err)
	}
	if _, err := db.NewCreateTable().
		Model((*models.Ticket)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create tickets table: %w", err)
	}
	return &Store{Bun: db}, nil
}

// CacheEvent replaces the full ticket snapshot for the event in one
// transaction, so readers never observe a mixed old/new state. The event
// row is upserted with a fresh cached_at stamp.
func (s *Store) CacheEvent(ctx context.Context, event models.CachedEvent, tickets []models.Ticket) error {
	event.CachedAt = time.Now().UTC()

	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(&event).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("start_date = EXCLUDED.start_date").
			Set("venue_name = EXCLUDED.venue_name").
			Set("organizer_id = EXCLUDED.organizer_id").
			Set("cached_at = EXCLUDED.cached_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert event %s: %w", event.ID, err)
		}

		if _, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("event_id = ?", event.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("clear ticket snapshot for %s: %w", event.ID, err)
		}

		if len(tickets) > 0 {
			if _, err := tx.NewInsert().Model(&tickets).Exec(ctx); err != nil {
				return fmt.Errorf("write ticket snapshot for %s: %w", event.ID, err)
			}
		}
		return nil
	})
}

// IsEventCached returns the cached event row, or nil when the event has
// never been downloaded to this device.
func (s *Store) IsEventCached(ctx context.Context, eventID string) (*models.CachedEvent, error) {
	var event models.CachedEvent
	err := s.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FindTicketByCode looks up a ticket by its human-readable code,
// case-insensitively. Returns nil when no ticket matches.
func (s *Store) FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.Bun.NewSelect().
		Model(&ticket).
		Where("upper(ticket_code) = ?", strings.ToUpper(code)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// FindTicketByID looks up a ticket by its exact identifier.
func (s *Store) FindTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// TicketPatch is the optimistic local mutation applied before remote
// confirmation. Assignments, never toggles.
type TicketPatch struct {
	CheckedIn   bool
	CheckedInAt *time.Time
	CheckedInBy string
}

// UpdateTicketLocally applies the patch in place. The change is visible to
// all subsequent reads in this session immediately.
func (s *Store) UpdateTicketLocally(ctx context.Context, ticketID string, patch TicketPatch) error {
	res, err := s.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_checked_in = ?", patch.CheckedIn).
		Set("checked_in_at = ?", patch.CheckedInAt).
		Set("checked_in_by = ?", patch.CheckedInBy).
		Where("id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", ticketID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticket %s not in offline cache", ticketID)
	}
	return nil
}

// ListTickets returns the full cached snapshot for the event, ordered by
// attendee name for list rendering.
func (s *Store) ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Order("attendee_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// ClearEventCache drops the cached event row and its ticket snapshot.
func (s *Store) ClearEventCache(ctx context.Context, eventID string) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.CachedEvent)(nil)).
			Where("id = ?", eventID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx)
		return err
	})
}

// ClearAll wipes every cached event and ticket.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.CachedEvent)(nil)).
			Where("1 = 1").
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Ticket)(nil)).
			Where("1 = 1").
			Exec(ctx)
		return err
	})
}
