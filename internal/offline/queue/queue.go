// Package queue is the pending action queue: a durable, strictly ordered
// log of check-ins and undos performed while disconnected.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

type Queue struct {
	Bun *bun.DB
}

// New prepares the queue table on the shared offline database.
func New(ctx context.Context, db *bun.DB) (*Queue, error) {
	if _, err := db.NewCreateTable().
		Model((*models.PendingAction)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create pending_actions table: %w", err)
	}
	return &Queue{Bun: db}, nil
}

// Enqueue appends the action to the log. Insertion order is the replay
// order; actions for the same ticket are never reordered.
func (q *Queue) Enqueue(ctx context.Context, action *models.PendingAction) error {
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	if _, err := q.Bun.NewInsert().Model(action).Exec(ctx); err != nil {
		return fmt.Errorf("enqueue action for ticket %s: %w", action.TicketID, err)
	}
	return nil
}

// PendingCount reports how many actions have not yet been applied remotely.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.Bun.NewSelect().
		Model((*models.PendingAction)(nil)).
		Count(ctx)
}

// Pending returns all queued actions in insertion order.
func (q *Queue) Pending(ctx context.Context) ([]models.PendingAction, error) {
	var actions []models.PendingAction
	err := q.Bun.NewSelect().
		Model(&actions).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// Remove deletes an action after its confirmed remote application. Until
// then the entry stays put, so nothing is ever silently dropped.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	_, err := q.Bun.NewDelete().
		Model((*models.PendingAction)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// RecordFailure keeps the entry queued for the next sync pass and notes
// what went wrong.
func (q *Queue) RecordFailure(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := q.Bun.NewUpdate().
		Model((*models.PendingAction)(nil)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", msg).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
