// Package syncer drains the pending action queue against the remote store
// once connectivity returns, then refreshes the local snapshot from the
// authoritative post-sync state.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/remote"
)

// QueueLayer is what the engine needs from the pending action queue.
type QueueLayer interface {
	Pending(ctx context.Context) ([]models.PendingAction, error)
	Remove(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, cause error) error
}

// CacheLayer is what the engine needs from the local cache store.
type CacheLayer interface {
	CacheEvent(ctx context.Context, event models.CachedEvent, tickets []models.Ticket) error
}

// ReachabilityProbe exposes the connectivity monitor's current state.
type ReachabilityProbe interface {
	Reachable() bool
}

// AuditPublisher receives audit events for applied replays and completed
// sync passes. May be nil when auditing is disabled.
type AuditPublisher interface {
	PublishCheckIn(event models.CheckInEvent) error
	PublishSyncCompleted(event models.SyncCompletedEvent) error
}

type Engine struct {
	Queue    QueueLayer
	Remote   remote.Store
	Cache    CacheLayer
	Conn     ReachabilityProbe
	Producer AuditPublisher
	Logger   *logger.Logger
	DeviceID string

	syncing atomic.Bool
}

func NewEngine(q QueueLayer, r remote.Store, c CacheLayer, conn ReachabilityProbe, producer AuditPublisher, deviceID string, log *logger.Logger) *Engine {
	return &Engine{
		Queue:    q,
		Remote:   r,
		Cache:    c,
		Conn:     conn,
		Producer: producer,
		DeviceID: deviceID,
		Logger:   log,
	}
}

// Syncing reports whether a sync pass is in flight.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// Sync drains the queue in insertion order, best-effort: a failing entry is
// kept for the next pass and draining continues with the rest. At most one
// pass runs at a time; a concurrent call is a no-op returning nil. When the
// device is unreachable a zero result is returned immediately.
func (e *Engine) Sync(ctx context.Context) *models.SyncResult {
	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.syncing.Store(false)

	if !e.Conn.Reachable() {
		return &models.SyncResult{}
	}
	if e.Queue == nil {
		// Connected-only mode: nothing can ever be queued.
		return &models.SyncResult{}
	}

	result := &models.SyncResult{}

	actions, err := e.Queue.Pending(ctx)
	if err != nil {
		result.Error = err.Error()
		e.logError(fmt.Sprintf("Failed to read pending queue: %v", err))
		return result
	}

	affected := map[string]bool{}
	for _, action := range actions {
		if err := e.replay(ctx, action); err != nil {
			result.Failed++
			if qerr := e.Queue.RecordFailure(ctx, action.ID, err); qerr != nil {
				e.logError(fmt.Sprintf("Failed to record replay failure for action %d: %v", action.ID, qerr))
			}
			e.logError(fmt.Sprintf("Replay of %s for ticket %s failed: %v", action.Kind, action.TicketID, err))
			continue
		}
		if err := e.Queue.Remove(ctx, action.ID); err != nil {
			// The remote write landed; removal is retried next pass and the
			// replay stays idempotent, so count it as synced.
			e.logError(fmt.Sprintf("Failed to dequeue action %d: %v", action.ID, err))
		}
		result.Synced++
		affected[action.EventID] = true
	}

	for eventID := range affected {
		if err := e.refreshEvent(ctx, eventID); err != nil {
			e.logError(fmt.Sprintf("Post-sync cache refresh for event %s failed: %v", eventID, err))
		}
	}

	if e.Logger != nil {
		e.Logger.Info("SYNC", fmt.Sprintf("Sync pass complete: %d synced, %d failed", result.Synced, result.Failed))
	}
	if e.Producer != nil {
		_ = e.Producer.PublishSyncCompleted(models.SyncCompletedEvent{
			DeviceID:   e.DeviceID,
			Synced:     result.Synced,
			Failed:     result.Failed,
			Error:      result.Error,
			FinishedAt: time.Now().UTC(),
		})
	}

	return result
}

// replay applies one queued action with the same rules as a live check-in.
// Remote state may have moved while this device was offline: a ticket
// already in the action's target state is a no-op success, never an error,
// so the common multi-device race produces no spurious failures.
func (e *Engine) replay(ctx context.Context, action models.PendingAction) error {
	ticket, err := e.Remote.FindTicketByID(ctx, action.TicketID)
	if err != nil {
		return fmt.Errorf("look up ticket %s: %w", action.TicketID, err)
	}

	if !models.PaymentStatusAccepted(ticket.PaymentStatus) {
		return fmt.Errorf("ticket %s has payment status %q", ticket.ID, ticket.PaymentStatus)
	}

	target := action.Kind == models.ActionCheckIn
	if ticket.CheckedIn == target {
		// Another device got there first; the attendee is in the state
		// this action wanted.
		return nil
	}

	var at *time.Time
	by := ""
	if target {
		actedAt := action.ActedAt
		at = &actedAt
		by = action.ActorID
	}
	if err := e.Remote.SetCheckInState(ctx, ticket.ID, target, at, by); err != nil {
		return err
	}

	if e.Producer != nil {
		_ = e.Producer.PublishCheckIn(models.CheckInEvent{
			TicketID:   ticket.ID,
			TicketCode: ticket.TicketCode,
			EventID:    ticket.EventID,
			Kind:       action.Kind,
			ActorID:    action.ActorID,
			ActedAt:    action.ActedAt,
			Offline:    true,
			Replayed:   true,
		})
	}
	return nil
}

func (e *Engine) refreshEvent(ctx context.Context, eventID string) error {
	if e.Cache == nil {
		return nil
	}

	event, err := e.Remote.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetch event: %w", err)
	}
	tickets, err := e.Remote.ListEventTickets(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetch tickets: %w", err)
	}

	return e.Cache.CacheEvent(ctx, models.CachedEvent{
		ID:          event.ID,
		Title:       event.Title,
		StartDate:   event.StartDate,
		VenueName:   event.VenueName,
		OrganizerID: event.OrganizerID,
	}, tickets)
}

func (e *Engine) logError(msg string) {
	if e.Logger != nil {
		e.Logger.Error("SYNC", msg)
	}
}
