// Package checkin is the unified check-in state machine. Every attendee
// action enters through Service.PerformCheckIn, which resolves it directly
// against the remote store when connected, or against the local cache plus
// the pending action queue when not. Both paths return the same result
// shape; the deferred path additionally flags the result as offline.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/offline/cache"
	"ms-checkin/internal/remote"
	"ms-checkin/internal/syncer"
)

// Actor is the staff identity performing check-ins on this device.
type Actor struct {
	UserID      string
	OrganizerID string
}

// CacheLayer is what the state machine needs from the local cache store.
type CacheLayer interface {
	IsEventCached(ctx context.Context, eventID string) (*models.CachedEvent, error)
	FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	FindTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicketLocally(ctx context.Context, ticketID string, patch cache.TicketPatch) error
	ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error)
	CacheEvent(ctx context.Context, event models.CachedEvent, tickets []models.Ticket) error
}

// QueueLayer is what the state machine needs from the pending action queue.
type QueueLayer interface {
	Enqueue(ctx context.Context, action *models.PendingAction) error
	PendingCount(ctx context.Context) (int, error)
}

type Service struct {
	Remote   remote.Store
	Cache    CacheLayer // nil when local storage is unavailable
	Queue    QueueLayer
	Conn     syncer.ReachabilityProbe
	Producer syncer.AuditPublisher
	Logger   *logger.Logger
}

func NewService(r remote.Store, c CacheLayer, q QueueLayer, conn syncer.ReachabilityProbe, producer syncer.AuditPublisher, log *logger.Logger) *Service {
	return &Service{
		Remote:   r,
		Cache:    c,
		Queue:    q,
		Conn:     conn,
		Producer: producer,
		Logger:   log,
	}
}

// PerformCheckIn resolves one check-in or undo for the given event. It is
// safe to call repeatedly with the same input: a second pass over an
// already-resolved ticket reports the soft already/not-checked-in outcome
// and never double-applies.
func (s *Service) PerformCheckIn(ctx context.Context, eventID string, actor Actor, codeOrID string, isUndo bool) *models.CheckInResult {
	value, kind, ok := ParseScan(codeOrID)
	if !ok {
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultInvalidInput,
			Message: "Please enter a valid ticket code.",
		}
	}

	if s.Conn.Reachable() {
		return s.performOnline(ctx, eventID, actor, value, kind, isUndo)
	}
	return s.performOffline(ctx, eventID, actor, value, kind, isUndo)
}

func (s *Service) performOnline(ctx context.Context, eventID string, actor Actor, value string, kind ScanKind, isUndo bool) *models.CheckInResult {
	var (
		ticket *models.Ticket
		err    error
	)
	if kind == ScanIdentifier {
		ticket, err = s.Remote.FindTicketByID(ctx, value)
	} else {
		ticket, err = s.Remote.FindTicketByCode(ctx, value)
	}
	if errors.Is(err, remote.ErrNotFound) {
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultNotFound,
			Message: "Ticket not found. Please check the code and try again.",
		}
	}
	if err != nil {
		s.logError(fmt.Sprintf("Remote ticket lookup failed: %v", err))
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultRemoteUnavailable,
			Message: "Could not reach the ticket service. Please try again.",
		}
	}

	organizerID := ""
	event, err := s.Remote.GetEvent(ctx, eventID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		s.logError(fmt.Sprintf("Remote event lookup failed: %v", err))
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultRemoteUnavailable,
			Message: "Could not reach the ticket service. Please try again.",
		}
	}
	if event != nil {
		organizerID = event.OrganizerID
	}

	if res := validateTicket(ticket, eventID, organizerID, actor, isUndo); res != nil {
		return res
	}

	now := time.Now().UTC()
	var at *time.Time
	by := ""
	if !isUndo {
		at = &now
		by = actor.UserID
	}
	if err := s.Remote.SetCheckInState(ctx, ticket.ID, !isUndo, at, by); err != nil {
		s.logError(fmt.Sprintf("Remote check-in write failed for %s: %v", ticket.ID, err))
		return &models.CheckInResult{
			Success:      false,
			Code:         models.ResultRemoteUnavailable,
			Message:      "An error occurred. Please try again.",
			AttendeeName: ticket.AttendeeName,
		}
	}

	// Keep any local snapshot in step with the confirmed remote state.
	if s.Cache != nil {
		if cached, cerr := s.Cache.FindTicketByID(ctx, ticket.ID); cerr == nil && cached != nil {
			_ = s.Cache.UpdateTicketLocally(ctx, ticket.ID, cache.TicketPatch{
				CheckedIn:   !isUndo,
				CheckedInAt: at,
				CheckedInBy: by,
			})
		}
	}

	s.publishAudit(ticket, actor, now, isUndo, false)

	message := "Check-in successful!"
	if isUndo {
		message = "Check-in reversed successfully!"
	}
	return &models.CheckInResult{
		Success:      true,
		Code:         models.ResultOK,
		Message:      message,
		AttendeeName: ticket.AttendeeName,
		TicketCode:   ticket.TicketCode,
	}
}

func (s *Service) performOffline(ctx context.Context, eventID string, actor Actor, value string, kind ScanKind, isUndo bool) *models.CheckInResult {
	if s.Cache == nil || s.Queue == nil {
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultStorageUnavailable,
			Message: "Offline caching is not available on this device.",
		}
	}

	cached, err := s.Cache.IsEventCached(ctx, eventID)
	if err != nil {
		s.logError(fmt.Sprintf("Cache status read failed: %v", err))
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultStorageUnavailable,
			Message: "Offline check-in failed: " + err.Error(),
		}
	}
	if cached == nil {
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultNotFound,
			Message: "This event has not been downloaded for offline use. Download event data while online first.",
		}
	}

	var ticket *models.Ticket
	if kind == ScanIdentifier {
		ticket, err = s.Cache.FindTicketByID(ctx, value)
	} else {
		ticket, err = s.Cache.FindTicketByCode(ctx, value)
	}
	if err != nil {
		s.logError(fmt.Sprintf("Cache ticket lookup failed: %v", err))
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultStorageUnavailable,
			Message: "Offline check-in failed: " + err.Error(),
		}
	}
	if ticket == nil {
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultNotFound,
			Message: fmt.Sprintf("Ticket %q not found in offline cache. Try downloading event data first.", value),
		}
	}

	if res := validateTicket(ticket, eventID, cached.OrganizerID, actor, isUndo); res != nil {
		return res
	}

	now := time.Now().UTC()
	actorID := actor.UserID
	if actorID == "" {
		actorID = "offline-user"
	}

	var at *time.Time
	by := ""
	if !isUndo {
		at = &now
		by = actorID
	}
	if err := s.Cache.UpdateTicketLocally(ctx, ticket.ID, cache.TicketPatch{
		CheckedIn:   !isUndo,
		CheckedInAt: at,
		CheckedInBy: by,
	}); err != nil {
		s.logError(fmt.Sprintf("Optimistic local update failed for %s: %v", ticket.ID, err))
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultStorageUnavailable,
			Message: "Offline check-in failed: " + err.Error(),
		}
	}

	actionKind := models.ActionCheckIn
	if isUndo {
		actionKind = models.ActionUndo
	}
	if err := s.Queue.Enqueue(ctx, &models.PendingAction{
		TicketID: ticket.ID,
		EventID:  eventID,
		Kind:     actionKind,
		ActedAt:  now,
		ActorID:  actorID,
	}); err != nil {
		s.logError(fmt.Sprintf("Enqueue failed for %s: %v", ticket.ID, err))
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultStorageUnavailable,
			Message: "Offline check-in failed: " + err.Error(),
		}
	}

	message := fmt.Sprintf("%s checked in (offline). Will sync when online.", ticket.AttendeeName)
	if isUndo {
		message = "Check-in reversed (offline). Will sync when online."
	}
	return &models.CheckInResult{
		Success:      true,
		Code:         models.ResultOK,
		Message:      message,
		AttendeeName: ticket.AttendeeName,
		TicketCode:   ticket.TicketCode,
		Offline:      true,
	}
}

// validateTicket runs the shared validation sequence, in order: payment
// status, event membership, actor authorization, state versus requested
// action. Returns nil when the action may proceed.
func validateTicket(ticket *models.Ticket, eventID, organizerID string, actor Actor, isUndo bool) *models.CheckInResult {
	if !models.PaymentStatusAccepted(ticket.PaymentStatus) {
		return &models.CheckInResult{
			Success:      false,
			Code:         models.ResultInvalidStatus,
			Message:      fmt.Sprintf("This ticket has status %q and cannot be checked in.", ticket.PaymentStatus),
			AttendeeName: ticket.AttendeeName,
		}
	}

	if ticket.EventID != eventID {
		return &models.CheckInResult{
			Success:      false,
			Code:         models.ResultWrongEvent,
			Message:      "This ticket is for a different event.",
			AttendeeName: ticket.AttendeeName,
		}
	}

	if organizerID != "" && actor.OrganizerID != organizerID {
		return &models.CheckInResult{
			Success:      false,
			Code:         models.ResultForbidden,
			Message:      "You are not authorized to check in attendees for this event.",
			AttendeeName: ticket.AttendeeName,
		}
	}

	if !isUndo && ticket.CheckedIn {
		message := "This ticket has already been checked in."
		if ticket.CheckedInAt != nil {
			message = fmt.Sprintf("This ticket was already checked in at %s.",
				ticket.CheckedInAt.Local().Format("2 Jan 15:04"))
		}
		return &models.CheckInResult{
			Success:          false,
			Code:             models.ResultAlreadyCheckedIn,
			Message:          message,
			AttendeeName:     ticket.AttendeeName,
			AlreadyCheckedIn: true,
		}
	}

	if isUndo && !ticket.CheckedIn {
		return &models.CheckInResult{
			Success:      false,
			Code:         models.ResultNotCheckedIn,
			Message:      "This ticket is not checked in.",
			AttendeeName: ticket.AttendeeName,
		}
	}

	return nil
}

func (s *Service) publishAudit(ticket *models.Ticket, actor Actor, at time.Time, isUndo, offline bool) {
	if s.Producer == nil {
		return
	}
	kind := models.ActionCheckIn
	if isUndo {
		kind = models.ActionUndo
	}
	_ = s.Producer.PublishCheckIn(models.CheckInEvent{
		TicketID:   ticket.ID,
		TicketCode: ticket.TicketCode,
		EventID:    ticket.EventID,
		Kind:       kind,
		ActorID:    actor.UserID,
		ActedAt:    at,
		Offline:    offline,
	})
}

func (s *Service) logError(msg string) {
	if s.Logger != nil {
		s.Logger.Error("CHECKIN", msg)
	}
}
