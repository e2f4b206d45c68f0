package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/remote"
	"ms-checkin/internal/syncer"
)

// Snapshot is the reactive state the UI renders from. It is an immutable
// copy; mutation happens only through controller methods.
type Snapshot struct {
	IsOffline     bool               `json:"is_offline"`
	IsEventCached bool               `json:"is_event_cached"`
	LastCachedAt  *time.Time         `json:"last_cached_at,omitempty"`
	PendingCount  int                `json:"pending_count"`
	IsSyncing     bool               `json:"is_syncing"`
	IsCaching     bool               `json:"is_caching"`
	SyncResult    *models.SyncResult `json:"sync_result,omitempty"`
	EventID       string             `json:"event_id,omitempty"`
}

// Attendee is the offline attendee-list projection of a cached ticket.
type Attendee struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	TicketCode   string     `json:"ticket_code"`
	TicketType   string     `json:"ticket_type"`
	Quantity     int        `json:"quantity"`
	CheckedIn    bool       `json:"checked_in"`
	CheckInTime  *time.Time `json:"check_in_time,omitempty"`
	CheckedInBy  string     `json:"checked_in_by,omitempty"`
	PurchaseDate time.Time  `json:"purchase_date"`
}

// Controller owns all mutable client-side state for one device session and
// is the single object the transport layer talks to. UI components observe
// it through subscription callbacks rather than shared globals.
type Controller struct {
	mu sync.RWMutex

	service *Service
	engine  *syncer.Engine
	conn    syncer.ReachabilityProbe
	remote  remote.Store
	logger  *logger.Logger

	eventID     string
	actor       Actor
	cachedEvent *models.CachedEvent

	pendingCount int
	isCaching    bool
	syncResult   *models.SyncResult
	dismissTimer *time.Timer

	resultTTL    time.Duration
	pollInterval time.Duration

	subs []func(Snapshot)
}

// ControllerConfig carries the timing knobs; zero values get defaults
// matching observed product behavior (3s result display, 5s pending poll).
type ControllerConfig struct {
	ResultTTL    time.Duration
	PollInterval time.Duration
}

func NewController(service *Service, engine *syncer.Engine, conn syncer.ReachabilityProbe, remoteStore remote.Store, actor Actor, cfg ControllerConfig, log *logger.Logger) *Controller {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 3 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Controller{
		service:      service,
		engine:       engine,
		conn:         conn,
		remote:       remoteStore,
		actor:        actor,
		resultTTL:    cfg.ResultTTL,
		pollInterval: cfg.PollInterval,
		logger:       log,
	}
}

// Run refreshes the pending-count badge on a fixed interval until ctx ends.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshPendingCount(ctx)
			c.notify()
		}
	}
}

// Subscribe registers a callback invoked with a fresh snapshot after every
// state change.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Snapshot returns the current UI state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		IsOffline:    !c.conn.Reachable(),
		PendingCount: c.pendingCount,
		IsSyncing:    c.engine.Syncing(),
		IsCaching:    c.isCaching,
		SyncResult:   c.syncResult,
		EventID:      c.eventID,
	}
	if c.cachedEvent != nil {
		snap.IsEventCached = true
		cachedAt := c.cachedEvent.CachedAt
		snap.LastCachedAt = &cachedAt
	}
	return snap
}

// SelectEvent switches the session to a different event and refreshes its
// cache status.
func (c *Controller) SelectEvent(ctx context.Context, eventID string) {
	c.mu.Lock()
	c.eventID = eventID
	c.cachedEvent = nil
	c.mu.Unlock()

	c.refreshCacheStatus(ctx)
	c.refreshPendingCount(ctx)
	c.notify()
}

// SetActor updates the acting staff identity for this session.
func (c *Controller) SetActor(actor Actor) {
	c.mu.Lock()
	c.actor = actor
	c.mu.Unlock()
}

// EventID returns the currently selected event.
func (c *Controller) EventID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eventID
}

// CacheCurrentEvent downloads the selected event and its accepted tickets
// into the local cache for offline use. Returns the ticket count.
func (c *Controller) CacheCurrentEvent(ctx context.Context) (int, error) {
	c.mu.Lock()
	eventID := c.eventID
	actor := c.actor
	if eventID == "" {
		c.mu.Unlock()
		return 0, errors.New("no event selected")
	}
	if c.service.Cache == nil {
		c.mu.Unlock()
		return 0, errors.New("offline caching is not available on this device")
	}
	c.isCaching = true
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.isCaching = false
		c.mu.Unlock()
		c.notify()
	}()

	event, err := c.remote.GetEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("fetch event: %w", err)
	}
	if actor.OrganizerID != "" && event.OrganizerID != actor.OrganizerID {
		return 0, errors.New("not authorized to download this event")
	}

	tickets, err := c.remote.ListEventTickets(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("fetch tickets: %w", err)
	}

	if err := c.service.Cache.CacheEvent(ctx, models.CachedEvent{
		ID:          event.ID,
		Title:       event.Title,
		StartDate:   event.StartDate,
		VenueName:   event.VenueName,
		OrganizerID: event.OrganizerID,
	}, tickets); err != nil {
		return 0, fmt.Errorf("write offline snapshot: %w", err)
	}

	c.refreshCacheStatus(ctx)
	if c.logger != nil {
		c.logger.Info("CHECKIN", fmt.Sprintf("Cached event %s with %d tickets for offline use", eventID, len(tickets)))
	}
	return len(tickets), nil
}

// PerformCheckIn resolves one attendee action for the selected event.
func (c *Controller) PerformCheckIn(ctx context.Context, codeOrID string, isUndo bool) *models.CheckInResult {
	c.mu.RLock()
	eventID := c.eventID
	actor := c.actor
	c.mu.RUnlock()

	if eventID == "" {
		return &models.CheckInResult{
			Success: false,
			Code:    models.ResultInvalidInput,
			Message: "Select an event before checking in attendees.",
		}
	}

	result := c.service.PerformCheckIn(ctx, eventID, actor, codeOrID, isUndo)
	c.refreshPendingCount(ctx)
	c.notify()
	return result
}

// SyncNow runs a sync pass and surfaces its result to the UI for the
// configured display window, after which it is cleared. A pass already in
// flight makes this a no-op returning nil.
func (c *Controller) SyncNow(ctx context.Context) *models.SyncResult {
	result := c.engine.Sync(ctx)
	if result == nil {
		return nil
	}

	c.mu.Lock()
	c.syncResult = result
	if c.dismissTimer != nil {
		c.dismissTimer.Stop()
	}
	c.dismissTimer = time.AfterFunc(c.resultTTL, func() {
		c.mu.Lock()
		c.syncResult = nil
		c.mu.Unlock()
		c.notify()
	})
	c.mu.Unlock()

	c.refreshPendingCount(ctx)
	c.refreshCacheStatus(ctx)
	c.notify()
	return result
}

// GetOfflineAttendees lists the cached attendees for the selected event.
func (c *Controller) GetOfflineAttendees(ctx context.Context) ([]Attendee, error) {
	c.mu.RLock()
	eventID := c.eventID
	c.mu.RUnlock()

	if eventID == "" || c.service.Cache == nil {
		return []Attendee{}, nil
	}

	tickets, err := c.service.Cache.ListTickets(ctx, eventID)
	if err != nil {
		return nil, err
	}

	attendees := make([]Attendee, 0, len(tickets))
	for _, t := range tickets {
		quantity := t.Quantity
		if quantity == 0 {
			quantity = 1
		}
		ticketType := t.TicketType
		if ticketType == "" {
			ticketType = "Standard"
		}
		attendees = append(attendees, Attendee{
			ID:           t.ID,
			Name:         t.AttendeeName,
			Email:        t.AttendeeEmail,
			TicketCode:   t.TicketCode,
			TicketType:   ticketType,
			Quantity:     quantity,
			CheckedIn:    t.CheckedIn,
			CheckInTime:  t.CheckedInAt,
			CheckedInBy:  t.CheckedInBy,
			PurchaseDate: t.CreatedAt,
		})
	}
	return attendees, nil
}

func (c *Controller) refreshCacheStatus(ctx context.Context) {
	if c.service.Cache == nil {
		return
	}
	c.mu.RLock()
	eventID := c.eventID
	c.mu.RUnlock()
	if eventID == "" {
		return
	}

	cached, err := c.service.Cache.IsEventCached(ctx, eventID)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("CHECKIN", fmt.Sprintf("Cache status refresh failed: %v", err))
		}
		return
	}

	c.mu.Lock()
	c.cachedEvent = cached
	c.mu.Unlock()
}

func (c *Controller) refreshPendingCount(ctx context.Context) {
	if c.service.Queue == nil {
		return
	}
	count, err := c.service.Queue.PendingCount(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("CHECKIN", fmt.Sprintf("Pending count refresh failed: %v", err))
		}
		return
	}
	c.mu.Lock()
	c.pendingCount = count
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.RLock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}
