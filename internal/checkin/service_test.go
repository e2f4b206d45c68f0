package checkin_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/models"
	"ms-checkin/internal/offline/cache"
	"ms-checkin/internal/remote"
)

// fakeConn is a fixed-state reachability probe.
type fakeConn struct {
	reachable bool
}

func (f *fakeConn) Reachable() bool { return f.reachable }

// MockRemote is a map-backed implementation of the remote store.
type MockRemote struct {
	events        map[string]*models.Event
	tickets       map[string]*models.Ticket
	shouldFailOn  string
	errorToReturn error
	setCalls      int
}

func NewMockRemote() *MockRemote {
	return &MockRemote{
		events:  make(map[string]*models.Event),
		tickets: make(map[string]*models.Ticket),
	}
}

func (m *MockRemote) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if m.shouldFailOn == "GetEvent" {
		return nil, m.errorToReturn
	}
	event, exists := m.events[eventID]
	if !exists {
		return nil, remote.ErrNotFound
	}
	return event, nil
}

func (m *MockRemote) FindTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	if m.shouldFailOn == "FindTicketByID" {
		return nil, m.errorToReturn
	}
	ticket, exists := m.tickets[id]
	if !exists {
		return nil, remote.ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (m *MockRemote) FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	if m.shouldFailOn == "FindTicketByCode" {
		return nil, m.errorToReturn
	}
	for _, ticket := range m.tickets {
		if strings.EqualFold(ticket.TicketCode, code) {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, remote.ErrNotFound
}

func (m *MockRemote) SetCheckInState(ctx context.Context, ticketID string, checkedIn bool, at *time.Time, by string) error {
	if m.shouldFailOn == "SetCheckInState" {
		return m.errorToReturn
	}
	ticket, exists := m.tickets[ticketID]
	if !exists {
		return remote.ErrNotFound
	}
	m.setCalls++
	ticket.CheckedIn = checkedIn
	ticket.CheckedInAt = at
	ticket.CheckedInBy = by
	return nil
}

func (m *MockRemote) ListEventTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for _, ticket := range m.tickets {
		if ticket.EventID == eventID && models.PaymentStatusAccepted(ticket.PaymentStatus) {
			tickets = append(tickets, *ticket)
		}
	}
	return tickets, nil
}

// MockCache is a map-backed local cache store.
type MockCache struct {
	events  map[string]*models.CachedEvent
	tickets map[string]*models.Ticket
}

func NewMockCache() *MockCache {
	return &MockCache{
		events:  make(map[string]*models.CachedEvent),
		tickets: make(map[string]*models.Ticket),
	}
}

func (m *MockCache) IsEventCached(ctx context.Context, eventID string) (*models.CachedEvent, error) {
	return m.events[eventID], nil
}

func (m *MockCache) FindTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	for _, ticket := range m.tickets {
		if strings.EqualFold(ticket.TicketCode, code) {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockCache) FindTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, exists := m.tickets[id]
	if !exists {
		return nil, nil
	}
	copied := *ticket
	return &copied, nil
}

func (m *MockCache) UpdateTicketLocally(ctx context.Context, ticketID string, patch cache.TicketPatch) error {
	ticket, exists := m.tickets[ticketID]
	if !exists {
		return errors.New("ticket not in offline cache")
	}
	ticket.CheckedIn = patch.CheckedIn
	ticket.CheckedInAt = patch.CheckedInAt
	ticket.CheckedInBy = patch.CheckedInBy
	return nil
}

func (m *MockCache) ListTickets(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for _, ticket := range m.tickets {
		if ticket.EventID == eventID {
			tickets = append(tickets, *ticket)
		}
	}
	return tickets, nil
}

func (m *MockCache) CacheEvent(ctx context.Context, event models.CachedEvent, tickets []models.Ticket) error {
	event.CachedAt = time.Now().UTC()
	m.events[event.ID] = &event
	for id, ticket := range m.tickets {
		if ticket.EventID == event.ID {
			delete(m.tickets, id)
		}
	}
	for i := range tickets {
		copied := tickets[i]
		m.tickets[copied.ID] = &copied
	}
	return nil
}

// MockQueue is a slice-backed pending action queue.
type MockQueue struct {
	actions []models.PendingAction
	nextID  int64
}

func (m *MockQueue) Enqueue(ctx context.Context, action *models.PendingAction) error {
	m.nextID++
	action.ID = m.nextID
	m.actions = append(m.actions, *action)
	return nil
}

func (m *MockQueue) PendingCount(ctx context.Context) (int, error) {
	return len(m.actions), nil
}

const (
	eventID   = "11111111-1111-1111-1111-111111111111"
	ticketID  = "22222222-2222-2222-2222-222222222222"
	organizer = "33333333-3333-3333-3333-333333333333"
)

var staff = checkin.Actor{UserID: "staff-1", OrganizerID: organizer}

func seedTicket(checkedIn bool, status string) *models.Ticket {
	var at *time.Time
	if checkedIn {
		now := time.Now().UTC().Add(-time.Hour)
		at = &now
	}
	return &models.Ticket{
		ID:            ticketID,
		EventID:       eventID,
		TicketCode:    "TRABC123",
		AttendeeName:  "Ada Obi",
		AttendeeEmail: "ada@example.com",
		Quantity:      1,
		PaymentStatus: status,
		CheckedIn:     checkedIn,
		CheckedInAt:   at,
	}
}

func newOfflineService(t *testing.T, ticket *models.Ticket) (*checkin.Service, *MockCache, *MockQueue) {
	t.Helper()
	mockCache := NewMockCache()
	mockCache.events[eventID] = &models.CachedEvent{
		ID:          eventID,
		Title:       "Lagos Tech Fest",
		OrganizerID: organizer,
		CachedAt:    time.Now().UTC(),
	}
	if ticket != nil {
		mockCache.tickets[ticket.ID] = ticket
	}
	mockQueue := &MockQueue{}
	service := checkin.NewService(NewMockRemote(), mockCache, mockQueue, &fakeConn{reachable: false}, nil, nil)
	return service, mockCache, mockQueue
}

func TestOfflineCheckInQueuesAndMarksTicket(t *testing.T) {
	service, mockCache, mockQueue := newOfflineService(t, seedTicket(false, "completed"))

	result := service.PerformCheckIn(context.Background(), eventID, staff, "trabc123", false)

	require.True(t, result.Success)
	assert.True(t, result.Offline)
	assert.Equal(t, "Ada Obi", result.AttendeeName)
	assert.False(t, result.AlreadyCheckedIn)

	count, _ := mockQueue.PendingCount(context.Background())
	assert.Equal(t, 1, count)
	assert.Equal(t, models.ActionCheckIn, mockQueue.actions[0].Kind)
	assert.Equal(t, ticketID, mockQueue.actions[0].TicketID)

	cached := mockCache.tickets[ticketID]
	assert.True(t, cached.CheckedIn)
	require.NotNil(t, cached.CheckedInAt)
}

func TestOfflineCheckInWithoutIdentityRecordsFallbackActor(t *testing.T) {
	service, mockCache, mockQueue := newOfflineService(t, seedTicket(false, "completed"))
	anonymous := checkin.Actor{OrganizerID: organizer}

	result := service.PerformCheckIn(context.Background(), eventID, anonymous, "TRABC123", false)
	require.True(t, result.Success)

	require.Len(t, mockQueue.actions, 1)
	assert.Equal(t, "offline-user", mockQueue.actions[0].ActorID)
	assert.Equal(t, "offline-user", mockCache.tickets[ticketID].CheckedInBy)
}

func TestOfflineCheckInUnknownCode(t *testing.T) {
	service, _, mockQueue := newOfflineService(t, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "NOPE999", false)

	assert.False(t, result.Success)
	assert.Equal(t, models.ResultNotFound, result.Code)
	assert.Contains(t, result.Message, "not found in offline cache")
	count, _ := mockQueue.PendingCount(context.Background())
	assert.Zero(t, count)
}

func TestOfflineCheckInEventNotCached(t *testing.T) {
	mockCache := NewMockCache()
	service := checkin.NewService(NewMockRemote(), mockCache, &MockQueue{}, &fakeConn{}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not been downloaded")
}

func TestRefundedTicketRejectedOnBothPaths(t *testing.T) {
	// Offline path.
	service, mockCache, mockQueue := newOfflineService(t, seedTicket(false, "refunded"))
	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultInvalidStatus, result.Code)
	assert.False(t, mockCache.tickets[ticketID].CheckedIn)
	count, _ := mockQueue.PendingCount(context.Background())
	assert.Zero(t, count)

	// Online path.
	mockRemote := NewMockRemote()
	mockRemote.events[eventID] = &models.Event{ID: eventID, OrganizerID: organizer}
	mockRemote.tickets[ticketID] = seedTicket(false, "refunded")
	online := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result = online.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultInvalidStatus, result.Code)
	assert.False(t, mockRemote.tickets[ticketID].CheckedIn)
	assert.Zero(t, mockRemote.setCalls)
}

func TestOfflineDoubleScanDoesNotDoubleApply(t *testing.T) {
	service, _, mockQueue := newOfflineService(t, seedTicket(false, "completed"))
	ctx := context.Background()

	first := service.PerformCheckIn(ctx, eventID, staff, "TRABC123", false)
	require.True(t, first.Success)

	second := service.PerformCheckIn(ctx, eventID, staff, "TRABC123", false)
	assert.False(t, second.Success)
	assert.True(t, second.AlreadyCheckedIn)
	assert.Equal(t, models.ResultAlreadyCheckedIn, second.Code)

	count, _ := mockQueue.PendingCount(ctx)
	assert.Equal(t, 1, count, "second scan must not enqueue another action")
}

func TestSuccessAndAlreadyCheckedInAreMutuallyExclusive(t *testing.T) {
	service, _, _ := newOfflineService(t, seedTicket(false, "completed"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := service.PerformCheckIn(ctx, eventID, staff, "TRABC123", false)
		assert.False(t, result.Success && result.AlreadyCheckedIn)
	}
}

func TestOfflineUndoRequiresCheckedInTicket(t *testing.T) {
	service, mockCache, mockQueue := newOfflineService(t, seedTicket(false, "completed"))
	ctx := context.Background()

	result := service.PerformCheckIn(ctx, eventID, staff, "TRABC123", true)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultNotCheckedIn, result.Code)

	// Check in, then undo clears the local state and queues both actions.
	require.True(t, service.PerformCheckIn(ctx, eventID, staff, "TRABC123", false).Success)
	undo := service.PerformCheckIn(ctx, eventID, staff, "TRABC123", true)
	require.True(t, undo.Success)
	assert.True(t, undo.Offline)

	cached := mockCache.tickets[ticketID]
	assert.False(t, cached.CheckedIn)
	assert.Nil(t, cached.CheckedInAt)

	count, _ := mockQueue.PendingCount(ctx)
	assert.Equal(t, 2, count)
	assert.Equal(t, models.ActionCheckIn, mockQueue.actions[0].Kind)
	assert.Equal(t, models.ActionUndo, mockQueue.actions[1].Kind)
}

func TestEmptyInputRejected(t *testing.T) {
	service, _, _ := newOfflineService(t, nil)
	result := service.PerformCheckIn(context.Background(), eventID, staff, "   ", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultInvalidInput, result.Code)
}

func TestOnlineCheckInWritesRemoteState(t *testing.T) {
	mockRemote := NewMockRemote()
	mockRemote.events[eventID] = &models.Event{ID: eventID, OrganizerID: organizer}
	mockRemote.tickets[ticketID] = seedTicket(false, "paid")
	service := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)

	require.True(t, result.Success)
	assert.False(t, result.Offline)
	assert.Equal(t, "TRABC123", result.TicketCode)

	stored := mockRemote.tickets[ticketID]
	assert.True(t, stored.CheckedIn)
	require.NotNil(t, stored.CheckedInAt)
	assert.Equal(t, staff.UserID, stored.CheckedInBy)
}

func TestOnlineCheckInByIdentifier(t *testing.T) {
	mockRemote := NewMockRemote()
	mockRemote.events[eventID] = &models.Event{ID: eventID, OrganizerID: organizer}
	mockRemote.tickets[ticketID] = seedTicket(false, "completed")
	service := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, strings.ToUpper(ticketID), false)
	require.True(t, result.Success)
	assert.True(t, mockRemote.tickets[ticketID].CheckedIn)
}

func TestOnlineWrongEvent(t *testing.T) {
	otherEvent := "44444444-4444-4444-4444-444444444444"
	mockRemote := NewMockRemote()
	mockRemote.events[otherEvent] = &models.Event{ID: otherEvent, OrganizerID: organizer}
	mockRemote.tickets[ticketID] = seedTicket(false, "completed")
	service := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result := service.PerformCheckIn(context.Background(), otherEvent, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultWrongEvent, result.Code)
	assert.False(t, mockRemote.tickets[ticketID].CheckedIn)
}

func TestOnlineForbiddenForOtherOrganizer(t *testing.T) {
	mockRemote := NewMockRemote()
	mockRemote.events[eventID] = &models.Event{ID: eventID, OrganizerID: "someone-else"}
	mockRemote.tickets[ticketID] = seedTicket(false, "completed")
	service := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultForbidden, result.Code)
}

func TestOnlineAlreadyCheckedInMentionsTime(t *testing.T) {
	mockRemote := NewMockRemote()
	mockRemote.events[eventID] = &models.Event{ID: eventID, OrganizerID: organizer}
	mockRemote.tickets[ticketID] = seedTicket(true, "completed")
	service := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.True(t, result.AlreadyCheckedIn)
	assert.Contains(t, result.Message, "already checked in at")
	assert.Zero(t, mockRemote.setCalls)
}

func TestOnlineRemoteFailureIsStructured(t *testing.T) {
	mockRemote := NewMockRemote()
	mockRemote.shouldFailOn = "FindTicketByCode"
	mockRemote.errorToReturn = errors.New("connection refused")
	service := checkin.NewService(mockRemote, nil, nil, &fakeConn{reachable: true}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultRemoteUnavailable, result.Code)
}

func TestOfflineUnavailableStorageDegrades(t *testing.T) {
	service := checkin.NewService(NewMockRemote(), nil, nil, &fakeConn{reachable: false}, nil, nil)

	result := service.PerformCheckIn(context.Background(), eventID, staff, "TRABC123", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.ResultStorageUnavailable, result.Code)
}
