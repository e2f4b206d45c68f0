package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/models"
	"ms-checkin/internal/offline"
	"ms-checkin/internal/offline/cache"
)

const (
	eventID  = "11111111-1111-1111-1111-111111111111"
	ticketID = "22222222-2222-2222-2222-222222222222"
)

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	ctx := context.Background()

	db, err := offline.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := cache.New(ctx, db)
	require.NoError(t, err)
	return store
}

func sampleEvent() models.CachedEvent {
	return models.CachedEvent{
		ID:          eventID,
		Title:       "Lagos Tech Fest",
		VenueName:   "Landmark Centre",
		OrganizerID: "org-1",
	}
}

func sampleTickets() []models.Ticket {
	return []models.Ticket{
		{
			ID:            ticketID,
			EventID:       eventID,
			TicketCode:    "TRABC123",
			AttendeeName:  "Bola Ade",
			AttendeeEmail: "bola@example.com",
			Quantity:      2,
			PaymentStatus: "completed",
			CreatedAt:     time.Now().UTC(),
		},
		{
			ID:            "66666666-6666-6666-6666-666666666666",
			EventID:       eventID,
			TicketCode:    "TRXYZ789",
			AttendeeName:  "Ada Obi",
			AttendeeEmail: "ada@example.com",
			Quantity:      1,
			PaymentStatus: "free",
			CreatedAt:     time.Now().UTC(),
		},
	}
}

func TestCacheEventStampsAndStores(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	cached, err := store.IsEventCached(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "Lagos Tech Fest", cached.Title)
	assert.WithinDuration(t, time.Now().UTC(), cached.CachedAt, 5*time.Second)

	missing, err := store.IsEventCached(ctx, "99999999-9999-9999-9999-999999999999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCacheEventReplacesSnapshot(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	// Second download carries only one ticket; the old snapshot must go.
	replacement := sampleTickets()[:1]
	replacement[0].AttendeeName = "Bola Ade-Smith"
	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), replacement))

	tickets, err := store.ListTickets(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Bola Ade-Smith", tickets[0].AttendeeName)
}

func TestFindTicketByCodeIsCaseInsensitive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	ticket, err := store.FindTicketByCode(ctx, "trabc123")
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, ticketID, ticket.ID)

	none, err := store.FindTicketByCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFindTicketByID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	ticket, err := store.FindTicketByID(ctx, ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "TRABC123", ticket.TicketCode)
}

func TestUpdateTicketLocallyIsImmediatelyVisible(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateTicketLocally(ctx, ticketID, cache.TicketPatch{
		CheckedIn:   true,
		CheckedInAt: &now,
		CheckedInBy: "staff-1",
	}))

	ticket, err := store.FindTicketByID(ctx, ticketID)
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.True(t, ticket.CheckedIn)
	require.NotNil(t, ticket.CheckedInAt)
	assert.Equal(t, "staff-1", ticket.CheckedInBy)

	// Undo clears the fields again.
	require.NoError(t, store.UpdateTicketLocally(ctx, ticketID, cache.TicketPatch{}))
	ticket, err = store.FindTicketByID(ctx, ticketID)
	require.NoError(t, err)
	assert.False(t, ticket.CheckedIn)
	assert.Nil(t, ticket.CheckedInAt)
}

func TestUpdateTicketLocallyUnknownTicket(t *testing.T) {
	store := newStore(t)
	err := store.UpdateTicketLocally(context.Background(), "missing", cache.TicketPatch{CheckedIn: true})
	assert.Error(t, err)
}

func TestListTicketsOrderedByAttendeeName(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	tickets, err := store.ListTickets(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "Ada Obi", tickets[0].AttendeeName)
	assert.Equal(t, "Bola Ade", tickets[1].AttendeeName)
}

func TestClearEventCache(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CacheEvent(ctx, sampleEvent(), sampleTickets()))

	require.NoError(t, store.ClearEventCache(ctx, eventID))

	cached, err := store.IsEventCached(ctx, eventID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	tickets, err := store.ListTickets(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
