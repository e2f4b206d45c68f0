package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/models"
	"ms-checkin/internal/offline"
	"ms-checkin/internal/offline/queue"
)

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	ctx := context.Background()

	db, err := offline.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	q, err := queue.New(ctx, db)
	require.NoError(t, err)
	return q
}

func enqueue(t *testing.T, q *queue.Queue, ticketID string, kind models.ActionKind) *models.PendingAction {
	t.Helper()
	action := &models.PendingAction{
		TicketID: ticketID,
		EventID:  "11111111-1111-1111-1111-111111111111",
		Kind:     kind,
		ActedAt:  time.Now().UTC(),
		ActorID:  "staff-1",
	}
	require.NoError(t, q.Enqueue(context.Background(), action))
	return action
}

func TestEnqueuePreservesInsertionOrder(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	enqueue(t, q, "ticket-a", models.ActionCheckIn)
	enqueue(t, q, "ticket-b", models.ActionCheckIn)
	enqueue(t, q, "ticket-a", models.ActionUndo)

	actions, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	assert.Equal(t, "ticket-a", actions[0].TicketID)
	assert.Equal(t, models.ActionCheckIn, actions[0].Kind)
	assert.Equal(t, "ticket-b", actions[1].TicketID)
	assert.Equal(t, "ticket-a", actions[2].TicketID)
	assert.Equal(t, models.ActionUndo, actions[2].Kind)

	// IDs are strictly increasing with insertion order.
	assert.Less(t, actions[0].ID, actions[1].ID)
	assert.Less(t, actions[1].ID, actions[2].ID)
}

func TestPendingCount(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	enqueue(t, q, "ticket-a", models.ActionCheckIn)
	enqueue(t, q, "ticket-b", models.ActionCheckIn)

	count, err = q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRemoveDeletesOnlyThatAction(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	first := enqueue(t, q, "ticket-a", models.ActionCheckIn)
	enqueue(t, q, "ticket-b", models.ActionCheckIn)

	require.NoError(t, q.Remove(ctx, first.ID))

	actions, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "ticket-b", actions[0].TicketID)
}

func TestRecordFailureKeepsActionQueued(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	action := enqueue(t, q, "ticket-a", models.ActionCheckIn)

	require.NoError(t, q.RecordFailure(ctx, action.ID, errors.New("deadline exceeded")))
	require.NoError(t, q.RecordFailure(ctx, action.ID, errors.New("deadline exceeded")))

	actions, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, 2, actions[0].Attempts)
	assert.Equal(t, "deadline exceeded", actions[0].LastError)

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
