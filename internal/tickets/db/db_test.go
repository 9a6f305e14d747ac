package db_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/testutil"
	"ms-boxoffice/internal/tickets/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTicket(eventID, ticketType string) *models.Ticket {
	now := time.Now().UTC()
	return &models.Ticket{
		ID:                uuid.New().String(),
		EventID:           eventID,
		OrganizerID:       "admin-1",
		TicketType:        ticketType,
		UnitPrice:         50,
		AvailableQuantity: 10,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestCreateAndGetTicket(t *testing.T) {
	ticketDB := &db.DB{Bun: testutil.NewTestDB(t)}
	ctx := context.Background()

	ticket := newTicket("event-1", "VIP")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	got, err := ticketDB.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "VIP", got.TicketType)
	assert.Equal(t, 10, got.AvailableQuantity)

	_, err = ticketDB.GetTicketByID(ctx, "non-existent")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateTicket_DuplicateTypeIsConflict(t *testing.T) {
	ticketDB := &db.DB{Bun: testutil.NewTestDB(t)}
	ctx := context.Background()

	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("event-1", "VIP")))
	err := ticketDB.CreateTicket(ctx, newTicket("event-1", "VIP"))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Same type on another event is fine.
	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("event-2", "VIP")))
}

func TestListTicketsByEvent(t *testing.T) {
	ticketDB := &db.DB{Bun: testutil.NewTestDB(t)}
	ctx := context.Background()

	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("event-1", "VIP")))
	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("event-1", "GA")))
	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("event-2", "GA")))

	tickets, err := ticketDB.ListTicketsByEvent(ctx, "event-1")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "GA", tickets[0].TicketType)

	empty, err := ticketDB.ListTicketsByEvent(ctx, "event-none")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdateTicket_VersionGuard(t *testing.T) {
	ticketDB := &db.DB{Bun: testutil.NewTestDB(t)}
	ctx := context.Background()

	ticket := newTicket("event-1", "VIP")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	ticket.UnitPrice = 75
	ticket.Version = 1
	require.NoError(t, ticketDB.UpdateTicket(ctx, ticket, 0))

	got, err := ticketDB.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.UnitPrice)

	stale := *got
	stale.UnitPrice = 99
	stale.Version = 1
	err = ticketDB.UpdateTicket(ctx, &stale, 0)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestDeleteTicket(t *testing.T) {
	ticketDB := &db.DB{Bun: testutil.NewTestDB(t)}
	ctx := context.Background()

	ticket := newTicket("event-1", "VIP")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))
	require.NoError(t, ticketDB.DeleteTicket(ctx, ticket.ID))

	_, err := ticketDB.GetTicketByID(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, ticketDB.DeleteTicket(ctx, ticket.ID), apperr.ErrNotFound)
}

func TestDeleteTicket_WithPurchasesIsConflictOnPostgres(t *testing.T) {
	bunDB := testutil.StartPostgres(t)
	require.NoError(t, migrations.NewRunner(bunDB, testutil.MigrationsDir(), logger.NewNop()).Up())
	ticketDB := &db.DB{Bun: bunDB}
	ctx := context.Background()

	sold := newTicket("event-1", "GA")
	require.NoError(t, ticketDB.CreateTicket(ctx, sold))
	_, err := bunDB.NewInsert().Model(&models.Purchase{
		ID:            uuid.NewString(),
		UserID:        "user-1",
		TicketID:      sold.ID,
		EventID:       sold.EventID,
		TicketType:    sold.TicketType,
		Quantity:      1,
		UnitPrice:     sold.UnitPrice,
		TotalPrice:    sold.UnitPrice,
		PaymentStatus: models.PaymentPending,
		PurchasedAt:   time.Now().UTC(),
	}).Exec(ctx)
	require.NoError(t, err)

	err = ticketDB.DeleteTicket(ctx, sold.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	status, msg := apperr.Resolve(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, msg, "has purchases")

	_, err = ticketDB.GetTicketByID(ctx, sold.ID)
	require.NoError(t, err)

	unsold := newTicket("event-1", "VIP")
	require.NoError(t, ticketDB.CreateTicket(ctx, unsold))
	require.NoError(t, ticketDB.DeleteTicket(ctx, unsold.ID))
}
