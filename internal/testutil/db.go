package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-boxoffice/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewTestDB opens an in-memory SQLite database with the service schema. A
// single connection keeps every query on the same in-memory database.
func NewTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []any{(*models.Ticket)(nil), (*models.Purchase)(nil), (*models.Payment)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

// SeedTicket inserts a ticket and returns it.
func SeedTicket(t *testing.T, db *bun.DB, eventID, ticketType string, unitPrice float64, quantity int) *models.Ticket {
	t.Helper()

	now := time.Now().UTC()
	ticket := &models.Ticket{
		ID:                uuid.NewString(),
		EventID:           eventID,
		OrganizerID:       "organizer-1",
		TicketType:        ticketType,
		UnitPrice:         unitPrice,
		AvailableQuantity: quantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := db.NewInsert().Model(ticket).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed ticket: %v", err)
	}
	return ticket
}
