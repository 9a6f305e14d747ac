package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return &ticket, nil
}

func (d *DB) ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Order("ticket_type ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets for event %s: %w", eventID, err)
	}
	return tickets, nil
}

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("ticket type %q already exists for this event", ticket.TicketType)
	}
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

// UpdateTicket writes the editable columns only if the row still carries
// expectedVersion, so an organizer edit cannot silently overwrite a purchase
// that landed in between.
func (d *DB) UpdateTicket(ctx context.Context, ticket *models.Ticket, expectedVersion int64) error {
	res, err := d.Bun.NewUpdate().
		Model(ticket).
		Column("ticket_type", "unit_price", "available_quantity", "version", "updated_at").
		Where("id = ?", ticket.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("ticket type %q already exists for this event", ticket.TicketType)
	}
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", ticket.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", ticket.ID, err)
	}
	if affected == 0 {
		return apperr.Conflict("ticket %s was modified concurrently, retry", ticket.ID)
	}
	return nil
}

func (d *DB) DeleteTicket(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if database.IsForeignKeyViolation(err) {
		return apperr.Conflict("ticket %s has purchases and cannot be deleted", id)
	}
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("ticket %s not found", id)
	}
	return nil
}
