// Package inventory owns the authoritative available quantity of each ticket.
// Every mutation is a single guarded UPDATE so concurrent request handlers
// cannot oversell without any in-process locking.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

type Ledger struct {
	Bun *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{Bun: db}
}

func (l *Ledger) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return getTicket(ctx, l.Bun, ticketID)
}

// Reserve decrements available quantity by quantity iff enough remain. The
// returned ticket is the post-decrement row, carrying the unit price in effect
// at reservation time.
func (l *Ledger) Reserve(ctx context.Context, ticketID string, quantity int) (*models.Ticket, error) {
	if quantity <= 0 {
		return nil, apperr.InvalidInput("quantity must be a positive integer, got %d", quantity)
	}

	var reserved *models.Ticket
	err := l.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("available_quantity = available_quantity - ?", quantity).
			Set("version = version + 1").
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", ticketID).
			Where("available_quantity >= ?", quantity).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reserve ticket %s: %w", ticketID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reserve ticket %s: %w", ticketID, err)
		}

		ticket, err := getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.Wrap(apperr.KindInsufficientInventory,
				fmt.Sprintf("not enough tickets: requested %d, available %d", quantity, ticket.AvailableQuantity), nil)
		}
		reserved = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// Release restores quantity previously taken by Reserve.
func (l *Ledger) Release(ctx context.Context, ticketID string, quantity int) error {
	if quantity <= 0 {
		return apperr.InvalidInput("quantity must be a positive integer, got %d", quantity)
	}

	res, err := l.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("available_quantity = available_quantity + ?", quantity).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release ticket %s: %w", ticketID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release ticket %s: %w", ticketID, err)
	}
	if affected == 0 {
		return apperr.NotFound("ticket %s not found", ticketID)
	}
	return nil
}

func getTicket(ctx context.Context, db bun.IDB, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := db.NewSelect().
		Model(&ticket).
		Where("id = ?", ticketID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket %s not found", ticketID)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", ticketID, err)
	}
	return &ticket, nil
}

// FindTicket resolves a ticket by its event and type.
func (l *Ledger) FindTicket(ctx context.Context, eventID, ticketType string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := l.Bun.NewSelect().
		Model(&ticket).
		Where("event_id = ?", eventID).
		Where("ticket_type = ?", ticketType).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no %s ticket for event %s", ticketType, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket %s/%s: %w", eventID, ticketType, err)
	}
	return &ticket, nil
}
