package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                string    `bun:"id,pk" json:"id"`
	EventID           string    `bun:"event_id,notnull,unique:event_ticket_type" json:"eventId"`
	OrganizerID       string    `bun:"organizer_id,notnull" json:"organizerId"`
	TicketType        string    `bun:"ticket_type,notnull,unique:event_ticket_type" json:"ticketType"`
	UnitPrice         float64   `bun:"unit_price,notnull" json:"unitPrice"`
	AvailableQuantity int       `bun:"available_quantity,notnull" json:"availableQuantity"`
	Version           int64     `bun:"version,notnull" json:"-"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt         time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreateTicketRequest struct {
	TicketType        string  `json:"ticketType"`
	UnitPrice         float64 `json:"unitPrice"`
	AvailableQuantity int     `json:"availableQuantity"`
}

// UpdateTicketRequest carries a partial edit; nil fields are left unchanged.
type UpdateTicketRequest struct {
	TicketType        *string  `json:"ticketType,omitempty"`
	UnitPrice         *float64 `json:"unitPrice,omitempty"`
	AvailableQuantity *int     `json:"availableQuantity,omitempty"`
}
