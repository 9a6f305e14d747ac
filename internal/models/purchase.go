package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Purchase struct {
	bun.BaseModel `bun:"table:purchases"`

	ID            string        `bun:"id,pk" json:"id"`
	UserID        string        `bun:"user_id,notnull" json:"userId"`
	TicketID      string        `bun:"ticket_id,notnull" json:"ticketId"`
	EventID       string        `bun:"event_id,notnull" json:"eventId"`
	TicketType    string        `bun:"ticket_type,notnull" json:"ticketType"`
	Quantity      int           `bun:"quantity,notnull" json:"quantity"`
	UnitPrice     float64       `bun:"unit_price,notnull" json:"unitPrice"`
	TotalPrice    float64       `bun:"total_price,notnull" json:"totalPrice"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull" json:"paymentStatus"`
	PurchasedAt   time.Time     `bun:"purchased_at,notnull" json:"purchasedAt"`
}

type PurchaseRequest struct {
	TicketType      string `json:"ticketType"`
	TicketsQuantity int    `json:"ticketsQuantity"`
}

type PurchaseResponse struct {
	ID         string  `json:"id"`
	TicketType string  `json:"ticketType"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

func (p *Purchase) ToResponse() PurchaseResponse {
	return PurchaseResponse{
		ID:         p.ID,
		TicketType: p.TicketType,
		Quantity:   p.Quantity,
		TotalPrice: p.TotalPrice,
	}
}

// PurchaseEvent is published once a purchase commits.
type PurchaseEvent struct {
	Type       string    `json:"type"`
	PurchaseID string    `json:"purchase_id"`
	UserID     string    `json:"user_id"`
	TicketID   string    `json:"ticket_id"`
	EventID    string    `json:"event_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	Timestamp  time.Time `json:"timestamp"`
}
