package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID                string    `bun:"id,pk" json:"id"`
	UserID            string    `bun:"user_id,notnull" json:"userId"`
	ExternalPaymentID string    `bun:"external_payment_id,notnull,unique" json:"externalPaymentId"`
	ExternalOrderID   string    `bun:"external_order_id,notnull,unique" json:"externalOrderId"`
	Signature         string    `bun:"signature,notnull,unique" json:"-"`
	PurchaseID        string    `bun:"purchase_id,nullzero" json:"purchaseId,omitempty"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// VerifyPaymentRequest mirrors the checkout callback body.
type VerifyPaymentRequest struct {
	PaymentID  string `json:"razorpay_payment_id"`
	OrderID    string `json:"razorpay_order_id"`
	Signature  string `json:"razorpay_signature"`
	PurchaseID string `json:"purchase_id,omitempty"`
}

type CreateOrderRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

type ExternalOrder struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

type PaymentEvent struct {
	Type       string    `json:"type"`
	PaymentID  string    `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	PurchaseID string    `json:"purchase_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
