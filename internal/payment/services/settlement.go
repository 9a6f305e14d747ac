package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/kafka"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/payment/storage"
	"ms-boxoffice/internal/utils"
)

// PurchaseMarker resolves the caller's purchase and flags it as paid once its
// payment is recorded.
type PurchaseMarker interface {
	GetPurchase(ctx context.Context, principal models.Principal, purchaseID string) (*models.Purchase, error)
	MarkPaid(ctx context.Context, purchaseID, userID string) error
}

type Settlement struct {
	Gateway   OrderGateway
	Store     storage.Store
	Purchases PurchaseMarker
	Kafka     kafka.Publisher
	Logger    *logger.Logger

	secret   []byte
	currency string
}

func NewSettlement(gateway OrderGateway, store storage.Store, purchases PurchaseMarker, publisher kafka.Publisher, log *logger.Logger, keySecret, currency string) *Settlement {
	if publisher == nil {
		publisher = &kafka.NopPublisher{Logger: log}
	}
	return &Settlement{
		Gateway:   gateway,
		Store:     store,
		Purchases: purchases,
		Kafka:     publisher,
		Logger:    log,
		secret:    []byte(keySecret),
		currency:  strings.ToLower(currency),
	}
}

// CreateOrder opens an external order for amount in major currency units.
// Nothing is stored locally.
func (s *Settlement) CreateOrder(ctx context.Context, amount float64, currency string) (*models.ExternalOrder, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, apperr.InvalidInput("amount must be positive")
	}
	if currency == "" {
		currency = s.currency
	}
	if s.Gateway == nil {
		return nil, apperr.Wrap(apperr.KindInternal, "payment gateway not configured", nil)
	}

	order, err := s.Gateway.CreateOrder(ctx, int64(math.Round(amount*100)), strings.ToLower(currency))
	if err != nil {
		return nil, fmt.Errorf("create external order: %w", err)
	}
	s.Logger.Info("PAYMENT", fmt.Sprintf("External order %s created for %d %s", order.ID, order.Amount, order.Currency))
	return order, nil
}

// Sign is the hex HMAC-SHA256 of "orderId|paymentId" under the shared secret.
func (s *Settlement) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time. A mismatch is final.
func (s *Settlement) Verify(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return apperr.InvalidInput("order id, payment id and signature are required")
	}
	expected := s.Sign(orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		s.Logger.LogSecurity("SIGNATURE_MISMATCH", fmt.Sprintf("order=%s payment=%s", orderID, paymentID))
		return apperr.ErrSignatureMismatch
	}
	return nil
}

// RecordPayment verifies the callback and stores it once. Replaying the same
// signature yields apperr.ErrDuplicateSignature.
func (s *Settlement) RecordPayment(ctx context.Context, principal models.Principal, req models.VerifyPaymentRequest) (*models.Payment, error) {
	if principal.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if err := s.Verify(req.OrderID, req.PaymentID, req.Signature); err != nil {
		return nil, err
	}

	if req.PurchaseID != "" {
		if s.Purchases == nil {
			return nil, apperr.Wrap(apperr.KindInternal, "purchase linking not configured", nil)
		}
		// NotFound or Forbidden when the purchase is not the caller's.
		if _, err := s.Purchases.GetPurchase(ctx, principal, req.PurchaseID); err != nil {
			s.Logger.LogSecurity("PAYMENT_PURCHASE_REJECTED", fmt.Sprintf("user=%s purchase=%s: %v", principal.ID, req.PurchaseID, err))
			return nil, err
		}
	}

	signature := strings.ToLower(req.Signature)
	_, err := s.Store.GetPaymentBySignature(ctx, signature)
	switch {
	case err == nil:
		return nil, apperr.ErrDuplicateSignature
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	payment := &models.Payment{
		ID:                utils.NewID(),
		UserID:            principal.ID,
		ExternalPaymentID: req.PaymentID,
		ExternalOrderID:   req.OrderID,
		Signature:         signature,
		PurchaseID:        req.PurchaseID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.Store.SavePayment(ctx, payment); err != nil {
		return nil, err
	}
	s.Logger.Info("PAYMENT", fmt.Sprintf("Payment %s verified for order %s", payment.ExternalPaymentID, payment.ExternalOrderID))

	if req.PurchaseID != "" {
		if err := s.Purchases.MarkPaid(ctx, req.PurchaseID, principal.ID); err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Payment %s recorded but purchase %s not marked paid: %v", payment.ID, req.PurchaseID, err))
		}
	}

	if err := s.Kafka.PublishPaymentVerified(ctx, models.PaymentEvent{
		PaymentID:  payment.ExternalPaymentID,
		OrderID:    payment.ExternalOrderID,
		UserID:     payment.UserID,
		PurchaseID: payment.PurchaseID,
		Timestamp:  payment.CreatedAt,
	}); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish payment %s: %v", payment.ID, err))
	}

	return payment, nil
}

// ListPayments returns the caller's recorded payments, newest first.
func (s *Settlement) ListPayments(ctx context.Context, principal models.Principal) ([]models.Payment, error) {
	if principal.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return s.Store.ListPaymentsByUser(ctx, principal.ID)
}
