package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

type Store interface {
	SavePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentBySignature(ctx context.Context, signature string) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error)
	HealthCheck(ctx context.Context) error
}

// BunStore keeps payment records in the service database.
type BunStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewBunStore(db *bun.DB, log *logger.Logger) *BunStore {
	return &BunStore{db: db, log: log}
}

// SavePayment inserts a payment. Any reuse of the external payment id, order
// id or signature is reported as apperr.ErrDuplicateSignature.
func (s *BunStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	_, err := s.db.NewInsert().Model(payment).Exec(ctx)
	if database.IsUniqueViolation(err) {
		s.log.LogSecurity("DUPLICATE_PAYMENT", fmt.Sprintf("order=%s payment=%s", payment.ExternalOrderID, payment.ExternalPaymentID))
		return apperr.ErrDuplicateSignature
	}
	if database.IsForeignKeyViolation(err) {
		return apperr.NotFound("purchase %s not found", payment.PurchaseID)
	}
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", payment.ID, err)
	}
	s.log.LogDatabase("INSERT", "payments", payment.ID)
	return nil
}

func (s *BunStore) GetPaymentBySignature(ctx context.Context, signature string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.NewSelect().
		Model(&payment).
		Where("signature = ?", signature).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get payment by signature: %w", err)
	}
	return &payment, nil
}

func (s *BunStore) ListPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := s.db.NewSelect().
		Model(&payments).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments for user %s: %w", userID, err)
	}
	return payments, nil
}

func (s *BunStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
