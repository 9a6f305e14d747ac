package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if _, err := d.Bun.NewInsert().Model(purchase).Exec(ctx); err != nil {
		return fmt.Errorf("insert purchase %s: %w", purchase.ID, err)
	}
	return nil
}

func (d *DB) GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := d.Bun.NewSelect().
		Model(&purchase).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("purchase %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase %s: %w", id, err)
	}
	return &purchase, nil
}

func (d *DB) ListPurchasesByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	purchases := []models.Purchase{}
	err := d.Bun.NewSelect().
		Model(&purchases).
		Where("user_id = ?", userID).
		Order("purchased_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list purchases for user %s: %w", userID, err)
	}
	return purchases, nil
}

// MarkPaid flips a pending purchase owned by userID to paid. Marking an
// already-paid purchase is a no-op.
func (d *DB) MarkPaid(ctx context.Context, purchaseID, userID string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Purchase)(nil)).
		Set("payment_status = ?", models.PaymentPaid).
		Where("id = ?", purchaseID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark purchase %s paid: %w", purchaseID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("purchase %s not found", purchaseID)
	}
	return nil
}
