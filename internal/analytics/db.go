package analytics

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// TypeSalesData is one ticket type's aggregated purchases.
type TypeSalesData struct {
	TicketID    string  `bun:"ticket_id"`
	TicketType  string  `bun:"ticket_type"`
	TicketsSold int     `bun:"tickets_sold"`
	Revenue     float64 `bun:"revenue"`
	PaidRevenue float64 `bun:"paid_revenue"`
}

// DailySalesData represents raw daily sales metrics from the database
type DailySalesData struct {
	SalesDate     time.Time `bun:"sales_date"`
	DailyRevenue  float64   `bun:"daily_revenue"`
	DailyQuantity int       `bun:"daily_quantity"`
}

// OwnsEvent reports whether organizerID has at least one ticket type on eventID.
func (db *DB) OwnsEvent(ctx context.Context, eventID, organizerID string) (bool, error) {
	exists, err := db.bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("organizer_id = ?", organizerID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check event owner: %w", err)
	}
	return exists, nil
}

func (db *DB) GetSalesByType(ctx context.Context, eventID string) ([]TypeSalesData, error) {
	sales := []TypeSalesData{}
	err := db.bun.NewSelect().
		Model((*models.Purchase)(nil)).
		ColumnExpr("ticket_id, ticket_type").
		ColumnExpr("SUM(quantity) AS tickets_sold").
		ColumnExpr("SUM(total_price) AS revenue").
		ColumnExpr("SUM(CASE WHEN payment_status = ? THEN total_price ELSE 0 END) AS paid_revenue", models.PaymentPaid).
		Where("event_id = ?", eventID).
		Group("ticket_id", "ticket_type").
		Order("ticket_type ASC").
		Scan(ctx, &sales)
	if err != nil {
		return nil, fmt.Errorf("sales by type for event %s: %w", eventID, err)
	}
	return sales, nil
}

// GetDailySales retrieves daily sales metrics for an event
func (db *DB) GetDailySales(ctx context.Context, eventID string) ([]DailySalesData, error) {
	daily := []DailySalesData{}
	err := db.bun.NewRaw(`
		SELECT
			DATE(purchased_at) AS sales_date,
			SUM(total_price) AS daily_revenue,
			SUM(quantity) AS daily_quantity
		FROM
			purchases
		WHERE
			event_id = ?
		GROUP BY
			DATE(purchased_at)
		ORDER BY
			DATE(purchased_at)
	`, eventID).Scan(ctx, &daily)
	if err != nil {
		return nil, fmt.Errorf("daily sales for event %s: %w", eventID, err)
	}
	return daily, nil
}
