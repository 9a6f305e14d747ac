package analytics

import (
	"context"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/cache"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

type DBLayer interface {
	OwnsEvent(ctx context.Context, eventID, organizerID string) (bool, error)
	GetSalesByType(ctx context.Context, eventID string) ([]TypeSalesData, error)
	GetDailySales(ctx context.Context, eventID string) ([]DailySalesData, error)
}

// Service builds sales reports for organizers. Reports are cached for
// ReportTTL; purchases invalidate the event's report on commit and payment.
type Service struct {
	DB        DBLayer
	Cache     cache.Store
	Logger    *logger.Logger
	ReportTTL time.Duration
}

func NewService(db DBLayer, store cache.Store, log *logger.Logger, reportTTL time.Duration) *Service {
	if store == nil {
		store = cache.NopStore{}
	}
	if reportTTL <= 0 {
		reportTTL = cache.SearchTTL
	}
	return &Service{DB: db, Cache: store, Logger: log, ReportTTL: reportTTL}
}

// EventAnalytics represents aggregated sales for an event
type EventAnalytics struct {
	EventID          string              `json:"event_id"`
	TotalRevenue     float64             `json:"total_revenue"`
	PaidRevenue      float64             `json:"paid_revenue"`
	TotalTicketsSold int                 `json:"total_tickets_sold"`
	DailySales       []DailySalesMetrics `json:"daily_sales"`
	SalesByType      []TypeSalesMetrics  `json:"sales_by_type"`
}

type TypeSalesMetrics struct {
	TicketID    string  `json:"ticket_id"`
	TicketType  string  `json:"ticket_type"`
	TicketsSold int     `json:"tickets_sold"`
	Revenue     float64 `json:"revenue"`
}

type DailySalesMetrics struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	TicketsSold int     `json:"tickets_sold"`
}

func (s *Service) GetEventAnalytics(ctx context.Context, principal models.Principal, eventID string) (*EventAnalytics, error) {
	if !principal.IsAdmin() {
		return nil, apperr.Forbidden("only admins can view sales")
	}
	owns, err := s.DB.OwnsEvent(ctx, eventID, principal.ID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, apperr.Forbidden("you do not have permission to access analytics for event %s", eventID)
	}

	return cache.GetOrLoad(ctx, s.Cache, s.Logger, cache.EventSalesKey(eventID), s.ReportTTL,
		func(ctx context.Context) (*EventAnalytics, error) {
			return s.buildReport(ctx, eventID)
		})
}

func (s *Service) buildReport(ctx context.Context, eventID string) (*EventAnalytics, error) {
	byType, err := s.DB.GetSalesByType(ctx, eventID)
	if err != nil {
		return nil, err
	}
	daily, err := s.DB.GetDailySales(ctx, eventID)
	if err != nil {
		return nil, err
	}

	report := &EventAnalytics{
		EventID:     eventID,
		DailySales:  make([]DailySalesMetrics, 0, len(daily)),
		SalesByType: make([]TypeSalesMetrics, 0, len(byType)),
	}
	for _, t := range byType {
		report.TotalRevenue += t.Revenue
		report.PaidRevenue += t.PaidRevenue
		report.TotalTicketsSold += t.TicketsSold
		report.SalesByType = append(report.SalesByType, TypeSalesMetrics{
			TicketID:    t.TicketID,
			TicketType:  t.TicketType,
			TicketsSold: t.TicketsSold,
			Revenue:     t.Revenue,
		})
	}
	for _, d := range daily {
		report.DailySales = append(report.DailySales, DailySalesMetrics{
			Date:        d.SalesDate.Format("2006-01-02"),
			Revenue:     d.DailyRevenue,
			TicketsSold: d.DailyQuantity,
		})
	}
	return report, nil
}
