// Package purchase coordinates a ticket purchase across the inventory ledger,
// the purchase records and the read cache.
package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/cache"
	"ms-boxoffice/internal/kafka"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/utils"
)

// Purchase attempt states, as written to the PURCHASE log category.
const (
	StateValidating = "VALIDATING"
	StateReserving  = "RESERVING"
	StateRecording  = "RECORDING"
	StateCommitted  = "COMMITTED"
	StateRejected   = "REJECTED"
	StateReleased   = "RELEASED"
)

const releaseTimeout = 5 * time.Second

type Ledger interface {
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	FindTicket(ctx context.Context, eventID, ticketType string) (*models.Ticket, error)
	Reserve(ctx context.Context, ticketID string, quantity int) (*models.Ticket, error)
	Release(ctx context.Context, ticketID string, quantity int) error
}

type DBLayer interface {
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	GetPurchaseByID(ctx context.Context, id string) (*models.Purchase, error)
	ListPurchasesByUser(ctx context.Context, userID string) ([]models.Purchase, error)
	MarkPaid(ctx context.Context, purchaseID, userID string) error
}

type Service struct {
	Ledger     Ledger
	DB         DBLayer
	Cache      cache.Store
	Kafka      kafka.Publisher
	Logger     *logger.Logger
	ListingTTL time.Duration
}

func NewService(ledger Ledger, db DBLayer, store cache.Store, publisher kafka.Publisher, log *logger.Logger, listingTTL time.Duration) *Service {
	if store == nil {
		store = cache.NopStore{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if publisher == nil {
		publisher = &kafka.NopPublisher{Logger: log}
	}
	if listingTTL <= 0 {
		listingTTL = cache.ListingTTL
	}
	return &Service{Ledger: ledger, DB: db, Cache: store, Kafka: publisher, Logger: log, ListingTTL: listingTTL}
}

// Purchase buys req.TicketsQuantity units of ticketID for principal. Either a
// purchase record exists and inventory dropped by exactly that quantity, or
// inventory is unchanged and a typed error is returned.
func (s *Service) Purchase(ctx context.Context, principal models.Principal, ticketID string, req models.PurchaseRequest) (*models.Purchase, error) {
	attemptID := utils.NewID()

	// Step 1: validate the request against the authoritative row
	s.Logger.LogPurchase(StateValidating, attemptID, fmt.Sprintf("user=%s ticket=%s qty=%d", principal.ID, ticketID, req.TicketsQuantity))
	if principal.ID == "" {
		return nil, s.reject(attemptID, apperr.ErrUnauthorized)
	}
	if strings.TrimSpace(ticketID) == "" {
		return nil, s.reject(attemptID, apperr.InvalidInput("ticketId is required"))
	}
	if req.TicketsQuantity <= 0 {
		return nil, s.reject(attemptID, apperr.InvalidInput("ticketsQuantity must be a positive integer"))
	}

	ticket, err := s.Ledger.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, s.reject(attemptID, err)
	}
	if req.TicketType != "" && req.TicketType != ticket.TicketType {
		return nil, s.reject(attemptID, apperr.InvalidInput("ticketType %q does not match ticket %s", req.TicketType, ticketID))
	}
	// Informational only; Reserve is the authoritative check.
	if req.TicketsQuantity > ticket.AvailableQuantity {
		return nil, s.reject(attemptID, apperr.Wrap(apperr.KindInsufficientInventory,
			fmt.Sprintf("not enough tickets: requested %d, available %d", req.TicketsQuantity, ticket.AvailableQuantity), nil))
	}

	// Step 2: atomically take the quantity from inventory
	s.Logger.LogPurchase(StateReserving, attemptID, fmt.Sprintf("reserving %d of %s", req.TicketsQuantity, ticketID))
	reserved, err := s.Ledger.Reserve(ctx, ticketID, req.TicketsQuantity)
	if err != nil {
		return nil, s.reject(attemptID, err)
	}

	// Step 3: record the purchase at the price captured by the reservation
	s.Logger.LogPurchase(StateRecording, attemptID, fmt.Sprintf("unit price %.2f", reserved.UnitPrice))
	purchase := &models.Purchase{
		ID:            attemptID,
		UserID:        principal.ID,
		TicketID:      reserved.ID,
		EventID:       reserved.EventID,
		TicketType:    reserved.TicketType,
		Quantity:      req.TicketsQuantity,
		UnitPrice:     reserved.UnitPrice,
		TotalPrice:    reserved.UnitPrice * float64(req.TicketsQuantity),
		PaymentStatus: models.PaymentPending,
		PurchasedAt:   time.Now().UTC(),
	}
	if err := s.DB.CreatePurchase(ctx, purchase); err != nil {
		s.compensate(ctx, attemptID, reserved, req.TicketsQuantity)
		return nil, s.reject(attemptID, apperr.Persistence("failed to record purchase", err))
	}

	// Step 4: drop every cached view that still shows the old availability
	cache.Invalidate(ctx, s.Cache, s.Logger,
		cache.EventTicketsKey(reserved.EventID),
		cache.TicketKey(reserved.ID),
		cache.UserPurchasesKey(principal.ID),
		cache.EventSalesKey(reserved.EventID),
	)
	s.Logger.LogPurchase(StateCommitted, attemptID, fmt.Sprintf("total %.2f, %d left", purchase.TotalPrice, reserved.AvailableQuantity))

	if err := s.Kafka.PublishPurchaseCreated(ctx, models.PurchaseEvent{
		PurchaseID: purchase.ID,
		UserID:     purchase.UserID,
		TicketID:   purchase.TicketID,
		EventID:    purchase.EventID,
		Quantity:   purchase.Quantity,
		TotalPrice: purchase.TotalPrice,
		Timestamp:  purchase.PurchasedAt,
	}); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish purchase %s: %v", purchase.ID, err))
	}

	return purchase, nil
}

// PurchaseByType resolves the ticket from its event and type, then purchases it.
func (s *Service) PurchaseByType(ctx context.Context, principal models.Principal, eventID string, req models.PurchaseRequest) (*models.Purchase, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(req.TicketType) == "" {
		return nil, apperr.InvalidInput("eventId and ticketType are required")
	}
	ticket, err := s.Ledger.FindTicket(ctx, eventID, req.TicketType)
	if err != nil {
		return nil, err
	}
	return s.Purchase(ctx, principal, ticket.ID, req)
}

// compensate returns reserved quantity to inventory. It runs even when the
// request context is already cancelled.
func (s *Service) compensate(ctx context.Context, attemptID string, reserved *models.Ticket, quantity int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := s.Ledger.Release(ctx, reserved.ID, quantity); err != nil {
		s.Logger.Error("PURCHASE", fmt.Sprintf("[%s] %s - failed to release %d of %s: %v", StateReleased, attemptID, quantity, reserved.ID, err))
		return
	}
	s.Logger.LogPurchase(StateReleased, attemptID, fmt.Sprintf("restored %d to %s", quantity, reserved.ID))
}

func (s *Service) reject(attemptID string, err error) error {
	s.Logger.LogPurchase(StateRejected, attemptID, err.Error())
	return err
}

func (s *Service) ListPurchases(ctx context.Context, principal models.Principal) ([]models.Purchase, error) {
	if principal.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	return cache.GetOrLoad(ctx, s.Cache, s.Logger, cache.UserPurchasesKey(principal.ID), s.ListingTTL,
		func(ctx context.Context) ([]models.Purchase, error) {
			return s.DB.ListPurchasesByUser(ctx, principal.ID)
		})
}

// GetPurchase returns one of the caller's purchases.
func (s *Service) GetPurchase(ctx context.Context, principal models.Principal, purchaseID string) (*models.Purchase, error) {
	if principal.ID == "" {
		return nil, apperr.ErrUnauthorized
	}
	purchase, err := cache.GetOrLoad(ctx, s.Cache, s.Logger, cache.PurchaseKey(purchaseID), s.ListingTTL,
		func(ctx context.Context) (*models.Purchase, error) {
			return s.DB.GetPurchaseByID(ctx, purchaseID)
		})
	if err != nil {
		return nil, err
	}
	if purchase.UserID != principal.ID {
		return nil, apperr.Forbidden("purchase %s belongs to another user", purchaseID)
	}
	return purchase, nil
}

// MarkPaid records a verified payment against the user's purchase.
func (s *Service) MarkPaid(ctx context.Context, purchaseID, userID string) error {
	if err := s.DB.MarkPaid(ctx, purchaseID, userID); err != nil {
		return err
	}
	s.Logger.LogPurchase("PAID", purchaseID, fmt.Sprintf("user=%s", userID))

	keys := []string{cache.UserPurchasesKey(userID), cache.PurchaseKey(purchaseID)}
	if purchase, err := s.DB.GetPurchaseByID(ctx, purchaseID); err == nil {
		keys = append(keys, cache.EventSalesKey(purchase.EventID))
	} else {
		s.Logger.Warn("PURCHASE", fmt.Sprintf("Purchase %s paid but its event report was not refreshed: %v", purchaseID, err))
	}
	cache.Invalidate(ctx, s.Cache, s.Logger, keys...)
	return nil
}
