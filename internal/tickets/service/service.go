package tickets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/cache"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/utils"
)

type TicketDBLayer interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket, expectedVersion int64) error
	DeleteTicket(ctx context.Context, ticketID string) error
}

type TicketService struct {
	DB         TicketDBLayer
	Cache      cache.Store
	Logger     *logger.Logger
	ListingTTL time.Duration
}

func NewTicketService(db TicketDBLayer, store cache.Store, log *logger.Logger, listingTTL time.Duration) *TicketService {
	if store == nil {
		store = cache.NopStore{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if listingTTL <= 0 {
		listingTTL = cache.ListingTTL
	}
	return &TicketService{DB: db, Cache: store, Logger: log, ListingTTL: listingTTL}
}

func (s *TicketService) CreateTicket(ctx context.Context, principal models.Principal, eventID string, req models.CreateTicketRequest) (*models.Ticket, error) {
	if !principal.IsAdmin() {
		return nil, apperr.Forbidden("only admins can create tickets")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperr.InvalidInput("eventId is required")
	}
	ticketType := strings.TrimSpace(req.TicketType)
	if ticketType == "" {
		return nil, apperr.InvalidInput("ticketType is required")
	}
	if err := validatePriceAndQuantity(req.UnitPrice, req.AvailableQuantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ticket := &models.Ticket{
		ID:                utils.NewID(),
		EventID:           eventID,
		OrganizerID:       principal.ID,
		TicketType:        ticketType,
		UnitPrice:         req.UnitPrice,
		AvailableQuantity: req.AvailableQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.DB.CreateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.Logger.Info("TICKET", fmt.Sprintf("Created %s ticket %s for event %s (%d available)", ticket.TicketType, ticket.ID, eventID, ticket.AvailableQuantity))
	cache.Invalidate(ctx, s.Cache, s.Logger, cache.EventTicketsKey(eventID))
	return ticket, nil
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return cache.GetOrLoad(ctx, s.Cache, s.Logger, cache.TicketKey(ticketID), s.ListingTTL,
		func(ctx context.Context) (*models.Ticket, error) {
			return s.DB.GetTicketByID(ctx, ticketID)
		})
}

func (s *TicketService) ListTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	return cache.GetOrLoad(ctx, s.Cache, s.Logger, cache.EventTicketsKey(eventID), s.ListingTTL,
		func(ctx context.Context) ([]models.Ticket, error) {
			return s.DB.ListTicketsByEvent(ctx, eventID)
		})
}

// UpdateTicket applies a partial edit. Existing purchases keep the price they
// were recorded with.
func (s *TicketService) UpdateTicket(ctx context.Context, principal models.Principal, ticketID string, req models.UpdateTicketRequest) (*models.Ticket, error) {
	ticket, err := s.ownedTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}

	if req.TicketType != nil {
		ticketType := strings.TrimSpace(*req.TicketType)
		if ticketType == "" {
			return nil, apperr.InvalidInput("ticketType must not be empty")
		}
		ticket.TicketType = ticketType
	}
	if req.UnitPrice != nil {
		ticket.UnitPrice = *req.UnitPrice
	}
	if req.AvailableQuantity != nil {
		ticket.AvailableQuantity = *req.AvailableQuantity
	}
	if err := validatePriceAndQuantity(ticket.UnitPrice, ticket.AvailableQuantity); err != nil {
		return nil, err
	}

	expected := ticket.Version
	ticket.Version++
	ticket.UpdatedAt = time.Now().UTC()
	if err := s.DB.UpdateTicket(ctx, ticket, expected); err != nil {
		return nil, err
	}

	s.Logger.Info("TICKET", fmt.Sprintf("Updated ticket %s", ticket.ID))
	cache.Invalidate(ctx, s.Cache, s.Logger, cache.EventTicketsKey(ticket.EventID), cache.TicketKey(ticket.ID))
	return ticket, nil
}

func (s *TicketService) DeleteTicket(ctx context.Context, principal models.Principal, ticketID string) error {
	ticket, err := s.ownedTicket(ctx, principal, ticketID)
	if err != nil {
		return err
	}
	if err := s.DB.DeleteTicket(ctx, ticket.ID); err != nil {
		return err
	}

	s.Logger.Info("TICKET", fmt.Sprintf("Deleted ticket %s", ticket.ID))
	cache.Invalidate(ctx, s.Cache, s.Logger, cache.EventTicketsKey(ticket.EventID), cache.TicketKey(ticket.ID))
	return nil
}

// ownedTicket reads the authoritative row; ownership checks must not trust the cache.
func (s *TicketService) ownedTicket(ctx context.Context, principal models.Principal, ticketID string) (*models.Ticket, error) {
	if !principal.IsAdmin() {
		return nil, apperr.Forbidden("only admins can modify tickets")
	}
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OrganizerID != principal.ID {
		return nil, apperr.Forbidden("ticket %s belongs to another organizer", ticketID)
	}
	return ticket, nil
}

func validatePriceAndQuantity(unitPrice float64, quantity int) error {
	if unitPrice < 0 {
		return apperr.InvalidInput("unitPrice must not be negative")
	}
	if quantity < 0 {
		return apperr.InvalidInput("availableQuantity must not be negative")
	}
	return nil
}
