package ticket_api

import (
	"fmt"
	"net/http"

	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	tickets "ms-boxoffice/internal/tickets/service"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

// RegisterRoutes mounts the catalog under /tickets. Reads are public; writes
// go through authn and the admin check. The shared {id} segment is the event
// id for POST and the ticket id otherwise.
func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/event/{eventId}", h.ListTicketsByEvent)
		r.Get("/{id}", h.GetTicket)

		r.Group(func(r chi.Router) {
			r.Use(authn, auth.RequireAdmin)
			r.Post("/{id}", h.CreateTicket)
			r.Put("/{id}", h.UpdateTicket)
			r.Delete("/{id}", h.DeleteTicket)
		})
	})
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	principal, _ := auth.PrincipalFrom(r.Context())

	var req models.CreateTicketRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	ticket, err := h.TicketService.CreateTicket(r.Context(), principal, eventID, req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateTicket: event=%s: %v", eventID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "ticket created", utils.Payload{"ticket": ticket})
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	ticket, err := h.TicketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "ticket fetched", utils.Payload{"ticket": ticket})
}

func (h *Handler) ListTicketsByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	list, err := h.TicketService.ListTicketsByEvent(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListTicketsByEvent: event=%s: %v", eventID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "tickets fetched", utils.Payload{"tickets": list})
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	principal, _ := auth.PrincipalFrom(r.Context())

	var req models.UpdateTicketRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	ticket, err := h.TicketService.UpdateTicket(r.Context(), principal, ticketID, req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateTicket: ticket=%s: %v", ticketID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "ticket updated", utils.Payload{"ticket": ticket})
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")
	principal, _ := auth.PrincipalFrom(r.Context())

	if err := h.TicketService.DeleteTicket(r.Context(), principal, ticketID); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("DeleteTicket: ticket=%s: %v", ticketID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "ticket deleted", nil)
}
