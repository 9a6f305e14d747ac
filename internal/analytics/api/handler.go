package api

import (
	"fmt"
	"net/http"

	"ms-boxoffice/internal/analytics"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes expects r to already sit behind the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(auth.RequireAdmin).Get("/analytics/events/{eventId}", h.GetEventAnalytics)
}

// GetEventAnalytics handles the sales report request for an event
func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	principal, _ := auth.PrincipalFrom(r.Context())

	report, err := h.Service.GetEventAnalytics(r.Context(), principal, eventID)
	if err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("Event %s report for %s: %v", eventID, principal.ID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "analytics fetched", utils.Payload{"analytics": report})
}
