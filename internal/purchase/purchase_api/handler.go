package purchase_api

import (
	"fmt"
	"net/http"

	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/purchase"
	qr "ms-boxoffice/internal/purchase/qr_generator"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	PurchaseService *purchase.Service
	QRGenerator     *qr.QRGenerator
	Logger          *logger.Logger
}

func NewHandler(svc *purchase.Service, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{PurchaseService: svc, QRGenerator: qrGen, Logger: log}
}

// RegisterRoutes expects r to already sit behind the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/purchase/{ticketId}", h.Purchase)
	r.Post("/purchase/event/{eventId}", h.PurchaseByType)

	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.ListPurchases)
		r.Get("/{purchaseId}", h.GetPurchase)
		r.Get("/{purchaseId}/qr", h.GetPurchaseQR)
	})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	principal, _ := auth.PrincipalFrom(r.Context())

	var req models.PurchaseRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	p, err := h.PurchaseService.Purchase(r.Context(), principal, ticketID, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "purchase successful", utils.Payload{"purchase": p.ToResponse()})
}

func (h *Handler) PurchaseByType(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	principal, _ := auth.PrincipalFrom(r.Context())

	var req models.PurchaseRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	p, err := h.PurchaseService.PurchaseByType(r.Context(), principal, eventID, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "purchase successful", utils.Payload{"purchase": p.ToResponse()})
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	list, err := h.PurchaseService.ListPurchases(r.Context(), principal)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPurchases: user=%s: %v", principal.ID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "purchases fetched", utils.Payload{"purchases": list})
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")
	principal, _ := auth.PrincipalFrom(r.Context())

	p, err := h.PurchaseService.GetPurchase(r.Context(), principal, purchaseID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "purchase fetched", utils.Payload{"purchase": p})
}

func (h *Handler) GetPurchaseQR(w http.ResponseWriter, r *http.Request) {
	purchaseID := chi.URLParam(r, "purchaseId")
	principal, _ := auth.PrincipalFrom(r.Context())

	p, err := h.PurchaseService.GetPurchase(r.Context(), principal, purchaseID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	png, err := h.QRGenerator.GeneratePassQR(p)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetPurchaseQR: purchase=%s: %v", purchaseID, err))
		utils.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "pass-"+p.ID+".png"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
