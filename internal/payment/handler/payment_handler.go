package handler

import (
	"fmt"
	"net/http"

	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/payment/services"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
)

type PaymentHandler struct {
	settlement *services.Settlement
	logger     *logger.Logger
}

func NewPaymentHandler(settlement *services.Settlement, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{settlement: settlement, logger: log}
}

// RegisterRoutes expects r to already sit behind the auth middleware.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.Post("/order", h.CreateOrder)
		r.Post("/verify", h.VerifyPayment)
	})
	r.Get("/payments", h.ListPayments)
}

func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	order, err := h.settlement.CreateOrder(r.Context(), req.Amount, req.Currency)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("CreateOrder failed: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "order created", utils.Payload{"order": order})
}

func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req models.VerifyPaymentRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	payment, err := h.settlement.RecordPayment(r.Context(), principal, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "payment verified", utils.Payload{"payment": payment})
}

func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	payments, err := h.settlement.ListPayments(r.Context(), principal)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "payments fetched", utils.Payload{"payments": payments})
}
