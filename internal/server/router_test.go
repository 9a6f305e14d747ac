package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-boxoffice/internal/analytics"
	analyticsapi "ms-boxoffice/internal/analytics/api"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/cache"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/payment/handler"
	"ms-boxoffice/internal/payment/services"
	"ms-boxoffice/internal/payment/storage"
	"ms-boxoffice/internal/purchase"
	purchasedb "ms-boxoffice/internal/purchase/db"
	"ms-boxoffice/internal/purchase/purchase_api"
	qr "ms-boxoffice/internal/purchase/qr_generator"
	"ms-boxoffice/internal/testutil"
	ticketdb "ms-boxoffice/internal/tickets/db"
	tickets "ms-boxoffice/internal/tickets/service"
	"ms-boxoffice/internal/tickets/ticket_api"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "router-secret"

func token(t *testing.T, sub, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func newTestRouter(t *testing.T, checks map[string]Pinger) http.Handler {
	t.Helper()
	db := testutil.NewTestDB(t)
	log := logger.NewNop()
	store := cache.NewMemoryStore()

	purchaseSvc := purchase.NewService(inventory.NewLedger(db), &purchasedb.DB{Bun: db}, store, nil, log, time.Hour)
	settlement := services.NewSettlement(nil, storage.NewBunStore(db, log), purchaseSvc, nil, log, "pay-secret", "inr")

	reports := analytics.NewService(analytics.NewDB(db), store, log, time.Minute)

	return NewRouter(Deps{
		Logger:    log,
		Verifier:  auth.NewJWTVerifier(jwtSecret),
		Tickets:   ticket_api.NewHandler(tickets.NewTicketService(&ticketdb.DB{Bun: db}, store, log, time.Hour), log),
		Purchase:  purchase_api.NewHandler(purchaseSvc, qr.NewQRGenerator("qr"), log),
		Payment:   handler.NewPaymentHandler(settlement, log),
		Analytics: analyticsapi.NewHandler(reports, log),
		Checks:    checks,
	})
}

func call(t *testing.T, h http.Handler, method, path, body, bearer string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return rr.Code, resp
}

func TestHealth(t *testing.T) {
	ok := newTestRouter(t, map[string]Pinger{"db": func(context.Context) error { return nil }})
	code, resp := call(t, ok, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["checks"].(map[string]any)["db"])

	down := newTestRouter(t, map[string]Pinger{"cache": func(context.Context) error { return errors.New("refused") }})
	code, resp = call(t, down, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, resp["status"])
}

func TestEndToEndPurchaseAndSettle(t *testing.T) {
	router := newTestRouter(t, nil)
	admin := token(t, "admin-1", "ADMIN")
	user := token(t, "user-1", "USER")

	code, _ := call(t, router, http.MethodPost, "/tickets/event-1", `{"ticketType":"GA","unitPrice":100,"availableQuantity":5}`, user)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := call(t, router, http.MethodPost, "/tickets/event-1", `{"ticketType":"GA","unitPrice":100,"availableQuantity":5}`, admin)
	require.Equal(t, http.StatusCreated, code)
	ticketID := resp["ticket"].(map[string]any)["id"].(string)

	// Warm the listing cache.
	code, _ = call(t, router, http.MethodGet, "/tickets/event/event-1", "", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = call(t, router, http.MethodPost, "/purchase/"+ticketID, `{"ticketsQuantity":2}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = call(t, router, http.MethodPost, "/purchase/"+ticketID, `{"ticketType":"GA","ticketsQuantity":2}`, user)
	require.Equal(t, http.StatusCreated, code)
	purchaseID := resp["purchase"].(map[string]any)["id"].(string)

	code, resp = call(t, router, http.MethodGet, "/tickets/event/event-1", "", "")
	require.Equal(t, http.StatusOK, code)
	listing := resp["tickets"].([]any)
	assert.Equal(t, 3.0, listing[0].(map[string]any)["availableQuantity"])

	mac := services.NewSettlement(nil, nil, nil, nil, logger.NewNop(), "pay-secret", "inr").Sign("order_1", "pay_1")
	verify := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"` + mac + `","purchase_id":"` + purchaseID + `"}`
	code, _ = call(t, router, http.MethodPost, "/payment/verify", verify, user)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, router, http.MethodPost, "/payment/verify", verify, user)
	assert.Equal(t, http.StatusConflict, code)

	code, resp = call(t, router, http.MethodGet, "/purchases/"+purchaseID, "", user)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", resp["purchase"].(map[string]any)["paymentStatus"])

	code, _ = call(t, router, http.MethodGet, "/analytics/events/event-1", "", user)
	assert.Equal(t, http.StatusForbidden, code)
	code, resp = call(t, router, http.MethodGet, "/analytics/events/event-1", "", admin)
	require.Equal(t, http.StatusOK, code)
	report := resp["analytics"].(map[string]any)
	assert.Equal(t, 2.0, report["total_tickets_sold"])
	assert.Equal(t, 200.0, report["paid_revenue"])

	// No gateway configured.
	code, resp = call(t, router, http.MethodPost, "/payment/order", `{"amount":10}`, user)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", resp["message"])
}
