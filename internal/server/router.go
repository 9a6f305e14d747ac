package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	analytics "ms-boxoffice/internal/analytics/api"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/logger"
	payment "ms-boxoffice/internal/payment/handler"
	"ms-boxoffice/internal/purchase/purchase_api"
	"ms-boxoffice/internal/tickets/ticket_api"
	"ms-boxoffice/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a backing service is reachable.
type Pinger func(ctx context.Context) error

type Deps struct {
	Logger    *logger.Logger
	Verifier  auth.Verifier
	Tickets   *ticket_api.Handler
	Purchase  *purchase_api.Handler
	Payment   *payment.PaymentHandler
	Analytics *analytics.Handler // optional
	// Checks feed /health; a failing check turns it into a 503.
	Checks map[string]Pinger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(d.Logger), requestLogger(d.Logger))

	r.Get("/health", health(d.Checks))

	authn := auth.Middleware(d.Verifier, d.Logger)
	d.Tickets.RegisterRoutes(r, authn)

	r.Group(func(r chi.Router) {
		r.Use(authn)
		d.Purchase.RegisterRoutes(r)
		d.Payment.RegisterRoutes(r)
		if d.Analytics != nil {
			d.Analytics.RegisterRoutes(r)
		}
	})

	return r
}

func health(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		msg := "healthy"
		if status != http.StatusOK {
			msg = "degraded"
		}
		utils.WriteJSON(w, status, msg, utils.Payload{"checks": results})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprint(rec.status), time.Since(start).String())
		})
	}
}

func recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					log.Error("HTTP", fmt.Sprintf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rv, debug.Stack()))
					utils.WriteError(w, fmt.Errorf("panic: %v", rv))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
