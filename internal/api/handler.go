// Package api exposes the marketplace over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ms-resale/internal/account"
	"ms-resale/internal/analytics"
	"ms-resale/internal/auth"
	"ms-resale/internal/dispute"
	"ms-resale/internal/escrow"
	"ms-resale/internal/listing"
	"ms-resale/internal/logger"
	"ms-resale/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Escrow    *escrow.EscrowService
	Disputes  *dispute.DisputeService
	Listings  *listing.ListingService
	Accounts  *account.AccountService
	Analytics *analytics.Service
	Health    Pinger
	Logger    *logger.Logger
}

// NewRouter registers every route. verifier authenticates the protected ones.
func NewRouter(h *Handler, verifier auth.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	// --- Public Routes ---
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/otp", h.RequestOTP)
		r.Post("/auth/verify", h.VerifyOTP)
		r.Get("/tickets", h.BrowseTickets)
		r.Get("/tickets/{id}", h.GetTicket)

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, h.unauthorized))

			r.Post("/tickets", h.CreateTicket)
			r.Patch("/tickets/{id}", h.UpdateTicket)
			r.Delete("/tickets/{id}", h.CancelTicket)

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", h.Purchase)
				r.Get("/{id}", h.GetTransaction)
				r.Get("/{id}/payment-qr", h.PaymentQR)
				r.Patch("/{id}/payment-proof", h.SubmitPaymentProof)
				r.Patch("/{id}/confirm", h.ConfirmReceipt)
				r.Patch("/{id}/ticket-sent", h.MarkTicketSent)
				r.Patch("/{id}/complete", h.Complete)
				r.Get("/{id}/disputes", h.ListTransactionDisputes)
			})

			r.Post("/disputes", h.FileDispute)
			r.Get("/disputes/{id}", h.GetDispute)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.GetMe)
				r.Patch("/", h.UpdateMe)
				r.Get("/tickets", h.MyTickets)
				r.Get("/purchases", h.MyPurchases)
				r.Get("/sales", h.MySales)
				r.Get("/verifications", h.MyVerifications)
				r.Post("/verifications", h.SubmitVerification)
				r.Get("/stats", h.MyStats)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/disputes", h.AdminListDisputes)
				r.Patch("/disputes/{id}/investigate", h.InvestigateDispute)
				r.Patch("/disputes/{id}/resolve", h.ResolveDispute)
				r.Get("/verifications", h.AdminListVerifications)
				r.Patch("/verifications/{id}/approve", h.ApproveVerification)
				r.Patch("/verifications/{id}/reject", h.RejectVerification)
				r.Get("/analytics", h.AdminAnalytics)
			})
		})
	})

	return r
}

// observe records latency per route pattern and logs every request.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.ObserveHTTP(r.Method, route, status, elapsed)
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(status), elapsed.String())
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Logger.Error("HEALTH", fmt.Sprintf("store ping failed: %v", err))
			h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse("Unhealthy", "entity store unreachable", "storage"))
			return
		}
	}
	h.ok(w, http.StatusOK, "OK", nil)
}
