package api

import (
	"context"
	"net/http"

	"ms-resale/internal/apperr"
	"ms-resale/internal/auth"
	"ms-resale/internal/models"

	"github.com/go-chi/chi/v5"
)

type purchaseRequest struct {
	TicketID string `json:"ticket_id"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var body purchaseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	view, err := h.Escrow.Purchase(r.Context(), auth.UserID(r.Context()), body.TicketID)
	if err != nil {
		h.fail(w, r, "Purchase failed", err)
		return
	}
	h.ok(w, http.StatusCreated, "Transaction created", view)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	view, err := h.Escrow.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Transaction not available", err)
		return
	}
	h.ok(w, http.StatusOK, "Transaction", view)
}

func (h *Handler) PaymentQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Escrow.PaymentQR(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Payment code not available", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Warn("API", "PaymentQR: failed to write image: "+err.Error())
	}
}

func (h *Handler) SubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	if !isMultipart(r) {
		h.fail(w, r, "Invalid request", apperr.Validation("payment proof must be sent as multipart field file"))
		return
	}
	if err := parseMultipart(w, r); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	proof, err := formFile(r, "file")
	if err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	if proof == nil {
		h.fail(w, r, "Invalid request", apperr.Validation("file: is required"))
		return
	}

	view, err := h.Escrow.SubmitPaymentProof(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), *proof)
	if err != nil {
		h.fail(w, r, "Could not submit payment proof", err)
		return
	}
	h.ok(w, http.StatusOK, "Payment proof submitted", view)
}

func (h *Handler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "Payment confirmed", h.Escrow.ConfirmReceipt)
}

func (h *Handler) MarkTicketSent(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "Ticket marked as sent", h.Escrow.MarkTicketSent)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, "Transaction completed", h.Escrow.Complete)
}

// step runs an escrow action that takes no request body.
func (h *Handler) step(w http.ResponseWriter, r *http.Request, message string, action func(ctx context.Context, actorID, txnID string) (*models.TransactionView, error)) {
	view, err := action(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Transition rejected", err)
		return
	}
	h.ok(w, http.StatusOK, message, view)
}

func (h *Handler) MyPurchases(w http.ResponseWriter, r *http.Request) {
	views, err := h.Escrow.ListPurchases(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Could not list purchases", err)
		return
	}
	h.ok(w, http.StatusOK, "Your purchases", views)
}

func (h *Handler) MySales(w http.ResponseWriter, r *http.Request) {
	views, err := h.Escrow.ListSales(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Could not list sales", err)
		return
	}
	h.ok(w, http.StatusOK, "Your sales", views)
}
