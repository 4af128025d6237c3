package api

import (
	"net/http"

	"ms-resale/internal/auth"
	"ms-resale/internal/dispute"
	"ms-resale/internal/models"

	"github.com/go-chi/chi/v5"
)

type resolveRequest struct {
	Resolution models.DisputeStatus `json:"resolution"`
	Notes      string               `json:"notes"`
}

// FileDispute accepts JSON or a multipart form whose evidence files are sent
// under the evidence field.
func (h *Handler) FileDispute(w http.ResponseWriter, r *http.Request) {
	var req dispute.FileRequest
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			h.fail(w, r, "Invalid request", err)
			return
		}
		evidence, err := formFiles(r, "evidence")
		if err != nil {
			h.fail(w, r, "Invalid request", err)
			return
		}
		req = dispute.FileRequest{
			TransactionID: r.FormValue("transaction_id"),
			Reason:        models.DisputeReason(r.FormValue("reason")),
			Description:   r.FormValue("description"),
			Evidence:      evidence,
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}

	d, err := h.Disputes.File(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, r, "Could not file dispute", err)
		return
	}
	h.ok(w, http.StatusCreated, "Dispute filed", d)
}

func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.Disputes.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Dispute not available", err)
		return
	}
	h.ok(w, http.StatusOK, "Dispute", d)
}

func (h *Handler) ListTransactionDisputes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Disputes.ListByTransaction(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Could not list disputes", err)
		return
	}
	h.ok(w, http.StatusOK, "Disputes", list)
}

func (h *Handler) AdminListDisputes(w http.ResponseWriter, r *http.Request) {
	filter := dispute.Filter(r.URL.Query().Get("filter"))
	list, err := h.Disputes.ListAdmin(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		h.fail(w, r, "Could not list disputes", err)
		return
	}
	h.ok(w, http.StatusOK, "Disputes", list)
}

func (h *Handler) InvestigateDispute(w http.ResponseWriter, r *http.Request) {
	d, err := h.Disputes.Investigate(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Could not start investigation", err)
		return
	}
	h.ok(w, http.StatusOK, "Dispute under investigation", d)
}

func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	d, err := h.Disputes.Resolve(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), body.Resolution, body.Notes)
	if err != nil {
		h.fail(w, r, "Could not resolve dispute", err)
		return
	}
	h.ok(w, http.StatusOK, "Dispute resolved", d)
}
