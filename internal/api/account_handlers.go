package api

import (
	"net/http"

	"ms-resale/internal/account"
	"ms-resale/internal/auth"
	"ms-resale/internal/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req account.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	user, err := h.Accounts.UpdateProfile(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, r, "Could not update profile", err)
		return
	}
	h.ok(w, http.StatusOK, "Profile updated", user)
}

func (h *Handler) MyVerifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Accounts.ListVerifications(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Could not list verifications", err)
		return
	}
	h.ok(w, http.StatusOK, "Your verifications", list)
}

// SubmitVerification accepts JSON for bank links and a multipart form with a
// document file for identity documents.
func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	var req account.VerificationRequest
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			h.fail(w, r, "Invalid request", err)
			return
		}
		doc, err := formFile(r, "document")
		if err != nil {
			h.fail(w, r, "Invalid request", err)
			return
		}
		req = account.VerificationRequest{
			Type:     models.VerificationType(r.FormValue("verification_type")),
			Bank:     r.FormValue("bank"),
			Last4:    r.FormValue("last4"),
			FullName: r.FormValue("full_name"),
			Document: doc,
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}

	v, err := h.Accounts.SubmitVerification(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, r, "Could not submit verification", err)
		return
	}
	h.ok(w, http.StatusCreated, "Verification submitted", v)
}

func (h *Handler) AdminListVerifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Accounts.ListPending(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Could not list verifications", err)
		return
	}
	h.ok(w, http.StatusOK, "Pending verifications", list)
}

func (h *Handler) ApproveVerification(w http.ResponseWriter, r *http.Request) {
	v, err := h.Accounts.Approve(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Could not approve verification", err)
		return
	}
	h.ok(w, http.StatusOK, "Verification approved", v)
}

func (h *Handler) RejectVerification(w http.ResponseWriter, r *http.Request) {
	v, err := h.Accounts.Reject(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Could not reject verification", err)
		return
	}
	h.ok(w, http.StatusOK, "Verification rejected", v)
}
