package api

import (
	"net/http"

	"ms-resale/internal/auth"
)

type otpRequest struct {
	Phone string `json:"phone"`
}

type verifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var body otpRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	if err := h.Accounts.RequestCode(r.Context(), body.Phone); err != nil {
		h.fail(w, r, "Could not send code", err)
		return
	}
	h.ok(w, http.StatusAccepted, "Code sent", nil)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyRequest
	if err := decodeJSON(w, r, &body); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	session, err := h.Accounts.Login(r.Context(), body.Phone, body.Code)
	if err != nil {
		h.fail(w, r, "Sign-in failed", err)
		return
	}
	h.ok(w, http.StatusOK, "Signed in", session)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Profile not available", err)
		return
	}
	h.ok(w, http.StatusOK, "Profile", user)
}
