package api

import (
	"net/http"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/auth"
)

const defaultAnalyticsWindow = 30 * 24 * time.Hour

// AdminAnalytics reports marketplace sales between ?from and ?to (RFC3339),
// defaulting to the last 30 days.
func (h *Handler) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Accounts.RequireAdmin(ctx, auth.UserID(ctx)); err != nil {
		h.fail(w, r, "Could not load analytics", err)
		return
	}

	to := time.Now().UTC()
	from := to.Add(-defaultAnalyticsWindow)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			h.fail(w, r, "Invalid request", apperr.Validation("from must be an RFC3339 timestamp"))
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			h.fail(w, r, "Invalid request", apperr.Validation("to must be an RFC3339 timestamp"))
			return
		}
	}

	summary, err := h.Analytics.GetSummary(ctx, from, to)
	if err != nil {
		h.fail(w, r, "Could not load analytics", err)
		return
	}
	h.ok(w, http.StatusOK, "Marketplace analytics", summary)
}

func (h *Handler) MyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Analytics.GetSellerStats(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Could not load stats", err)
		return
	}
	h.ok(w, http.StatusOK, "Seller stats", stats)
}
