package api

import (
	"net/http"

	"ms-resale/internal/auth"
	"ms-resale/internal/listing"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) BrowseTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Listings.Browse(r.Context(), r.URL.Query().Get("sort"))
	if err != nil {
		h.fail(w, r, "Could not list tickets", err)
		return
	}
	h.ok(w, http.StatusOK, "Tickets", tickets)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Ticket not available", err)
		return
	}
	h.ok(w, http.StatusOK, "Ticket", ticket)
}

// CreateTicket accepts JSON or a multipart form with an optional
// ticket_proof file.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req listing.CreateRequest
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			h.fail(w, r, "Invalid request", err)
			return
		}
		p := &formParser{r: r}
		req = listing.CreateRequest{
			EventName:     p.String("event_name"),
			EventDate:     p.Time("event_date"),
			Venue:         p.String("venue"),
			OriginalPrice: p.Decimal("original_price"),
			AskingPrice:   p.Decimal("asking_price"),
			TicketType:    p.String("ticket_type"),
			Quantity:      p.Int("quantity"),
			Description:   p.String("description"),
		}
		if p.err != nil {
			h.fail(w, r, "Invalid request", p.err)
			return
		}
		proof, err := formFile(r, "ticket_proof")
		if err != nil {
			h.fail(w, r, "Invalid request", err)
			return
		}
		req.Proof = proof
	} else if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}

	ticket, err := h.Listings.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.fail(w, r, "Could not create listing", err)
		return
	}
	h.ok(w, http.StatusCreated, "Listing created", ticket)
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req listing.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "Invalid request", err)
		return
	}
	ticket, err := h.Listings.Update(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, "Could not update listing", err)
		return
	}
	h.ok(w, http.StatusOK, "Listing updated", ticket)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Listings.Cancel(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Could not cancel listing", err)
		return
	}
	h.ok(w, http.StatusOK, "Listing cancelled", ticket)
}

func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Listings.ListBySeller(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "Could not list tickets", err)
		return
	}
	h.ok(w, http.StatusOK, "Your listings", tickets)
}
