// Package listing manages resale listings: creation, edits by the owner,
// cancellation and the public browse feed.
package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/blob"
	"ms-resale/internal/events"
	"ms-resale/internal/logger"
	"ms-resale/internal/metrics"
	"ms-resale/internal/models"
	"ms-resale/internal/store"
	"ms-resale/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DBLayer interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	UpdateAvailableTicket(ctx context.Context, ticket *models.Ticket, columns ...string) error
	ListAvailableTickets(ctx context.Context, sort store.TicketSort, now time.Time) ([]models.Ticket, error)
	ListTicketsBySeller(ctx context.Context, sellerID string) ([]models.Ticket, error)
	SellerHasUnresolvedDispute(ctx context.Context, sellerID string) (bool, error)
}

type CreateRequest struct {
	EventName     string          `json:"event_name" validate:"notblank,max=200"`
	EventDate     time.Time       `json:"event_date" validate:"required"`
	Venue         string          `json:"venue" validate:"notblank,max=200"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	AskingPrice   decimal.Decimal `json:"asking_price"`
	TicketType    string          `json:"ticket_type" validate:"max=50"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	Description   string          `json:"description" validate:"max=2000"`
	Proof         *blob.File      `json:"-"`
}

// UpdateRequest carries the fields to change; nil fields are left alone.
type UpdateRequest struct {
	EventName     *string          `json:"event_name" validate:"omitempty,notblank,max=200"`
	EventDate     *time.Time       `json:"event_date"`
	Venue         *string          `json:"venue" validate:"omitempty,notblank,max=200"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	AskingPrice   *decimal.Decimal `json:"asking_price"`
	TicketType    *string          `json:"ticket_type" validate:"omitempty,max=50"`
	Quantity      *int             `json:"quantity" validate:"omitempty,gte=1"`
	Description   *string          `json:"description" validate:"omitempty,max=2000"`
}

type ListingService struct {
	DB     DBLayer
	Blob   blob.Store
	Events *events.Emitter
	Logger *logger.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewListingService(db DBLayer, blobs blob.Store, emitter *events.Emitter, log *logger.Logger) *ListingService {
	return &ListingService{
		DB:     db,
		Blob:   blobs,
		Events: emitter,
		Logger: log,
		Now:    time.Now,
		NewID:  func() string { return uuid.New().String() },
	}
}

func (s *ListingService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create lists tickets for sale. Sellers with an unresolved dispute against
// one of their sales cannot list.
func (s *ListingService) Create(ctx context.Context, sellerID string, req CreateRequest) (*models.Ticket, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := checkPrices(req.AskingPrice, req.OriginalPrice); err != nil {
		return nil, err
	}
	now := s.now()
	if !req.EventDate.After(now) {
		return nil, apperr.Validation("event_date: must be in the future")
	}
	if req.Proof != nil {
		if err := blob.CheckSize(*req.Proof, blob.MaxProofSize); err != nil {
			return nil, err
		}
	}

	if _, err := s.DB.GetUser(ctx, sellerID); err != nil {
		return nil, err
	}
	blocked, err := s.DB.SellerHasUnresolvedDispute(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		s.Logger.LogSecurity("LISTING_BLOCKED", "seller "+sellerID+" has an unresolved dispute")
		return nil, apperr.Permission("sellers with an open dispute cannot create listings")
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	ticket := &models.Ticket{
		ID:            s.NewID(),
		SellerID:      sellerID,
		EventName:     strings.TrimSpace(req.EventName),
		EventDate:     req.EventDate.UTC(),
		Venue:         strings.TrimSpace(req.Venue),
		OriginalPrice: req.OriginalPrice.Round(2),
		AskingPrice:   req.AskingPrice.Round(2),
		TicketType:    strings.TrimSpace(req.TicketType),
		Quantity:      quantity,
		Description:   strings.TrimSpace(req.Description),
		Status:        models.TicketAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.Proof != nil {
		url, err := blob.Put(ctx, s.Blob, blob.BucketTicketProofs, sellerID, *req.Proof, now)
		if err != nil {
			return nil, err
		}
		ticket.TicketProofURL = url
	}

	if err := s.DB.CreateTicket(ctx, ticket); err != nil {
		return nil, err
	}
	metrics.Listing("create")
	s.Logger.LogListing("CREATED", ticket.ID, fmt.Sprintf("%s at %s for %s by %s", ticket.EventName, ticket.Venue, ticket.AskingPrice.StringFixed(2), sellerID))
	s.emit(ctx, events.ListingCreated, ticket, sellerID)
	return ticket, nil
}

// Update edits an available listing owned by sellerID.
func (s *ListingService) Update(ctx context.Context, sellerID, ticketID string, req UpdateRequest) (*models.Ticket, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	ticket, err := s.owned(ctx, sellerID, ticketID)
	if err != nil {
		return nil, err
	}

	var cols []string
	if req.EventName != nil {
		ticket.EventName = strings.TrimSpace(*req.EventName)
		cols = append(cols, "event_name")
	}
	if req.EventDate != nil {
		if !req.EventDate.After(s.now()) {
			return nil, apperr.Validation("event_date: must be in the future")
		}
		ticket.EventDate = req.EventDate.UTC()
		cols = append(cols, "event_date")
	}
	if req.Venue != nil {
		ticket.Venue = strings.TrimSpace(*req.Venue)
		cols = append(cols, "venue")
	}
	if req.OriginalPrice != nil {
		ticket.OriginalPrice = req.OriginalPrice.Round(2)
		cols = append(cols, "original_price")
	}
	if req.AskingPrice != nil {
		ticket.AskingPrice = req.AskingPrice.Round(2)
		cols = append(cols, "asking_price")
	}
	if req.TicketType != nil {
		ticket.TicketType = strings.TrimSpace(*req.TicketType)
		cols = append(cols, "ticket_type")
	}
	if req.Quantity != nil {
		ticket.Quantity = *req.Quantity
		cols = append(cols, "quantity")
	}
	if req.Description != nil {
		ticket.Description = strings.TrimSpace(*req.Description)
		cols = append(cols, "description")
	}
	if len(cols) == 0 {
		return nil, apperr.Validation("nothing to update")
	}
	if err := checkPrices(ticket.AskingPrice, ticket.OriginalPrice); err != nil {
		return nil, err
	}

	ticket.UpdatedAt = s.now()
	cols = append(cols, "updated_at")
	if err := s.DB.UpdateAvailableTicket(ctx, ticket, cols...); err != nil {
		return nil, err
	}
	metrics.Listing("update")
	s.Logger.LogListing("UPDATED", ticket.ID, strings.Join(cols, ","))
	s.emit(ctx, events.ListingUpdated, ticket, sellerID)
	return ticket, nil
}

// Cancel withdraws an available listing owned by sellerID.
func (s *ListingService) Cancel(ctx context.Context, sellerID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.owned(ctx, sellerID, ticketID)
	if err != nil {
		return nil, err
	}

	// UpdateAvailableTicket matches on the old status, so the new one only
	// reaches the row if nobody bought the listing first.
	ticket.Status = models.TicketCancelled
	ticket.UpdatedAt = s.now()
	if err := s.DB.UpdateAvailableTicket(ctx, ticket, "status", "updated_at"); err != nil {
		return nil, err
	}
	metrics.Listing("cancel")
	s.Logger.LogListing("CANCELLED", ticket.ID, "by seller "+sellerID)
	s.emit(ctx, events.ListingCancelled, ticket, sellerID)
	return ticket, nil
}

// Browse returns purchasable listings for upcoming events. Unknown sort
// values fall back to most recent first.
func (s *ListingService) Browse(ctx context.Context, sort string) ([]models.Ticket, error) {
	return s.DB.ListAvailableTickets(ctx, store.TicketSort(sort), s.now())
}

func (s *ListingService) Get(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.DB.GetTicket(ctx, ticketID)
}

// ListBySeller returns every listing of the seller whatever its status, newest first.
func (s *ListingService) ListBySeller(ctx context.Context, sellerID string) ([]models.Ticket, error) {
	return s.DB.ListTicketsBySeller(ctx, sellerID)
}

// owned loads a listing and checks that sellerID may edit it.
func (s *ListingService) owned(ctx context.Context, sellerID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.SellerID != sellerID {
		return nil, apperr.Permission("only the seller can change this listing")
	}
	if ticket.Status != models.TicketAvailable {
		return nil, apperr.StateConflict("listing is %s and can no longer be changed", ticket.Status)
	}
	return ticket, nil
}

func checkPrices(asking, original decimal.Decimal) error {
	var msgs []string
	if !asking.IsPositive() {
		msgs = append(msgs, "asking_price: must be greater than 0")
	}
	if original.IsNegative() {
		msgs = append(msgs, "original_price: must be greater than or equal to 0")
	}
	if len(msgs) > 0 {
		return apperr.Validation("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func (s *ListingService) emit(ctx context.Context, eventType string, ticket *models.Ticket, actorID string) {
	s.Events.Emit(ctx, models.LifecycleEvent{
		Type:         eventType,
		TicketID:     ticket.ID,
		ActorID:      actorID,
		TicketStatus: ticket.Status,
	})
}

