package store

import (
	"context"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"
)

// TicketSort selects the browse ordering.
type TicketSort string

const (
	SortRecent TicketSort = "recent"
	SortDate   TicketSort = "date"
	SortPrice  TicketSort = "price"
)

func (s *Store) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := s.Bun.NewInsert().Model(ticket).Exec(ctx)
	return wrap(err, "create ticket")
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	return &ticket, nil
}

// UpdateAvailableTicket writes columns of a listing that is still available.
// It fails with a state conflict when the listing left the pool in the meantime.
func (s *Store) UpdateAvailableTicket(ctx context.Context, ticket *models.Ticket, columns ...string) error {
	res, err := s.Bun.NewUpdate().
		Model(ticket).
		Column(columns...).
		Where("id = ?", ticket.ID).
		Where("status = ?", models.TicketAvailable).
		Exec(ctx)
	if err != nil {
		return wrap(err, "update ticket")
	}
	if rowsAffected(res) == 0 {
		return apperr.StateConflict("ticket %s is no longer available", ticket.ID)
	}
	return nil
}

// ListAvailableTickets returns listings that can be bought for events after now.
func (s *Store) ListAvailableTickets(ctx context.Context, sort TicketSort, now time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := s.Bun.NewSelect().
		Model(&tickets).
		Where("status = ?", models.TicketAvailable).
		Where("event_date > ?", now)

	switch sort {
	case SortDate:
		q = q.Order("event_date ASC")
	case SortPrice:
		q = q.Order("asking_price ASC")
	default:
		q = q.Order("created_at DESC")
	}

	if err := q.Scan(ctx); err != nil {
		return nil, wrap(err, "list tickets")
	}
	return tickets, nil
}

func (s *Store) ListTicketsBySeller(ctx context.Context, sellerID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.Bun.NewSelect().
		Model(&tickets).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap(err, "list seller tickets")
	}
	return tickets, nil
}
