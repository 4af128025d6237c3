// Package storetest opens throwaway sqlite stores and seeds them for tests.
package storetest

import (
	"context"
	"fmt"
	"hash/fnv"
	"testing"
	"time"

	"ms-resale/internal/database"
	"ms-resale/internal/models"
	"ms-resale/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Now is the fixed clock the fixtures are built around.
var Now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func NewStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.NewTestDB(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}

func SeedUser(t *testing.T, s *store.Store, id string, opts ...func(*models.User)) *models.User {
	t.Helper()
	u := models.NewUser(id, "+995555"+pad(id), Now)
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, s.CreateUser(context.Background(), &u))
	return &u
}

func Admin(u *models.User) { u.IsAdmin = true }

func SeedTicket(t *testing.T, s *store.Store, id, sellerID string, opts ...func(*models.Ticket)) *models.Ticket {
	t.Helper()
	ticket := &models.Ticket{
		ID:            id,
		SellerID:      sellerID,
		EventName:     "Tbilisi Open Air",
		EventDate:     Now.Add(30 * 24 * time.Hour),
		Venue:         "Lisi Lake",
		OriginalPrice: decimal.NewFromInt(100),
		AskingPrice:   decimal.NewFromInt(120),
		Quantity:      1,
		Status:        models.TicketAvailable,
		CreatedAt:     Now,
	}
	for _, opt := range opts {
		opt(ticket)
	}
	require.NoError(t, s.CreateTicket(context.Background(), ticket))
	return ticket
}

// SeedTransaction buys ticket for buyerID through the store.
func SeedTransaction(t *testing.T, s *store.Store, id string, ticket *models.Ticket, buyerID string, opts ...func(*models.Transaction)) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		ID:            id,
		TicketID:      ticket.ID,
		BuyerID:       buyerID,
		SellerID:      ticket.SellerID,
		Amount:        ticket.AskingPrice,
		PlatformFee:   ticket.AskingPrice.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(100)).Round(2),
		PaymentStatus: models.PaymentPending,
		CreatedAt:     Now,
		UpdatedAt:     Now,
	}
	require.NoError(t, s.Purchase(context.Background(), txn))
	if len(opts) > 0 {
		for _, opt := range opts {
			opt(txn)
		}
		_, err := s.Bun.NewUpdate().Model(txn).WherePK().Exec(context.Background())
		require.NoError(t, err)
	}
	return txn
}

// SetTicketStatus forces a listing status, bypassing every guard.
func SetTicketStatus(t *testing.T, s *store.Store, ticketID string, status models.TicketStatus) {
	t.Helper()
	_, err := s.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("id = ?", ticketID).
		Exec(context.Background())
	require.NoError(t, err)
}

func pad(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	return fmt.Sprintf("%06d", h.Sum32()%1000000)
}
