package listing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/blob"
	"ms-resale/internal/listing"
	"ms-resale/internal/models"
	"ms-resale/internal/store"
	"ms-resale/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *store.Store
	blobs *blob.MemoryStore
	svc   *listing.ListingService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := storetest.NewStore(t)
	storetest.SeedUser(t, s, "seller")
	storetest.SeedUser(t, s, "buyer")

	blobs := blob.NewMemoryStore("https://files.test")
	svc := listing.NewListingService(s, blobs, nil, nil)
	svc.Now = func() time.Time { return storetest.Now }
	n := 0
	svc.NewID = func() string {
		n++
		return fmt.Sprintf("l-%d", n)
	}
	return &fixture{store: s, blobs: blobs, svc: svc}
}

func validRequest() listing.CreateRequest {
	return listing.CreateRequest{
		EventName:     " Jazz Festival ",
		EventDate:     storetest.Now.Add(72 * time.Hour),
		Venue:         "Philharmonic",
		OriginalPrice: decimal.NewFromInt(80),
		AskingPrice:   decimal.RequireFromString("95.5"),
	}
}

func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	f := setup(t)
	req := validRequest()
	req.Proof = &blob.File{Name: "ticket.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}

	ticket, err := f.svc.Create(context.Background(), "seller", req)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Festival", ticket.EventName)
	assert.Equal(t, 1, ticket.Quantity)
	assert.Equal(t, models.TicketAvailable, ticket.Status)
	assert.Contains(t, ticket.TicketProofURL, "https://files.test/ticket-proofs/seller/")

	stored, err := f.store.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.AskingPrice.Equal(decimal.RequireFromString("95.50")))
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*listing.CreateRequest)
	}{
		{"missing event name", func(r *listing.CreateRequest) { r.EventName = " " }},
		{"missing venue", func(r *listing.CreateRequest) { r.Venue = "" }},
		{"missing date", func(r *listing.CreateRequest) { r.EventDate = time.Time{} }},
		{"past date", func(r *listing.CreateRequest) { r.EventDate = storetest.Now.Add(-time.Hour) }},
		{"zero asking price", func(r *listing.CreateRequest) { r.AskingPrice = decimal.Zero }},
		{"negative original price", func(r *listing.CreateRequest) { r.OriginalPrice = decimal.NewFromInt(-1) }},
		{"negative quantity", func(r *listing.CreateRequest) { r.Quantity = -2 }},
		{"oversized proof", func(r *listing.CreateRequest) {
			r.Proof = &blob.File{Name: "big.png", Data: make([]byte, blob.MaxProofSize+1)}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			req := validRequest()
			tt.mutate(&req)
			_, err := f.svc.Create(context.Background(), "seller", req)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
			assert.Zero(t, f.blobs.Len())
		})
	}
}

func TestCreateBlockedByOpenDispute(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ticket := storetest.SeedTicket(t, f.store, "t1", "seller")
	txn := storetest.SeedTransaction(t, f.store, "x1", ticket, "buyer")
	require.NoError(t, f.store.CreateDispute(ctx, &models.Dispute{
		ID:            "d1",
		TransactionID: txn.ID,
		ReporterID:    "buyer",
		Reason:        models.ReasonSellerNoShow,
		Description:   "never sent",
		Status:        models.DisputeOpen,
		CreatedAt:     storetest.Now,
	}, ticket.ID))

	_, err := f.svc.Create(ctx, "seller", validRequest())
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	_, err = f.svc.Create(ctx, "buyer", validRequest())
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	storetest.SeedTicket(t, f.store, "t1", "seller")

	price := decimal.NewFromInt(110)
	ticket, err := f.svc.Update(ctx, "seller", "t1", listing.UpdateRequest{AskingPrice: &price, Venue: strPtr(" Arena ")})
	require.NoError(t, err)
	assert.Equal(t, "Arena", ticket.Venue)

	stored, err := f.store.GetTicket(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, stored.AskingPrice.Equal(price))
	assert.Equal(t, "Arena", stored.Venue)
	assert.Equal(t, "Tbilisi Open Air", stored.EventName)

	_, err = f.svc.Update(ctx, "buyer", "t1", listing.UpdateRequest{Venue: strPtr("x")})
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	_, err = f.svc.Update(ctx, "seller", "t1", listing.UpdateRequest{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	zero := decimal.Zero
	_, err = f.svc.Update(ctx, "seller", "t1", listing.UpdateRequest{AskingPrice: &zero})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Update(ctx, "seller", "t1", listing.UpdateRequest{EventName: strPtr("  ")})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpdateAndCancelRequireAvailable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ticket := storetest.SeedTicket(t, f.store, "t1", "seller")
	storetest.SeedTransaction(t, f.store, "x1", ticket, "buyer")

	_, err := f.svc.Update(ctx, "seller", "t1", listing.UpdateRequest{Venue: strPtr("Arena")})
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))

	_, err = f.svc.Cancel(ctx, "seller", "t1")
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))
}

func TestCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	storetest.SeedTicket(t, f.store, "t1", "seller")

	_, err := f.svc.Cancel(ctx, "buyer", "t1")
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	ticket, err := f.svc.Cancel(ctx, "seller", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, ticket.Status)

	list, err := f.svc.Browse(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	mine, err := f.svc.ListBySeller(ctx, "seller")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.TicketCancelled, mine[0].Status)
}

func TestBrowse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	storetest.SeedTicket(t, f.store, "cheap-late", "seller", func(tk *models.Ticket) {
		tk.AskingPrice = decimal.NewFromInt(50)
		tk.EventDate = storetest.Now.Add(60 * 24 * time.Hour)
	})
	storetest.SeedTicket(t, f.store, "pricey-soon", "seller", func(tk *models.Ticket) {
		tk.AskingPrice = decimal.NewFromInt(200)
		tk.EventDate = storetest.Now.Add(24 * time.Hour)
		tk.CreatedAt = storetest.Now.Add(time.Minute)
	})
	storetest.SeedTicket(t, f.store, "past", "seller", func(tk *models.Ticket) {
		tk.EventDate = storetest.Now.Add(-time.Hour)
	})

	ids := func(tickets []models.Ticket) []string {
		out := make([]string, 0, len(tickets))
		for _, tk := range tickets {
			out = append(out, tk.ID)
		}
		return out
	}

	byPrice, err := f.svc.Browse(ctx, "price")
	require.NoError(t, err)
	assert.Equal(t, []string{"cheap-late", "pricey-soon"}, ids(byPrice))

	byDate, err := f.svc.Browse(ctx, "date")
	require.NoError(t, err)
	assert.Equal(t, []string{"pricey-soon", "cheap-late"}, ids(byDate))

	recent, err := f.svc.Browse(ctx, "whatever")
	require.NoError(t, err)
	assert.Equal(t, []string{"pricey-soon", "cheap-late"}, ids(recent))

	_, err = f.svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
