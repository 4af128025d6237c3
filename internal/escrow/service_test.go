package escrow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/blob"
	"ms-resale/internal/escrow"
	"ms-resale/internal/logger"
	"ms-resale/internal/models"
	"ms-resale/internal/store"
	"ms-resale/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLock struct {
	mock.Mock
}

func (m *MockLock) LockTicket(ctx context.Context, ticketID, owner string) (bool, error) {
	args := m.Called(ctx, ticketID, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MockLock) UnlockTicket(ctx context.Context, ticketID, owner string) error {
	args := m.Called(ctx, ticketID, owner)
	return args.Error(0)
}

type fixture struct {
	store  *store.Store
	blobs  *blob.MemoryStore
	svc    *escrow.EscrowService
	ticket *models.Ticket
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s := storetest.NewStore(t)
	storetest.SeedUser(t, s, "seller", func(u *models.User) { u.BankAccountLast4 = "4321" })
	storetest.SeedUser(t, s, "buyer")
	storetest.SeedUser(t, s, "admin", storetest.Admin)
	storetest.SeedUser(t, s, "mallory")
	ticket := storetest.SeedTicket(t, s, "t1", "seller")

	blobs := blob.NewMemoryStore("https://files.test")
	svc := escrow.NewEscrowService(s, blobs, nil, nil, nil, decimal.NewFromInt(12), "TBC")
	svc.Now = func() time.Time { return storetest.Now }

	n := 0
	svc.NewID = func() string {
		n++
		return fmt.Sprintf("txn-%d", n)
	}
	return &fixture{store: s, blobs: blobs, svc: svc, ticket: ticket}
}

func (f *fixture) ticketStatus(t *testing.T) models.TicketStatus {
	t.Helper()
	tk, err := f.store.GetTicket(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	return tk.Status
}

func proof(size int) blob.File {
	return blob.File{Name: "receipt.jpg", ContentType: "image/jpeg", Data: make([]byte, size)}
}

func TestHappyPath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StepPayment, view.Step)
	assert.True(t, view.Amount.Equal(decimal.NewFromInt(120)))
	assert.True(t, view.PlatformFee.Equal(decimal.RequireFromString("14.40")))
	assert.Equal(t, "seller", view.SellerID)
	assert.Equal(t, models.TicketPending, f.ticketStatus(t))

	view, err = f.svc.SubmitPaymentProof(ctx, "buyer", view.ID, proof(1024))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, view.PaymentStatus)
	assert.Contains(t, view.PaymentProofURL, "https://files.test/payment-proofs/buyer/")
	assert.Equal(t, models.StepPayment, view.Step)

	view, err = f.svc.ConfirmReceipt(ctx, "seller", view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirmation, view.Step)

	view, err = f.svc.MarkTicketSent(ctx, "seller", view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepTicketSent, view.Step)
	require.NotNil(t, view.TicketSentAt)
	assert.Equal(t, models.TicketSold, f.ticketStatus(t))

	view, err = f.svc.Complete(ctx, "buyer", view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, view.Step)
	assert.Equal(t, models.PaymentReleased, view.PaymentStatus)
	assert.Equal(t, models.TicketCompleted, f.ticketStatus(t))

	stored, err := f.store.GetTransaction(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, stored.Step())
}

func TestPurchaseRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, "seller", "t1")
	assert.True(t, errors.Is(err, apperr.ErrSelfPurchase))
	assert.True(t, errors.Is(err, apperr.ErrPermission))
	assert.Equal(t, models.TicketAvailable, f.ticketStatus(t))

	_, err = f.svc.Purchase(ctx, "buyer", "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Purchase(ctx, "buyer", "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, "mallory", "t1")
	assert.True(t, errors.Is(err, apperr.ErrTicketUnavailable))
}

func TestConcurrentPurchase(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.svc.NewID = nil

	buyers := []string{"buyer", "mallory", "admin"}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i, b := range buyers {
		wg.Add(1)
		go func(i int, buyer string) {
			defer wg.Done()
			svc := *f.svc
			svc.NewID = func() string { return fmt.Sprintf("race-%d", i) }
			_, err := svc.Purchase(ctx, buyer, "t1")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrTicketUnavailable), "got %v", err)
		}(i, b)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPurchaseUsesTicketLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	lock := new(MockLock)
	lock.On("LockTicket", mock.Anything, "t1", "buyer").Return(false, nil).Once()
	f.svc.Lock = lock

	_, err := f.svc.Purchase(ctx, "buyer", "t1")
	assert.True(t, errors.Is(err, apperr.ErrTicketUnavailable))
	assert.Equal(t, models.TicketAvailable, f.ticketStatus(t))

	lock.On("LockTicket", mock.Anything, "t1", "buyer").Return(true, nil).Once()
	lock.On("UnlockTicket", mock.Anything, "t1", "buyer").Return(nil).Once()

	_, err = f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)
	lock.AssertExpectations(t)
}

func TestPurchaseSurvivesLockOutage(t *testing.T) {
	f := setup(t)
	lock := new(MockLock)
	lock.On("LockTicket", mock.Anything, "t1", "buyer").Return(false, errors.New("redis down"))
	f.svc.Lock = lock

	_, err := f.svc.Purchase(context.Background(), "buyer", "t1")
	require.NoError(t, err)
	lock.AssertNotCalled(t, "UnlockTicket", mock.Anything, mock.Anything, mock.Anything)
}

func TestWrongActorAndStep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)

	_, err = f.svc.ConfirmReceipt(ctx, "buyer", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	_, err = f.svc.SubmitPaymentProof(ctx, "mallory", view.ID, proof(10))
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	_, err = f.svc.SubmitPaymentProof(ctx, "seller", view.ID, proof(10))
	assert.True(t, errors.Is(err, apperr.ErrPermission), "seller cannot upload the buyer's proof")
	assert.Zero(t, f.blobs.Len())

	_, err = f.svc.MarkTicketSent(ctx, "seller", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))

	_, err = f.svc.Complete(ctx, "buyer", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))

	_, err = f.svc.ConfirmReceipt(ctx, "seller", view.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkTicketSent(ctx, "seller", view.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkTicketSent(ctx, "seller", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict), "repeating mark sent")

	_, err = f.svc.SubmitPaymentProof(ctx, "buyer", view.ID, proof(10))
	assert.True(t, errors.Is(err, apperr.ErrStateConflict), "payment proof after hand-over")
}

func TestPaymentProofLimits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)

	_, err = f.svc.SubmitPaymentProof(ctx, "buyer", view.ID, proof(blob.MaxProofSize+1))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.svc.SubmitPaymentProof(ctx, "buyer", view.ID, proof(0))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, 0, f.blobs.Len())

	f.blobs.FailWith = errors.New("s3 unavailable")
	_, err = f.svc.SubmitPaymentProof(ctx, "buyer", view.ID, proof(10))
	assert.True(t, errors.Is(err, apperr.ErrStorage))

	stored, err := f.store.GetTransaction(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
	assert.Empty(t, stored.PaymentProofURL)
}

func TestOpenDisputeFreezesFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)

	require.NoError(t, f.store.CreateDispute(ctx, &models.Dispute{
		ID: "d1", TransactionID: view.ID, ReporterID: "buyer", Reason: models.ReasonSellerNoShow,
		Description: "silent", EvidenceURLs: []string{}, Status: models.DisputeOpen, CreatedAt: storetest.Now,
	}, "t1"))

	_, err = f.svc.ConfirmReceipt(ctx, "seller", view.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))

	stored, err := f.store.GetTransaction(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, stored.SellerConfirmed)
}

func TestGetAndLists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)

	for _, actor := range []string{"buyer", "seller", "admin"} {
		got, err := f.svc.Get(ctx, actor, view.ID)
		require.NoError(t, err, actor)
		require.NotNil(t, got.Ticket)
		assert.Equal(t, "t1", got.Ticket.ID)
		assert.Equal(t, models.StepPayment, got.Step)
	}

	_, err = f.svc.Get(ctx, "mallory", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	purchases, err := f.svc.ListPurchases(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, models.StepPayment, purchases[0].Step)

	sales, err := f.svc.ListSales(ctx, "seller")
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	none, err := f.svc.ListSales(ctx, "buyer")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPaymentQR(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)

	png, err := f.svc.PaymentQR(ctx, "buyer", view.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = f.svc.PaymentQR(ctx, "seller", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrPermission))

	_, err = f.svc.ConfirmReceipt(ctx, "seller", view.ID)
	require.NoError(t, err)
	_, err = f.svc.PaymentQR(ctx, "buyer", view.ID)
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))
}

// racingStore loses every transition write, as if another request got there first.
type racingStore struct {
	*store.Store
}

func (racingStore) ApplyTransition(context.Context, *models.Transaction, store.TransactionGuard, models.TicketStatus, ...string) error {
	return apperr.StateConflict("transaction changed concurrently")
}

func TestLostProofWriteLogsUploadedPath(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view, err := f.svc.Purchase(ctx, "buyer", "t1")
	require.NoError(t, err)

	var buf bytes.Buffer
	f.svc.DB = racingStore{f.store}
	f.svc.Logger = logger.NewConsoleLogger(&buf)

	_, err = f.svc.SubmitPaymentProof(ctx, "buyer", view.ID, proof(10))
	assert.True(t, errors.Is(err, apperr.ErrStateConflict))
	require.Equal(t, 1, f.blobs.Len())
	assert.Contains(t, buf.String(), "Orphaned payment proof https://files.test/payment-proofs/buyer/")

	txn, err := f.store.GetTransaction(ctx, view.ID)
	require.NoError(t, err)
	assert.Empty(t, txn.PaymentProofURL)
}
