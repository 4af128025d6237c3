// Package escrow runs the buyer/seller flow of a resale transaction: purchase,
// payment proof, seller confirmation, ticket hand-over and completion.
package escrow

import (
	"context"
	"errors"
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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DBLayer interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactionsByBuyer(ctx context.Context, buyerID string) ([]models.Transaction, error)
	ListTransactionsBySeller(ctx context.Context, sellerID string) ([]models.Transaction, error)
	Purchase(ctx context.Context, txn *models.Transaction) error
	ApplyTransition(ctx context.Context, txn *models.Transaction, guard store.TransactionGuard, ticketStatus models.TicketStatus, columns ...string) error
}

type TicketLock interface {
	LockTicket(ctx context.Context, ticketID, owner string) (bool, error)
	UnlockTicket(ctx context.Context, ticketID, owner string) error
}

type EscrowService struct {
	DB         DBLayer
	Blob       blob.Store
	Lock       TicketLock
	Events     *events.Emitter
	Logger     *logger.Logger
	FeePercent decimal.Decimal
	BankName   string
	Now        func() time.Time
	NewID      func() string
}

func NewEscrowService(db DBLayer, blobs blob.Store, lock TicketLock, emitter *events.Emitter, log *logger.Logger, feePercent decimal.Decimal, bankName string) *EscrowService {
	return &EscrowService{
		DB:         db,
		Blob:       blobs,
		Lock:       lock,
		Events:     emitter,
		Logger:     log,
		FeePercent: feePercent,
		BankName:   bankName,
		Now:        time.Now,
		NewID:      func() string { return uuid.New().String() },
	}
}

func (s *EscrowService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Purchase starts a transaction for the listing. The listing moves from
// available to pending; concurrent buyers of the same listing get
// ErrTicketUnavailable except for exactly one.
func (s *EscrowService) Purchase(ctx context.Context, buyerID, ticketID string) (*models.TransactionView, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperr.Validation("ticket_id is required")
	}

	ticket, err := s.DB.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.SellerID == buyerID {
		metrics.Transition("purchase", metrics.OutcomeRejected)
		return nil, apperr.ErrSelfPurchase
	}
	if ticket.Status != models.TicketAvailable {
		metrics.PurchaseConflict()
		return nil, apperr.ErrTicketUnavailable
	}

	if s.Lock != nil {
		locked, err := s.Lock.LockTicket(ctx, ticketID, buyerID)
		switch {
		case err != nil:
			// the compare-and-swap below still decides the winner
			s.Logger.Warn("ESCROW", fmt.Sprintf("Ticket lock unavailable for %s: %v", ticketID, err))
		case !locked:
			metrics.PurchaseConflict()
			return nil, apperr.ErrTicketUnavailable
		default:
			defer func() {
				if err := s.Lock.UnlockTicket(context.WithoutCancel(ctx), ticketID, buyerID); err != nil {
					s.Logger.Warn("ESCROW", fmt.Sprintf("Failed to unlock ticket %s: %v", ticketID, err))
				}
			}()
		}
	}

	now := s.now()
	txn := &models.Transaction{
		ID:            s.NewID(),
		TicketID:      ticket.ID,
		BuyerID:       buyerID,
		SellerID:      ticket.SellerID,
		Amount:        ticket.AskingPrice,
		PlatformFee:   PlatformFee(ticket.AskingPrice, s.FeePercent),
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.DB.Purchase(ctx, txn); err != nil {
		if errors.Is(err, apperr.ErrTicketUnavailable) {
			metrics.PurchaseConflict()
		} else {
			metrics.Transition("purchase", metrics.OutcomeError)
		}
		return nil, err
	}
	metrics.Transition("purchase", metrics.OutcomeOK)
	s.Logger.LogTransaction("PURCHASE", txn.ID, fmt.Sprintf("buyer %s took ticket %s for %s", buyerID, ticket.ID, txn.Amount.StringFixed(2)))

	ticket.Status = models.TicketPending
	ticket.UpdatedAt = now
	s.emit(ctx, events.TransactionCreated, txn, buyerID, ticket.Status)

	view := txn.View()
	view.Ticket = ticket
	return &view, nil
}

// SubmitPaymentProof uploads the buyer's transfer receipt and marks the
// payment as paid.
func (s *EscrowService) SubmitPaymentProof(ctx context.Context, buyerID, txnID string, proof blob.File) (*models.TransactionView, error) {
	return s.transition(ctx, ActionSubmitPayment, buyerID, txnID, func(next *models.Transaction) ([]string, error) {
		if err := blob.CheckSize(proof, blob.MaxProofSize); err != nil {
			return nil, err
		}
		url, err := blob.Put(ctx, s.Blob, blob.BucketPaymentProofs, buyerID, proof, s.now())
		if err != nil {
			return nil, err
		}
		next.PaymentProofURL = url
		return []string{"payment_proof_url"}, nil
	})
}

// ConfirmReceipt records that the seller received the buyer's payment.
func (s *EscrowService) ConfirmReceipt(ctx context.Context, sellerID, txnID string) (*models.TransactionView, error) {
	return s.transition(ctx, ActionConfirmReceipt, sellerID, txnID, nil)
}

// MarkTicketSent records the hand-over; the listing becomes sold.
func (s *EscrowService) MarkTicketSent(ctx context.Context, sellerID, txnID string) (*models.TransactionView, error) {
	return s.transition(ctx, ActionMarkTicketSent, sellerID, txnID, nil)
}

// Complete releases the payment to the seller; the listing becomes completed.
func (s *EscrowService) Complete(ctx context.Context, buyerID, txnID string) (*models.TransactionView, error) {
	return s.transition(ctx, ActionComplete, buyerID, txnID, nil)
}

// transition runs one row of the transition table. prepare may attach extra
// changes (and their columns) after the checks pass and before the write.
func (s *EscrowService) transition(ctx context.Context, action Action, actorID, txnID string, prepare func(next *models.Transaction) ([]string, error)) (*models.TransactionView, error) {
	txn, err := s.DB.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}

	rule, err := Transition(action, txn, actorID)
	if err != nil {
		metrics.Transition(string(action), metrics.OutcomeRejected)
		return nil, err
	}

	next, cols := rule.Apply(*txn, s.now())
	if prepare != nil {
		extra, err := prepare(&next)
		if err != nil {
			metrics.Transition(string(action), metrics.OutcomeRejected)
			return nil, err
		}
		cols = append(cols, extra...)
	}

	guard := store.TransactionGuard{
		PaymentStatuses: []models.PaymentStatus{txn.PaymentStatus},
		SellerConfirmed: txn.SellerConfirmed,
		TicketSent:      txn.TicketSent,
		BlockOnDispute:  rule.Frozen,
	}
	if err := s.DB.ApplyTransition(ctx, &next, guard, rule.Cascade, cols...); err != nil {
		if next.PaymentProofURL != txn.PaymentProofURL {
			s.Logger.Warn("STORAGE", fmt.Sprintf("Orphaned payment proof %s for transaction %s: %v", next.PaymentProofURL, next.ID, err))
		}
		outcome := metrics.OutcomeRejected
		if errors.Is(err, apperr.ErrStorage) {
			outcome = metrics.OutcomeError
		}
		metrics.Transition(string(action), outcome)
		return nil, err
	}

	metrics.Transition(string(action), metrics.OutcomeOK)
	s.Logger.LogTransaction(strings.ToUpper(string(action)), next.ID, fmt.Sprintf("step %s -> %s", txn.Step(), next.Step()))
	s.emit(ctx, eventFor(action), &next, actorID, rule.Cascade)

	view := next.View()
	return &view, nil
}

// Get returns the transaction with its listing to a participant or an admin.
func (s *EscrowService) Get(ctx context.Context, actorID, txnID string) (*models.TransactionView, error) {
	txn, err := s.DB.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, txn, actorID); err != nil {
		return nil, err
	}

	view := txn.View()
	ticket, err := s.DB.GetTicket(ctx, txn.TicketID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	view.Ticket = ticket
	return &view, nil
}

func (s *EscrowService) authorizeRead(ctx context.Context, txn *models.Transaction, actorID string) error {
	if txn.IsParticipant(actorID) {
		return nil
	}
	user, err := s.DB.GetUser(ctx, actorID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if user != nil && user.IsAdmin {
		return nil
	}
	return apperr.Permission("only the buyer, the seller or an admin can view this transaction")
}

// ListPurchases returns the user's transactions as buyer, newest first.
func (s *EscrowService) ListPurchases(ctx context.Context, buyerID string) ([]models.TransactionView, error) {
	txns, err := s.DB.ListTransactionsByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return views(txns), nil
}

// ListSales returns the user's transactions as seller, newest first.
func (s *EscrowService) ListSales(ctx context.Context, sellerID string) ([]models.TransactionView, error) {
	txns, err := s.DB.ListTransactionsBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return views(txns), nil
}

// PaymentQR renders the bank transfer reference for the buyer while the
// transaction waits for payment.
func (s *EscrowService) PaymentQR(ctx context.Context, buyerID, txnID string) ([]byte, error) {
	txn, err := s.DB.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.BuyerID != buyerID {
		return nil, apperr.Permission("only the buyer can request the payment code")
	}
	if step := txn.Step(); step != models.StepPayment {
		return nil, apperr.StateConflict("payment code is only available at step payment, transaction is at %s", step)
	}

	seller, err := s.DB.GetUser(ctx, txn.SellerID)
	if err != nil {
		return nil, err
	}

	png, err := EncodeQR(PaymentReference(txn, s.BankName, seller.BankAccountLast4))
	if err != nil {
		return nil, fmt.Errorf("failed to render payment code: %w", err)
	}
	return png, nil
}

func (s *EscrowService) emit(ctx context.Context, eventType string, txn *models.Transaction, actorID string, ticketStatus models.TicketStatus) {
	s.Events.Emit(ctx, models.LifecycleEvent{
		Type:          eventType,
		TransactionID: txn.ID,
		TicketID:      txn.TicketID,
		ActorID:       actorID,
		Step:          txn.Step(),
		PaymentStatus: txn.PaymentStatus,
		TicketStatus:  ticketStatus,
	})
}

func eventFor(action Action) string {
	switch action {
	case ActionSubmitPayment:
		return events.PaymentSubmitted
	case ActionConfirmReceipt:
		return events.SellerConfirmed
	case ActionMarkTicketSent:
		return events.TicketSent
	default:
		return events.TransactionCompleted
	}
}

func views(txns []models.Transaction) []models.TransactionView {
	out := make([]models.TransactionView, 0, len(txns))
	for i := range txns {
		out = append(out, txns[i].View())
	}
	return out
}
