// Package dispute files, investigates and settles disputes raised against a
// resale transaction.
package dispute

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
	"ms-resale/internal/validation"

	"github.com/google/uuid"
)

// MaxEvidenceFiles is how many evidence files a dispute keeps; extras are dropped.
const MaxEvidenceFiles = 5

type Filter string

const (
	FilterOpen     Filter = "open"
	FilterResolved Filter = "resolved"
	FilterAll      Filter = "all"
)

type DBLayer interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	CreateDispute(ctx context.Context, dispute *models.Dispute, ticketID string) error
	GetDispute(ctx context.Context, id string) (*models.Dispute, error)
	ListDisputes(ctx context.Context, statuses []models.DisputeStatus) ([]models.Dispute, error)
	ListDisputesByTransaction(ctx context.Context, transactionID string) ([]models.Dispute, error)
	StartInvestigation(ctx context.Context, disputeID string) error
	ResolveDispute(ctx context.Context, r store.DisputeResolution) (bool, error)
}

type FileRequest struct {
	TransactionID string               `json:"transaction_id" validate:"notblank"`
	Reason        models.DisputeReason `json:"reason" validate:"oneof=ticket_invalid wrong_ticket seller_no_show other"`
	Description   string               `json:"description" validate:"notblank"`
	Evidence      []blob.File          `json:"-"`
}

type DisputeService struct {
	DB     DBLayer
	Blob   blob.Store
	Events *events.Emitter
	Logger *logger.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewDisputeService(db DBLayer, blobs blob.Store, emitter *events.Emitter, log *logger.Logger) *DisputeService {
	return &DisputeService{
		DB:     db,
		Blob:   blobs,
		Events: emitter,
		Logger: log,
		Now:    time.Now,
		NewID:  func() string { return uuid.New().String() },
	}
}

func (s *DisputeService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// File opens a dispute on behalf of the buyer or the seller. Only the first
// MaxEvidenceFiles files are kept and checked. Evidence is uploaded before the
// dispute is written; one failed upload aborts filing.
func (s *DisputeService) File(ctx context.Context, reporterID string, req FileRequest) (*models.Dispute, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := validation.Struct(req); err != nil {
		metrics.Dispute("file", metrics.OutcomeRejected)
		return nil, err
	}

	txn, err := s.DB.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if !txn.IsParticipant(reporterID) {
		metrics.Dispute("file", metrics.OutcomeRejected)
		return nil, apperr.Permission("only the buyer or the seller can dispute this transaction")
	}

	if txn.PaymentStatus == models.PaymentRefunded {
		metrics.Dispute("file", metrics.OutcomeRejected)
		return nil, apperr.StateConflict("transaction %s is already refunded", txn.ID)
	}

	evidence := req.Evidence
	if len(evidence) > MaxEvidenceFiles {
		evidence = evidence[:MaxEvidenceFiles]
	}
	for _, f := range evidence {
		if err := blob.CheckSize(f, blob.MaxEvidenceSize); err != nil {
			metrics.Dispute("file", metrics.OutcomeRejected)
			return nil, fmt.Errorf("evidence %q: %w", f.Name, err)
		}
	}

	now := s.now()
	urls := make([]string, 0, len(evidence))
	for _, f := range evidence {
		url, err := blob.Put(ctx, s.Blob, blob.BucketDisputeEvidence, reporterID, f, now)
		if err != nil {
			metrics.Dispute("file", metrics.OutcomeError)
			return nil, err
		}
		urls = append(urls, url)
	}

	d := &models.Dispute{
		ID:            s.NewID(),
		TransactionID: txn.ID,
		ReporterID:    reporterID,
		Reason:        req.Reason,
		Description:   req.Description,
		EvidenceURLs:  urls,
		Status:        models.DisputeOpen,
		CreatedAt:     now,
	}
	if err := s.DB.CreateDispute(ctx, d, txn.TicketID); err != nil {
		metrics.Dispute("file", metrics.OutcomeError)
		return nil, err
	}

	metrics.Dispute("file", string(d.Status))
	s.Logger.LogDispute("FILED", d.ID, fmt.Sprintf("%s on transaction %s by %s (%d evidence files)", d.Reason, txn.ID, reporterID, len(urls)))
	s.emit(ctx, events.DisputeFiled, d, txn, reporterID)
	return d, nil
}

// Investigate marks an open dispute as under review.
func (s *DisputeService) Investigate(ctx context.Context, adminID, disputeID string) (*models.Dispute, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if err := s.DB.StartInvestigation(ctx, disputeID); err != nil {
		metrics.Dispute("investigate", metrics.OutcomeRejected)
		return nil, err
	}

	d, err := s.DB.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	metrics.Dispute("investigate", string(d.Status))
	s.Logger.LogDispute("INVESTIGATING", d.ID, "by admin "+adminID)
	s.emit(ctx, events.DisputeInvestigating, d, nil, adminID)
	return d, nil
}

// Resolve settles the dispute. Resolving for the buyer refunds the payment
// and relists the ticket; resolving for the seller releases the payment and
// completes the ticket. A dispute left open after another dispute refunded
// its transaction is closed by resolving it for the buyer.
func (s *DisputeService) Resolve(ctx context.Context, adminID, disputeID string, resolution models.DisputeStatus, notes string) (*models.Dispute, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var payment models.PaymentStatus
	var ticketStatus models.TicketStatus
	switch resolution {
	case models.DisputeResolvedBuyer:
		payment, ticketStatus = models.PaymentRefunded, models.TicketAvailable
	case models.DisputeResolvedSeller:
		payment, ticketStatus = models.PaymentReleased, models.TicketCompleted
	default:
		metrics.Dispute("resolve", metrics.OutcomeRejected)
		return nil, apperr.Validation("resolution must be resolved_buyer or resolved_seller")
	}

	d, err := s.DB.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.Resolved() {
		metrics.Dispute("resolve", metrics.OutcomeRejected)
		return nil, apperr.StateConflict("dispute %s is already resolved", d.ID)
	}
	txn, err := s.DB.GetTransaction(ctx, d.TransactionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	closed, err := s.DB.ResolveDispute(ctx, store.DisputeResolution{
		DisputeID:     d.ID,
		Status:        resolution,
		Notes:         strings.TrimSpace(notes),
		ResolvedAt:    now,
		TransactionID: txn.ID,
		PaymentStatus: payment,
		TicketID:      txn.TicketID,
		TicketStatus:  ticketStatus,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrStorage) {
			metrics.Dispute("resolve", metrics.OutcomeError)
		} else {
			metrics.Dispute("resolve", metrics.OutcomeRejected)
		}
		return nil, err
	}

	d.Status = resolution
	d.ResolutionNotes = strings.TrimSpace(notes)
	d.ResolvedAt = &now
	if closed {
		// the refund already happened; the listing may belong to a new buyer
		payment, ticketStatus = models.PaymentRefunded, ""
		s.Logger.LogDispute("CLOSED", d.ID, fmt.Sprintf("transaction %s was already refunded", txn.ID))
	} else {
		s.Logger.LogDispute("RESOLVED", d.ID, fmt.Sprintf("%s: payment %s, ticket %s", resolution, payment, ticketStatus))
	}
	txn.PaymentStatus = payment

	metrics.Dispute("resolve", string(d.Status))
	s.Events.Emit(ctx, models.LifecycleEvent{
		Type:          events.DisputeResolved,
		TransactionID: txn.ID,
		TicketID:      txn.TicketID,
		DisputeID:     d.ID,
		ActorID:       adminID,
		Step:          txn.Step(),
		PaymentStatus: payment,
		TicketStatus:  ticketStatus,
		DisputeStatus: d.Status,
	})
	return d, nil
}

// Get returns a dispute to an admin or to a participant of its transaction.
func (s *DisputeService) Get(ctx context.Context, actorID, disputeID string) (*models.Dispute, error) {
	d, err := s.DB.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeTransaction(ctx, actorID, d.TransactionID); err != nil {
		return nil, err
	}
	return d, nil
}

// ListByTransaction returns every dispute filed on the transaction, newest first.
func (s *DisputeService) ListByTransaction(ctx context.Context, actorID, transactionID string) ([]models.Dispute, error) {
	if err := s.authorizeTransaction(ctx, actorID, transactionID); err != nil {
		return nil, err
	}
	return s.DB.ListDisputesByTransaction(ctx, transactionID)
}

// ListAdmin returns disputes matching filter, newest first. An empty filter
// means open.
func (s *DisputeService) ListAdmin(ctx context.Context, adminID string, filter Filter) ([]models.Dispute, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var statuses []models.DisputeStatus
	switch filter {
	case "", FilterOpen:
		statuses = models.UnresolvedDisputeStatuses
	case FilterResolved:
		statuses = models.ResolvedDisputeStatuses
	case FilterAll:
	default:
		return nil, apperr.Validation("filter must be one of: open resolved all")
	}
	return s.DB.ListDisputes(ctx, statuses)
}

func (s *DisputeService) authorizeTransaction(ctx context.Context, actorID, transactionID string) error {
	txn, err := s.DB.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.IsParticipant(actorID) {
		return nil
	}
	return s.requireAdmin(ctx, actorID)
}

func (s *DisputeService) requireAdmin(ctx context.Context, userID string) error {
	user, err := s.DB.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if user == nil || !user.IsAdmin {
		s.Logger.LogSecurity("ADMIN_DENIED", "non-admin "+userID+" attempted a dispute operation")
		return apperr.Permission("admin access required")
	}
	return nil
}

func (s *DisputeService) emit(ctx context.Context, eventType string, d *models.Dispute, txn *models.Transaction, actorID string) {
	event := models.LifecycleEvent{
		Type:          eventType,
		TransactionID: d.TransactionID,
		DisputeID:     d.ID,
		ActorID:       actorID,
		DisputeStatus: d.Status,
	}
	if txn != nil {
		event.TicketID = txn.TicketID
		event.Step = txn.Step()
		event.PaymentStatus = txn.PaymentStatus
	}
	s.Events.Emit(ctx, event)
}
