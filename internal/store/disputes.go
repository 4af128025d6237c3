package store

import (
	"context"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"

	"github.com/uptrace/bun"
)

// freezableTicketStatuses are the listing states a new dispute moves to disputed.
var freezableTicketStatuses = []models.TicketStatus{models.TicketPending, models.TicketSold}

// DisputeResolution is the three-part write applied when an admin settles a dispute.
type DisputeResolution struct {
	DisputeID     string
	Status        models.DisputeStatus
	Notes         string
	ResolvedAt    time.Time
	TransactionID string
	PaymentStatus models.PaymentStatus
	TicketID      string
	TicketStatus  models.TicketStatus
}

// CreateDispute inserts the dispute and, when the transaction still owns the
// listing, freezes a pending or sold listing, atomically. Refunded
// transactions cannot be disputed.
func (s *Store) CreateDispute(ctx context.Context, dispute *models.Dispute, ticketID string) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		status, err := paymentStatus(ctx, tx, dispute.TransactionID)
		if err != nil {
			return err
		}
		if status == models.PaymentRefunded {
			return apperr.StateConflict("transaction %s is already refunded", dispute.TransactionID)
		}

		if _, err := tx.NewInsert().Model(dispute).Exec(ctx); err != nil {
			return wrap(err, "create dispute")
		}

		// A relisted ticket belongs to the newer transaction.
		superseded, err := tx.NewSelect().
			Model((*models.Transaction)(nil)).
			Where("ticket_id = ?", ticketID).
			Where("id != ?", dispute.TransactionID).
			Where("payment_status != ?", models.PaymentRefunded).
			Exists(ctx)
		if err != nil {
			return wrap(err, "check ticket owner")
		}
		if superseded {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketDisputed).
			Set("updated_at = ?", dispute.CreatedAt).
			Where("id = ?", ticketID).
			Where("status IN (?)", bun.In(freezableTicketStatuses)).
			Exec(ctx)
		return wrap(err, "freeze ticket")
	})
}

func (s *Store) GetDispute(ctx context.Context, id string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := s.Bun.NewSelect().
		Model(&dispute).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "dispute", id)
	}
	return &dispute, nil
}

// ListDisputes returns disputes in any of statuses, newest first. No statuses
// means every dispute.
func (s *Store) ListDisputes(ctx context.Context, statuses []models.DisputeStatus) ([]models.Dispute, error) {
	var disputes []models.Dispute
	q := s.Bun.NewSelect().Model(&disputes).Order("created_at DESC")
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrap(err, "list disputes")
	}
	return disputes, nil
}

func (s *Store) ListDisputesByTransaction(ctx context.Context, transactionID string) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := s.Bun.NewSelect().
		Model(&disputes).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap(err, "list transaction disputes")
	}
	return disputes, nil
}

// HasUnresolvedDispute reports whether an open or investigating dispute is
// filed against the transaction.
func (s *Store) HasUnresolvedDispute(ctx context.Context, transactionID string) (bool, error) {
	return hasUnresolvedDispute(ctx, s.Bun, transactionID)
}

// SellerHasUnresolvedDispute reports whether any of the seller's sales has an
// open or investigating dispute.
func (s *Store) SellerHasUnresolvedDispute(ctx context.Context, sellerID string) (bool, error) {
	exists, err := s.Bun.NewSelect().
		Model((*models.Dispute)(nil)).
		Join("JOIN transactions AS t ON t.id = dispute.transaction_id").
		Where("t.seller_id = ?", sellerID).
		Where("dispute.status IN (?)", bun.In(models.UnresolvedDisputeStatuses)).
		Exists(ctx)
	if err != nil {
		return false, wrap(err, "check seller disputes")
	}
	return exists, nil
}

// StartInvestigation moves an open dispute to investigating.
func (s *Store) StartInvestigation(ctx context.Context, disputeID string) error {
	res, err := s.Bun.NewUpdate().
		Model((*models.Dispute)(nil)).
		Set("status = ?", models.DisputeInvestigating).
		Where("id = ?", disputeID).
		Where("status = ?", models.DisputeOpen).
		Exec(ctx)
	if err != nil {
		return wrap(err, "investigate dispute")
	}
	if rowsAffected(res) == 0 {
		return apperr.StateConflict("dispute %s is not open", disputeID)
	}
	return nil
}

// ResolveDispute settles the dispute, moves the payment and moves the listing
// in one database transaction. Either all three rows change or none does.
//
// When an earlier dispute already refunded the transaction, a buyer
// resolution only closes the dispute and reports closed; the payment and the
// relisted ticket are left alone. A seller resolution is refused.
func (s *Store) ResolveDispute(ctx context.Context, r DisputeResolution) (closed bool, err error) {
	err = s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Dispute)(nil)).
			Set("status = ?", r.Status).
			Set("resolution_notes = ?", r.Notes).
			Set("resolved_at = ?", r.ResolvedAt).
			Where("id = ?", r.DisputeID).
			Where("status IN (?)", bun.In(models.UnresolvedDisputeStatuses)).
			Exec(ctx)
		if err != nil {
			return wrap(err, "resolve dispute")
		}
		if rowsAffected(res) == 0 {
			return apperr.StateConflict("dispute %s is already resolved", r.DisputeID)
		}

		status, err := paymentStatus(ctx, tx, r.TransactionID)
		if err != nil {
			return err
		}
		if status == models.PaymentRefunded {
			if r.Status != models.DisputeResolvedBuyer {
				return apperr.StateConflict("transaction %s is already refunded", r.TransactionID)
			}
			closed = true
			return nil
		}

		res, err = tx.NewUpdate().
			Model((*models.Transaction)(nil)).
			Set("payment_status = ?", r.PaymentStatus).
			Set("updated_at = ?", r.ResolvedAt).
			Where("id = ?", r.TransactionID).
			Where("payment_status != ?", models.PaymentRefunded).
			Exec(ctx)
		if err != nil {
			return wrap(err, "settle transaction")
		}
		if rowsAffected(res) == 0 {
			return apperr.StateConflict("transaction %s is already refunded", r.TransactionID)
		}

		return setTicketStatus(ctx, tx, r.TicketID, r.TicketStatus, r.ResolvedAt)
	})
	if err != nil {
		return false, err
	}
	return closed, nil
}

func paymentStatus(ctx context.Context, db bun.IDB, transactionID string) (models.PaymentStatus, error) {
	var status models.PaymentStatus
	err := db.NewSelect().
		Model((*models.Transaction)(nil)).
		Column("payment_status").
		Where("id = ?", transactionID).
		Limit(1).
		Scan(ctx, &status)
	if err != nil {
		return "", notFound(err, "transaction", transactionID)
	}
	return status, nil
}

func hasUnresolvedDispute(ctx context.Context, db bun.IDB, transactionID string) (bool, error) {
	exists, err := db.NewSelect().
		Model((*models.Dispute)(nil)).
		Where("transaction_id = ?", transactionID).
		Where("status IN (?)", bun.In(models.UnresolvedDisputeStatuses)).
		Exists(ctx)
	if err != nil {
		return false, wrap(err, "check disputes")
	}
	return exists, nil
}
