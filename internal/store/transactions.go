package store

import (
	"context"
	"time"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"

	"github.com/uptrace/bun"
)

// TransactionGuard is the state a transaction must still be in for a
// transition to apply.
type TransactionGuard struct {
	PaymentStatuses []models.PaymentStatus
	SellerConfirmed bool
	TicketSent      bool
	// BlockOnDispute refuses the write while an open or investigating
	// dispute is filed against the transaction.
	BlockOnDispute bool
}

// Purchase acquires the listing with a compare-and-swap from available to
// pending and inserts the transaction in the same database transaction.
// Exactly one concurrent caller wins; the others get ErrTicketUnavailable.
func (s *Store) Purchase(ctx context.Context, txn *models.Transaction) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketPending).
			Set("updated_at = ?", txn.CreatedAt).
			Where("id = ?", txn.TicketID).
			Where("status = ?", models.TicketAvailable).
			Exec(ctx)
		if err != nil {
			return wrap(err, "acquire ticket")
		}
		if rowsAffected(res) == 0 {
			return apperr.ErrTicketUnavailable
		}

		if _, err := tx.NewInsert().Model(txn).Exec(ctx); err != nil {
			return wrap(err, "create transaction")
		}
		return nil
	})
}

// ApplyTransition writes the given transaction columns when the row still
// matches guard. When ticketStatus is set the listing moves in the same
// database transaction.
func (s *Store) ApplyTransition(ctx context.Context, txn *models.Transaction, guard TransactionGuard, ticketStatus models.TicketStatus, columns ...string) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if guard.BlockOnDispute {
			frozen, err := hasUnresolvedDispute(ctx, tx, txn.ID)
			if err != nil {
				return err
			}
			if frozen {
				return apperr.StateConflict("transaction %s is frozen by an open dispute", txn.ID)
			}
		}

		q := tx.NewUpdate().
			Model(txn).
			Column(columns...).
			Where("id = ?", txn.ID).
			Where("seller_confirmed = ?", guard.SellerConfirmed).
			Where("ticket_sent = ?", guard.TicketSent)
		if len(guard.PaymentStatuses) > 0 {
			q = q.Where("payment_status IN (?)", bun.In(guard.PaymentStatuses))
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return wrap(err, "update transaction")
		}
		if rowsAffected(res) == 0 {
			return apperr.StateConflict("transaction %s changed concurrently", txn.ID)
		}

		if ticketStatus == "" {
			return nil
		}
		return setTicketStatus(ctx, tx, txn.TicketID, ticketStatus, txn.UpdatedAt)
	})
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.Bun.NewSelect().
		Model(&txn).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return &txn, nil
}

func (s *Store) ListTransactionsByBuyer(ctx context.Context, buyerID string) ([]models.Transaction, error) {
	return s.listTransactions(ctx, "buyer_id", buyerID)
}

func (s *Store) ListTransactionsBySeller(ctx context.Context, sellerID string) ([]models.Transaction, error) {
	return s.listTransactions(ctx, "seller_id", sellerID)
}

func (s *Store) listTransactions(ctx context.Context, column, userID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.Bun.NewSelect().
		Model(&txns).
		Where("? = ?", bun.Ident(column), userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap(err, "list transactions")
	}
	return txns, nil
}

func setTicketStatus(ctx context.Context, db bun.IDB, ticketID string, status models.TicketStatus, at time.Time) error {
	res, err := db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", at).
		Where("id = ?", ticketID).
		Exec(ctx)
	if err != nil {
		return wrap(err, "update ticket status")
	}
	if rowsAffected(res) == 0 {
		return apperr.NotFound("ticket %s not found", ticketID)
	}
	return nil
}
