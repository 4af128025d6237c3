package store

import (
	"context"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"

	"github.com/uptrace/bun"
)

// SaveVerification inserts the verification and, when user is non-nil, writes
// the given user columns in the same database transaction.
func (s *Store) SaveVerification(ctx context.Context, v *models.SellerVerification, user *models.User, userColumns ...string) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(v).Exec(ctx); err != nil {
			return wrap(err, "create verification")
		}
		return updateUserColumns(ctx, tx, user, userColumns)
	})
}

// ReviewVerification moves a pending verification to its reviewed status and
// applies the user columns atomically.
func (s *Store) ReviewVerification(ctx context.Context, v *models.SellerVerification, user *models.User, userColumns ...string) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(v).
			Column("status", "verified_at").
			Where("id = ?", v.ID).
			Where("status = ?", models.VerificationPending).
			Exec(ctx)
		if err != nil {
			return wrap(err, "review verification")
		}
		if rowsAffected(res) == 0 {
			return apperr.StateConflict("verification %s is not pending", v.ID)
		}
		return updateUserColumns(ctx, tx, user, userColumns)
	})
}

func (s *Store) GetVerification(ctx context.Context, id string) (*models.SellerVerification, error) {
	var v models.SellerVerification
	err := s.Bun.NewSelect().
		Model(&v).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "verification", id)
	}
	return &v, nil
}

func (s *Store) ListVerificationsByUser(ctx context.Context, userID string) ([]models.SellerVerification, error) {
	var vs []models.SellerVerification
	err := s.Bun.NewSelect().
		Model(&vs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap(err, "list verifications")
	}
	return vs, nil
}

func (s *Store) ListVerificationsByStatus(ctx context.Context, status models.VerificationStatus) ([]models.SellerVerification, error) {
	var vs []models.SellerVerification
	err := s.Bun.NewSelect().
		Model(&vs).
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap(err, "list verifications")
	}
	return vs, nil
}

func updateUserColumns(ctx context.Context, db bun.IDB, user *models.User, columns []string) error {
	if user == nil || len(columns) == 0 {
		return nil
	}
	res, err := db.NewUpdate().
		Model(user).
		Column(columns...).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return wrap(err, "update user")
	}
	if rowsAffected(res) == 0 {
		return apperr.NotFound("user %s not found", user.ID)
	}
	return nil
}
