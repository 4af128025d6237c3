// Package store is the entity store: durable users, listings, transactions,
// disputes and seller verifications on top of bun. Multi-row state changes run
// inside a single database transaction, and status changes that race with other
// writers are written as compare-and-swap updates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-resale/internal/apperr"

	"github.com/uptrace/bun"
)

type Store struct {
	Bun *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{Bun: db}
}

// RunInTx runs fn inside one database transaction. Any error returned by fn
// rolls back every write made through tx.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	err := s.Bun.RunInTx(ctx, &sql.TxOptions{}, fn)
	return wrap(err, "transaction")
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.Bun.PingContext(ctx), "ping")
}

// wrap translates driver errors into the marketplace taxonomy. Errors that
// already carry a Kind pass through untouched.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s: not found", op)
	}
	return apperr.Storage(err, "%s failed", op)
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s %s not found", entity, id)
	}
	return wrap(err, fmt.Sprintf("get %s", entity))
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
