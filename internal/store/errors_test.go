package store

import (
	"context"
	"errors"
	"testing"

	"ms-resale/internal/apperr"
	"ms-resale/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })
	return New(bun.NewDB(sqldb, pgdialect.New())), mock
}

func TestDriverErrorsBecomeStorageErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset by peer"))

	_, err := s.GetTicket(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrStorage))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyResultIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetTransaction(context.Background(), "x1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverErrorInsideTxRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := s.Purchase(context.Background(), &models.Transaction{ID: "x1", TicketID: "t1"})
	assert.True(t, errors.Is(err, apperr.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	typed := apperr.StateConflict("busy")
	assert.Same(t, typed, wrap(typed, "op"))
	assert.Nil(t, wrap(nil, "op"))
}
