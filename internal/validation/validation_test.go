package validation

import (
	"errors"
	"testing"

	"ms-resale/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `json:"name" validate:"notblank"`
	Reason string `json:"reason" validate:"oneof=a b"`
	Last4  string `json:"last4" validate:"len=4,numeric"`
	Qty    int    `json:"quantity" validate:"gte=1"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Name: "x", Reason: "a", Last4: "1234", Qty: 1}))

	err := Struct(sample{Name: "   ", Reason: "c", Last4: "12a4", Qty: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "name: is required")
	assert.Contains(t, err.Error(), "reason: must be one of: a b")
	assert.Contains(t, err.Error(), "last4: must be numeric")
	assert.Contains(t, err.Error(), "quantity: must be greater than or equal to 1")
}
