package market

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockError(t *testing.T) {
	err := error(&InsufficientStockError{Details: []ShortfallDetail{
		{ProductID: "p-1", Requested: 3, Available: 1},
		{ProductID: "p-2", Requested: 2, Available: 0},
	}})

	// caller yang cuma peduli kategori
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrProductUnavailable))

	// caller yang butuh detail per line
	var stock *InsufficientStockError
	require.True(t, errors.As(err, &stock))
	require.Len(t, stock.Details, 2)

	// pesan harus menyebut product mana yang kurang
	assert.Contains(t, err.Error(), "p-1")
	assert.Contains(t, err.Error(), "requested 3, available 1")
	assert.Contains(t, err.Error(), "p-2")
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("%w: order item abc", ErrAlreadyFulfilled)
	assert.True(t, errors.Is(err, ErrAlreadyFulfilled))
	assert.False(t, errors.Is(err, ErrWrongState))
}
