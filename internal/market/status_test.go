package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions(t *testing.T) {
	assert.True(t, CanTransitionOrder(OrderPendingPayment, OrderProcessing))
	assert.True(t, CanTransitionOrder(OrderPendingPayment, OrderCancelled))
	assert.True(t, CanTransitionOrder(OrderPendingPayment, OrderFailed))
	assert.True(t, CanTransitionOrder(OrderProcessing, OrderCompleted))

	// hanya maju; cancel cuma dari pending_payment
	assert.False(t, CanTransitionOrder(OrderProcessing, OrderCancelled))
	assert.False(t, CanTransitionOrder(OrderProcessing, OrderPendingPayment))
	assert.False(t, CanTransitionOrder(OrderCompleted, OrderCancelled))
	assert.False(t, CanTransitionOrder(OrderCancelled, OrderProcessing))
	assert.False(t, CanTransitionOrder(OrderFailed, OrderPendingPayment))
}

func TestProductTransitions(t *testing.T) {
	assert.True(t, CanTransitionProduct(ProductDraft, ProductPendingApproval))
	assert.True(t, CanTransitionProduct(ProductPendingApproval, ProductActive))
	assert.True(t, CanTransitionProduct(ProductPendingApproval, ProductRejected))
	assert.True(t, CanTransitionProduct(ProductRejected, ProductPendingApproval))
	assert.True(t, CanTransitionProduct(ProductActive, ProductArchived))

	assert.False(t, CanTransitionProduct(ProductDraft, ProductActive))
	assert.False(t, CanTransitionProduct(ProductArchived, ProductActive))
}

func TestOrderItemTerminal(t *testing.T) {
	assert.False(t, LinePending.Terminal())
	assert.True(t, LineFulfilled.Terminal())
	assert.True(t, LineCancelled.Terminal())
	assert.True(t, LineRefunded.Terminal())
}
