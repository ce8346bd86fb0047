package order_test

import (
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	allowed := map[model.OrderStatus]map[model.OrderStatus]bool{
		model.OrderPending:    {model.OrderConfirmed: true, model.OrderCancelled: true},
		model.OrderConfirmed:  {model.OrderProcessing: true, model.OrderCancelled: true},
		model.OrderProcessing: {model.OrderShipped: true, model.OrderCancelled: true},
		model.OrderShipped:    {model.OrderDelivered: true, model.OrderReturned: true},
		model.OrderDelivered:  {model.OrderReturned: true},
		model.OrderReturned:   {model.OrderRefunded: true},
	}

	for _, from := range model.OrderStatuses {
		for _, to := range model.OrderStatuses {
			want := allowed[from][to]
			assert.Equalf(t, want, order.CanTransitionTo(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransitionToExamples(t *testing.T) {
	assert.False(t, order.CanTransitionTo(model.OrderDelivered, model.OrderPending))
	assert.True(t, order.CanTransitionTo(model.OrderShipped, model.OrderDelivered))
	assert.False(t, order.CanTransitionTo(model.OrderShipped, model.OrderCancelled))
	assert.False(t, order.CanTransitionTo("UNKNOWN", model.OrderConfirmed))
}

func TestIsTerminal(t *testing.T) {
	for _, s := range model.OrderStatuses {
		terminal := s == model.OrderCancelled || s == model.OrderRefunded
		assert.Equal(t, terminal, order.IsTerminal(s), s)
		assert.Equal(t, terminal, len(order.AllowedTransitions(s)) == 0, s)
	}
}

func TestShouldRestoreInventoryOnCancel(t *testing.T) {
	tests := map[model.OrderStatus]bool{
		model.OrderPending:    true,
		model.OrderConfirmed:  true,
		model.OrderProcessing: true,
		model.OrderShipped:    false,
		model.OrderDelivered:  false,
		model.OrderCancelled:  false,
		model.OrderReturned:   false,
		model.OrderRefunded:   false,
	}
	for status, want := range tests {
		assert.Equal(t, want, order.ShouldRestoreInventoryOnCancel(status), status)
	}
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	next := order.AllowedTransitions(model.OrderPending)
	next[0] = model.OrderRefunded
	assert.True(t, order.CanTransitionTo(model.OrderPending, model.OrderConfirmed))
}
