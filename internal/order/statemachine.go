package order

import "github.com/fekuna/omnipos-stock-service/internal/model"

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:    {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed:  {model.OrderProcessing, model.OrderCancelled},
	model.OrderProcessing: {model.OrderShipped, model.OrderCancelled},
	model.OrderShipped:    {model.OrderDelivered, model.OrderReturned},
	model.OrderDelivered:  {model.OrderReturned},
	model.OrderReturned:   {model.OrderRefunded},
	model.OrderCancelled:  {},
	model.OrderRefunded:   {},
}

// CanTransitionTo reports whether the order graph has an edge current -> target.
// Anything not listed, including staying in place, is rejected.
func CanTransitionTo(current, target model.OrderStatus) bool {
	for _, s := range transitions[current] {
		if s == target {
			return true
		}
	}
	return false
}

func AllowedTransitions(current model.OrderStatus) []model.OrderStatus {
	return append([]model.OrderStatus(nil), transitions[current]...)
}

func IsTerminal(s model.OrderStatus) bool {
	return s == model.OrderCancelled || s == model.OrderRefunded
}

// ShouldRestoreInventoryOnCancel is true only before shipment. Shipped or
// delivered goods come back through RETURNED instead.
func ShouldRestoreInventoryOnCancel(s model.OrderStatus) bool {
	switch s {
	case model.OrderPending, model.OrderConfirmed, model.OrderProcessing:
		return true
	}
	return false
}
