package dto

import (
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type CreateOrderInput struct {
	// ID is optional; callers that already own an order id pass it through.
	ID         string
	CartID     string
	CustomerID string
}

type UpdateStatusInput struct {
	OrderID string
	Status  model.OrderStatus
	ActorID string
	Reason  string
}

// OrderEvent is what the order service publishes on the orders topic.
type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID         string `json:"id"`
	CartID     string `json:"cart_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

const EventOrderCreated = "OrderCreated"

// StatusEvents maps order event types onto the status they move the order to.
var StatusEvents = map[string]model.OrderStatus{
	"OrderConfirmed":  model.OrderConfirmed,
	"OrderProcessing": model.OrderProcessing,
	"OrderShipped":    model.OrderShipped,
	"OrderDelivered":  model.OrderDelivered,
	"OrderCancelled":  model.OrderCancelled,
	"OrderReturned":   model.OrderReturned,
	"OrderRefunded":   model.OrderRefunded,
}
