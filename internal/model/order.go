package model

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderReturned   OrderStatus = "RETURNED"
	OrderRefunded   OrderStatus = "REFUNDED"
)

var OrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
	OrderDelivered, OrderCancelled, OrderReturned, OrderRefunded,
}

func (s OrderStatus) IsValid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Order is the slice of a customer order this service needs: its status and
// the cart whose reservations it took over.
type Order struct {
	ID         string      `db:"id" json:"id"`
	CartID     *string     `db:"cart_id" json:"cart_id,omitempty"`
	CustomerID *string     `db:"customer_id" json:"customer_id,omitempty"`
	Status     OrderStatus `db:"status" json:"status"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}
