package dto

import "time"

const (
	EventStockReserved      = "stock.reserved"
	EventStockReleased      = "stock.released"
	EventStockFulfilled     = "stock.fulfilled"
	EventStockReceived      = "stock.received"
	EventStockAdjusted      = "stock.adjusted"
	EventStockTransferred   = "stock.transferred"
	EventStockDamaged       = "stock.damaged"
	EventStockReturned      = "stock.returned"
	EventStockLow           = "stock.low"
	EventReservationExpired = "reservation.expired"
	EventReservationOverdue = "reservation.overdue"
)

// InventoryEvent is published after the transaction that produced it commits.
type InventoryEvent struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	InventoryItemID string    `json:"inventory_item_id"`
	SKU             string    `json:"sku"`
	WarehouseID     string    `json:"warehouse_id"`
	ReservationID   string    `json:"reservation_id,omitempty"`
	OrderID         string    `json:"order_id,omitempty"`
	CartID          string    `json:"cart_id,omitempty"`
	Quantity        int       `json:"quantity"`
	OnHand          int       `json:"on_hand"`
	Reserved        int       `json:"reserved"`
	Available       int       `json:"available"`
	Timestamp       time.Time `json:"timestamp"`
}
