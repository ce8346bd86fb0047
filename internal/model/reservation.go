package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationFulfilled || s == ReservationReleased || s == ReservationExpired
}

type ReservationType string

const (
	ReservationCart      ReservationType = "CART"
	ReservationOrder     ReservationType = "ORDER"
	ReservationBackorder ReservationType = "BACKORDER"
)

const (
	DefaultCartReservationTTL  = 30 * time.Minute
	DefaultOrderReservationTTL = 7 * 24 * time.Hour
)

// StockReservation holds quantity of one inventory item for a cart or an order.
type StockReservation struct {
	ID               string            `db:"id" json:"id"`
	InventoryItemID  string            `db:"inventory_item_id" json:"inventory_item_id"`
	CartID           *string           `db:"cart_id" json:"cart_id,omitempty"`
	OrderID          *string           `db:"order_id" json:"order_id,omitempty"`
	Quantity         int               `db:"quantity" json:"quantity"`
	Status           ReservationStatus `db:"status" json:"status"`
	Type             ReservationType   `db:"reservation_type" json:"reservation_type"`
	ExpiresAt        time.Time         `db:"expires_at" json:"expires_at"`
	ReservedAt       time.Time         `db:"reserved_at" json:"reserved_at"`
	FulfilledAt      *time.Time        `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	ReleasedAt       *time.Time        `db:"released_at" json:"released_at,omitempty"`
	// OverdueAlertedAt is set once an ORDER or BACKORDER hold past its expiry
	// has been reported.
	OverdueAlertedAt *time.Time        `db:"overdue_alerted_at" json:"overdue_alerted_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// NewStockReservation builds a RESERVED reservation. A non-empty orderID makes it
// an ORDER reservation, otherwise it is a CART hold.
func NewStockReservation(itemID string, qty int, orderID, cartID string, now time.Time, cartTTL, orderTTL time.Duration) *StockReservation {
	r := &StockReservation{
		ID:              uuid.New().String(),
		InventoryItemID: itemID,
		Quantity:        qty,
		Status:          ReservationReserved,
		Type:            ReservationCart,
		ReservedAt:      now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cartID != "" {
		r.CartID = &cartID
	}
	if orderID != "" {
		r.OrderID = &orderID
		r.Type = ReservationOrder
		r.ExpiresAt = now.Add(orderTTL)
	} else {
		r.ExpiresAt = now.Add(cartTTL)
	}
	return r
}

func (r *StockReservation) IsActive() bool {
	return r.Status == ReservationReserved
}

func (r *StockReservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsOverdue reports an ORDER or BACKORDER hold still RESERVED past its expiry.
func (r *StockReservation) IsOverdue(now time.Time) bool {
	return r.Status == ReservationReserved && r.Type != ReservationCart && r.IsExpired(now)
}

func (r *StockReservation) transitionError(to ReservationStatus) error {
	return &InvalidStateError{
		Entity: "reservation",
		ID:     r.ID,
		From:   string(r.Status),
		To:     string(to),
	}
}

func (r *StockReservation) Fulfill(now time.Time) error {
	if r.Status != ReservationReserved {
		return r.transitionError(ReservationFulfilled)
	}
	r.Status = ReservationFulfilled
	r.FulfilledAt = &now
	r.UpdatedAt = now
	return nil
}

func (r *StockReservation) Release(now time.Time) error {
	if r.Status != ReservationReserved {
		return r.transitionError(ReservationReleased)
	}
	r.Status = ReservationReleased
	r.ReleasedAt = &now
	r.UpdatedAt = now
	return nil
}

func (r *StockReservation) Expire(now time.Time) error {
	if r.Status != ReservationReserved {
		return r.transitionError(ReservationExpired)
	}
	r.Status = ReservationExpired
	r.ReleasedAt = &now
	r.UpdatedAt = now
	return nil
}

// ConvertToOrder retypes a CART hold to ORDER in place, keeping id and quantity.
func (r *StockReservation) ConvertToOrder(orderID string, now time.Time, orderTTL time.Duration) error {
	if r.Status != ReservationReserved {
		return &InvalidStateError{
			Entity: "reservation", ID: r.ID,
			From: string(r.Status), To: string(ReservationReserved),
			Reason: "only a RESERVED reservation can be converted",
		}
	}
	if r.Type != ReservationCart {
		return &InvalidStateError{
			Entity: "reservation", ID: r.ID,
			From: string(r.Type), To: string(ReservationOrder),
			Reason: "only a CART reservation can be converted",
		}
	}
	r.OrderID = &orderID
	r.Type = ReservationOrder
	r.ExpiresAt = now.Add(orderTTL)
	r.UpdatedAt = now
	return nil
}
