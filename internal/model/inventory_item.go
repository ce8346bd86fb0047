package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusActive       ItemStatus = "ACTIVE"
	ItemStatusInactive     ItemStatus = "INACTIVE"
	ItemStatusDiscontinued ItemStatus = "DISCONTINUED"
	ItemStatusOnHold       ItemStatus = "ON_HOLD"
)

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusActive, ItemStatusInactive, ItemStatusDiscontinued, ItemStatusOnHold:
		return true
	}
	return false
}

// InventoryItem is the stock ledger row for one SKU at one warehouse.
// The counters are only ever changed through the methods below.
type InventoryItem struct {
	ID          string  `db:"id" json:"id"`
	ProductID   string  `db:"product_id" json:"product_id"`
	VariantID   *string `db:"variant_id" json:"variant_id,omitempty"`
	SKU         string  `db:"sku" json:"sku"`
	WarehouseID string  `db:"warehouse_id" json:"warehouse_id"`

	OnHand   int `db:"on_hand" json:"on_hand"`
	Reserved int `db:"reserved" json:"reserved"`
	Incoming int `db:"incoming" json:"incoming"`
	Damaged  int `db:"damaged" json:"damaged"`

	ReorderPoint    int  `db:"reorder_point" json:"reorder_point"`
	ReorderQuantity int  `db:"reorder_quantity" json:"reorder_quantity"`
	SafetyStock     int  `db:"safety_stock" json:"safety_stock"`
	MaxStock        *int `db:"max_stock" json:"max_stock,omitempty"`

	UnitCost decimal.NullDecimal `db:"unit_cost" json:"unit_cost"`
	Currency string              `db:"currency" json:"currency"`

	BinLocation string `db:"bin_location" json:"bin_location,omitempty"`
	Zone        string `db:"zone" json:"zone,omitempty"`
	Aisle       string `db:"aisle" json:"aisle,omitempty"`
	Shelf       string `db:"shelf" json:"shelf,omitempty"`

	Status        ItemStatus `db:"status" json:"status"`
	LastCountedAt *time.Time `db:"last_counted_at" json:"last_counted_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (i *InventoryItem) AvailableQuantity() int {
	return i.OnHand - i.Reserved
}

func (i *InventoryItem) IsInStock() bool {
	return i.AvailableQuantity() > 0
}

// NeedsReorder counts incoming stock as already on its way.
func (i *InventoryItem) NeedsReorder() bool {
	return i.OnHand-i.Reserved+i.Incoming <= i.ReorderPoint
}

func (i *InventoryItem) IsBelowSafetyStock() bool {
	return i.OnHand-i.Reserved <= i.SafetyStock
}

// Reserve earmarks qty if that much is available. It is a check-then-act on
// shared state, so callers must hold the row lock or use the repository's
// conditional update.
func (i *InventoryItem) Reserve(qty int) bool {
	if qty <= 0 || i.AvailableQuantity() < qty {
		return false
	}
	i.Reserved += qty
	return true
}

// ReleaseReservation clamps at zero so an over-release never goes negative.
func (i *InventoryItem) ReleaseReservation(qty int) {
	i.Reserved -= qty
	if i.Reserved < 0 {
		i.Reserved = 0
	}
}

// Fulfill ships reserved stock. The caller guarantees qty <= reserved <= on-hand;
// a violation surfaces through CheckInvariants rather than being clamped.
func (i *InventoryItem) Fulfill(qty int) {
	i.OnHand -= qty
	i.Reserved -= qty
}

func (i *InventoryItem) ReceiveStock(qty int) {
	i.OnHand += qty
	i.Incoming -= qty
	if i.Incoming < 0 {
		i.Incoming = 0
	}
}

// AdjustStock records a physical count. Reserved is left untouched.
func (i *InventoryItem) AdjustStock(newOnHand int, countedAt time.Time) {
	i.OnHand = newOnHand
	i.LastCountedAt = &countedAt
}

// MarkDamaged moves qty of unreserved stock from on-hand to damaged.
func (i *InventoryItem) MarkDamaged(qty int) bool {
	if qty <= 0 || i.AvailableQuantity() < qty {
		return false
	}
	i.OnHand -= qty
	i.Damaged += qty
	return true
}

// RemoveStock takes qty of unreserved stock off the shelf (transfers out, write-offs).
func (i *InventoryItem) RemoveStock(qty int) bool {
	if qty <= 0 || i.AvailableQuantity() < qty {
		return false
	}
	i.OnHand -= qty
	return true
}

// Restock puts qty back on the shelf without touching incoming (returns, transfers in).
func (i *InventoryItem) Restock(qty int) {
	i.OnHand += qty
}

func (i *InventoryItem) InventoryValue() decimal.Decimal {
	if !i.UnitCost.Valid {
		return decimal.Zero
	}
	return i.UnitCost.Decimal.Mul(decimal.NewFromInt(int64(i.OnHand)))
}

// CheckInvariants verifies 0 <= reserved <= on-hand and non-negative counters.
func (i *InventoryItem) CheckInvariants() error {
	var detail string
	switch {
	case i.OnHand < 0:
		detail = "on_hand is negative"
	case i.Reserved < 0:
		detail = "reserved is negative"
	case i.Reserved > i.OnHand:
		detail = "reserved exceeds on_hand"
	case i.Incoming < 0 || i.Damaged < 0:
		detail = "incoming or damaged is negative"
	default:
		return nil
	}
	return &IntegrityViolationError{
		InventoryItemID: i.ID,
		OnHand:          i.OnHand,
		Reserved:        i.Reserved,
		Detail:          detail,
	}
}

func (i *InventoryItem) IsReservable() bool {
	return i.Status == ItemStatusActive
}
