package model

import (
	"time"

	"github.com/google/uuid"
)

type MovementType string

const (
	MovementReceive        MovementType = "RECEIVE"
	MovementShip           MovementType = "SHIP"
	MovementReserve        MovementType = "RESERVE"
	MovementRelease        MovementType = "RELEASE"
	MovementReturn         MovementType = "RETURN"
	MovementAdjustment     MovementType = "ADJUSTMENT"
	MovementDamage         MovementType = "DAMAGE"
	MovementTransferOut    MovementType = "TRANSFER_OUT"
	MovementTransferIn     MovementType = "TRANSFER_IN"
	MovementWriteOff       MovementType = "WRITE_OFF"
	MovementQualityHold    MovementType = "QUALITY_HOLD"
	MovementQualityRelease MovementType = "QUALITY_RELEASE"
)

func (t MovementType) IsValid() bool {
	switch t {
	case MovementReceive, MovementShip, MovementReserve, MovementRelease, MovementReturn,
		MovementAdjustment, MovementDamage, MovementTransferOut, MovementTransferIn,
		MovementWriteOff, MovementQualityHold, MovementQualityRelease:
		return true
	}
	return false
}

// Reference types recorded on movements.
const (
	ReferenceReservation = "reservation"
	ReferenceOrder       = "order"
	ReferenceTransfer    = "transfer"
	ReferenceCount       = "stock_count"
	ReferencePurchase    = "purchase_order"
)

// InventoryMovement is an append-only audit row. Quantity is the signed delta of
// the counter the operation touched; QuantityBefore/After snapshot on-hand.
type InventoryMovement struct {
	ID              string       `db:"id" json:"id"`
	InventoryItemID string       `db:"inventory_item_id" json:"inventory_item_id"`
	WarehouseID     string       `db:"warehouse_id" json:"warehouse_id"`
	SKU             string       `db:"sku" json:"sku"`
	Type            MovementType `db:"movement_type" json:"movement_type"`
	Quantity        int          `db:"quantity" json:"quantity"`
	QuantityBefore  int          `db:"quantity_before" json:"quantity_before"`
	QuantityAfter   int          `db:"quantity_after" json:"quantity_after"`
	ReferenceType   *string      `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID     *string      `db:"reference_id" json:"reference_id,omitempty"`
	Reason          string       `db:"reason" json:"reason,omitempty"`
	Notes           string       `db:"notes" json:"notes,omitempty"`
	CreatedBy       *string      `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}

// NewMovement snapshots the item's on-hand before and after a mutation. before
// is the on-hand value read before the mutation was applied.
func NewMovement(item *InventoryItem, typ MovementType, delta, before int, actorID string, now time.Time) *InventoryMovement {
	m := &InventoryMovement{
		ID:              uuid.New().String(),
		InventoryItemID: item.ID,
		WarehouseID:     item.WarehouseID,
		SKU:             item.SKU,
		Type:            typ,
		Quantity:        delta,
		QuantityBefore:  before,
		QuantityAfter:   item.OnHand,
		CreatedAt:       now,
	}
	if actorID != "" {
		m.CreatedBy = &actorID
	}
	return m
}

func (m *InventoryMovement) WithReference(refType, refID string) *InventoryMovement {
	if refType != "" {
		m.ReferenceType = &refType
	}
	if refID != "" {
		m.ReferenceID = &refID
	}
	return m
}

func (m *InventoryMovement) WithReason(reason, notes string) *InventoryMovement {
	m.Reason = reason
	m.Notes = notes
	return m
}
