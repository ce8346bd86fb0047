package dto

import (
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type ItemFilters struct {
	ProductID        string
	VariantID        string
	WarehouseID      string
	SKU              string
	Status           model.ItemStatus
	NeedsReorder     bool // on_hand - reserved + incoming <= reorder_point
	BelowSafetyStock bool // on_hand - reserved <= safety_stock
	Page             int
	PageSize         int
}

type ReservationFilters struct {
	InventoryItemID string
	OrderID         string
	CartID          string
	Status          model.ReservationStatus
	Type            model.ReservationType
	Page            int
	PageSize        int
}

type MovementFilters struct {
	InventoryItemID string
	WarehouseID     string
	SKU             string
	MovementType    model.MovementType
	ReferenceType   string
	ReferenceID     string
	StartDate       *time.Time
	EndDate         *time.Time
	Page            int
	PageSize        int
}

type SweepResult struct {
	Expired []string `json:"expired"`
	Overdue []string `json:"overdue"`
	Skipped int      `json:"skipped"`
}

// ReservationMismatch is an item whose reserved counter disagrees with the
// sum of its RESERVED reservations.
type ReservationMismatch struct {
	InventoryItemID string `json:"inventory_item_id"`
	Reserved        int    `json:"reserved"`
	ReservationSum  int    `json:"reservation_sum"`
}
