package dto

import (
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type CreateItemInput struct {
	ProductID       string
	VariantID       *string
	SKU             string
	WarehouseID     string
	OnHand          int
	Incoming        int
	ReorderPoint    int
	ReorderQuantity int
	SafetyStock     int
	MaxStock        *int
	UnitCost        decimal.NullDecimal
	Currency        string
	BinLocation     string
	Zone            string
	Aisle           string
	Shelf           string
	ActorID         string
}

// StockKey addresses stock by variant when VariantID is set, otherwise by
// the product's variant-less row.
type StockKey struct {
	ProductID string
	VariantID string
}

type ReserveStockInput struct {
	StockKey
	WarehouseID string
	Quantity    int
	OrderID     string
	CartID      string
	ActorID     string
}

type ReserveAnyWarehouseInput struct {
	StockKey
	Quantity int
	OrderID  string
	CartID   string
	ActorID  string
}

type ReceiveStockInput struct {
	SKU           string
	WarehouseID   string
	Quantity      int
	ReferenceType string
	ReferenceID   string
	Notes         string
	ActorID       string
}

type AdjustStockInput struct {
	InventoryItemID string
	NewQuantity     int
	Reason          string
	ActorID         string
}

type TransferStockInput struct {
	SKU             string
	FromWarehouseID string
	ToWarehouseID   string
	Quantity        int
	Reason          string
	ActorID         string
}

type RecordDamageInput struct {
	InventoryItemID string
	Quantity        int
	Reason          string
	ActorID         string
}

type ReturnStockInput struct {
	InventoryItemID string
	Quantity        int
	ReferenceType   string
	ReferenceID     string
	Reason          string
	ActorID         string
}

type SetItemStatusInput struct {
	InventoryItemID string
	Status          model.ItemStatus
	ActorID         string
}
