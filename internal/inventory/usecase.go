package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type UseCase interface {
	// Items
	CreateItem(ctx context.Context, input *dto.CreateItemInput) (*model.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*model.InventoryItem, error)
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)
	SetItemStatus(ctx context.Context, input *dto.SetItemStatusInput) (*model.InventoryItem, error)
	GetAvailableQuantity(ctx context.Context, key dto.StockKey) (int, error)
	GetItemsNeedingReorder(ctx context.Context) ([]model.InventoryItem, error)
	GetItemsBelowSafetyStock(ctx context.Context) ([]model.InventoryItem, error)

	// Reservations
	ReserveStock(ctx context.Context, input *dto.ReserveStockInput) (*model.StockReservation, error)
	ReserveStockAnyWarehouse(ctx context.Context, input *dto.ReserveAnyWarehouseInput) (*model.StockReservation, error)
	ReleaseReservation(ctx context.Context, reservationID, actorID, reason string) (*model.StockReservation, error)
	FulfillReservation(ctx context.Context, reservationID, actorID string) (*model.StockReservation, error)
	ConvertReservationToOrder(ctx context.Context, reservationID, orderID string) (*model.StockReservation, error)
	ConvertCartToOrder(ctx context.Context, cartID, orderID string) ([]model.StockReservation, error)
	GetReservation(ctx context.Context, id string) (*model.StockReservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.StockReservation, int, error)

	// Stock movements
	ReceiveStock(ctx context.Context, input *dto.ReceiveStockInput) (*model.InventoryItem, error)
	AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.InventoryItem, error)
	TransferStock(ctx context.Context, input *dto.TransferStockInput) (from, to *model.InventoryItem, err error)
	RecordDamage(ctx context.Context, input *dto.RecordDamageInput) (*model.InventoryItem, error)
	ReturnStock(ctx context.Context, input *dto.ReturnStockInput) (*model.InventoryItem, error)
	// ReturnReservation restocks a FULFILLED reservation's quantity at most once.
	ReturnReservation(ctx context.Context, reservationID, actorID, reason string) (*model.StockReservation, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)

	// Fulfillment routing
	// FindBestWarehouseForProduct returns nil, nil when no warehouse qualifies.
	FindBestWarehouseForProduct(ctx context.Context, productID, countryCode string, target *model.GeoPoint) (*model.Warehouse, error)

	// Maintenance
	ExpireStaleReservations(ctx context.Context, now time.Time, limit int) (*dto.SweepResult, error)
	ReconcileReservations(ctx context.Context) ([]dto.ReservationMismatch, error)
}

// EventPublisher ships inventory events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...dto.InventoryEvent) error
}

// MovementIndexer mirrors movements into a search index.
type MovementIndexer interface {
	IndexMovement(ctx context.Context, m *model.InventoryMovement) error
}
