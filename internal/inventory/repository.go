package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type Repository interface {
	// RunInTx runs fn against a repository bound to one transaction. A nil
	// return commits, anything else rolls back. Nested calls join the outer tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	// Inventory items
	CreateItem(ctx context.Context, item *model.InventoryItem) error
	GetItem(ctx context.Context, id string) (*model.InventoryItem, error)
	// GetItemForUpdate holds the row lock until the transaction ends.
	GetItemForUpdate(ctx context.Context, id string) (*model.InventoryItem, error)
	FindItem(ctx context.Context, key dto.StockKey, warehouseID string) (*model.InventoryItem, error)
	FindItemBySKU(ctx context.Context, sku, warehouseID string) (*model.InventoryItem, error)
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error)
	UpdateItem(ctx context.Context, item *model.InventoryItem) error
	// TryReserve adds qty to reserved only if available >= qty, in one atomic
	// step. ok is false when stock was insufficient; item is the updated row.
	TryReserve(ctx context.Context, itemID string, qty int) (item *model.InventoryItem, ok bool, err error)

	// Reservations
	CreateReservation(ctx context.Context, r *model.StockReservation) error
	GetReservation(ctx context.Context, id string) (*model.StockReservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (*model.StockReservation, error)
	UpdateReservation(ctx context.Context, r *model.StockReservation) error
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.StockReservation, int, error)
	// ListExpiredCartReservations returns RESERVED CART holds past expiry,
	// oldest first. limit <= 0 means no limit.
	ListExpiredCartReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error)
	// ListOverdueReservations returns RESERVED ORDER and BACKORDER holds past
	// expiry that have not been reported yet.
	ListOverdueReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error)
	// MarkReservationOverdue stamps overdue_alerted_at; false means the
	// reservation was already stamped or is no longer RESERVED.
	MarkReservationOverdue(ctx context.Context, id string, now time.Time) (bool, error)
	// SumActiveReservations maps item id to the total quantity of its RESERVED
	// reservations. Items without any are absent.
	SumActiveReservations(ctx context.Context) (map[string]int, error)

	// Movements / Audit
	AppendMovement(ctx context.Context, m *model.InventoryMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error)
}
