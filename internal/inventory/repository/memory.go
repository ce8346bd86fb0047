package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type memState struct {
	mu           sync.Mutex
	items        map[string]model.InventoryItem
	reservations map[string]model.StockReservation
	movements    []model.InventoryMovement
}

// MemoryRepository keeps everything in process. A transaction holds the single
// state mutex for its whole duration, which serializes writers the way a row
// lock would and makes rollback a snapshot restore.
type MemoryRepository struct {
	state *memState
	inTx  bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: &memState{
		items:        map[string]model.InventoryItem{},
		reservations: map[string]model.StockReservation{},
	}}
}

func (r *MemoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.state.mu.Lock()
	return r.state.mu.Unlock
}

func (r *MemoryRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo inventory.Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	items := make(map[string]model.InventoryItem, len(r.state.items))
	for k, v := range r.state.items {
		items[k] = v
	}
	reservations := make(map[string]model.StockReservation, len(r.state.reservations))
	for k, v := range r.state.reservations {
		reservations[k] = v
	}
	movementCount := len(r.state.movements)

	if err := fn(ctx, &MemoryRepository{state: r.state, inTx: true}); err != nil {
		r.state.items = items
		r.state.reservations = reservations
		r.state.movements = r.state.movements[:movementCount]
		return err
	}
	return nil
}

// --- Inventory items ---

func (r *MemoryRepository) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	defer r.lock()()
	for _, existing := range r.state.items {
		if existing.SKU == item.SKU && existing.WarehouseID == item.WarehouseID {
			return fmt.Errorf("sku %s at warehouse %s: %w", item.SKU, item.WarehouseID, model.ErrAlreadyExists)
		}
	}
	r.state.items[item.ID] = *item
	return nil
}

func (r *MemoryRepository) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	defer r.lock()()
	item, ok := r.state.items[id]
	if !ok {
		return nil, model.NewNotFound("inventory item", id)
	}
	return &item, nil
}

func (r *MemoryRepository) GetItemForUpdate(ctx context.Context, id string) (*model.InventoryItem, error) {
	return r.GetItem(ctx, id)
}

func (r *MemoryRepository) FindItem(ctx context.Context, key dto.StockKey, warehouseID string) (*model.InventoryItem, error) {
	defer r.lock()()
	for _, item := range r.state.items {
		if item.WarehouseID != warehouseID {
			continue
		}
		if matchesKey(&item, key) {
			return &item, nil
		}
	}
	return nil, model.NewNotFound("inventory item", stockKeyString(key)+"@"+warehouseID)
}

func matchesKey(item *model.InventoryItem, key dto.StockKey) bool {
	if key.VariantID != "" {
		return item.VariantID != nil && *item.VariantID == key.VariantID
	}
	return item.ProductID == key.ProductID && item.VariantID == nil
}

func (r *MemoryRepository) FindItemBySKU(ctx context.Context, sku, warehouseID string) (*model.InventoryItem, error) {
	defer r.lock()()
	for _, item := range r.state.items {
		if item.SKU == sku && item.WarehouseID == warehouseID {
			return &item, nil
		}
	}
	return nil, model.NewNotFound("inventory item", sku+"@"+warehouseID)
}

func (r *MemoryRepository) ListItems(ctx context.Context, f *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	defer r.lock()()
	items := []model.InventoryItem{}
	for _, item := range r.state.items {
		if f.ProductID != "" && item.ProductID != f.ProductID {
			continue
		}
		if f.VariantID != "" && (item.VariantID == nil || *item.VariantID != f.VariantID) {
			continue
		}
		if f.WarehouseID != "" && item.WarehouseID != f.WarehouseID {
			continue
		}
		if f.SKU != "" && item.SKU != f.SKU {
			continue
		}
		if f.Status != "" && item.Status != f.Status {
			continue
		}
		if f.NeedsReorder && !item.NeedsReorder() {
			continue
		}
		if f.BelowSafetyStock && !item.IsBelowSafetyStock() {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return paginate(items, f.Page, f.PageSize), len(items), nil
}

func (r *MemoryRepository) UpdateItem(ctx context.Context, item *model.InventoryItem) error {
	defer r.lock()()
	if _, ok := r.state.items[item.ID]; !ok {
		return model.NewNotFound("inventory item", item.ID)
	}
	r.state.items[item.ID] = *item
	return nil
}

func (r *MemoryRepository) TryReserve(ctx context.Context, itemID string, qty int) (*model.InventoryItem, bool, error) {
	defer r.lock()()
	item, ok := r.state.items[itemID]
	if !ok {
		return nil, false, model.NewNotFound("inventory item", itemID)
	}
	if !item.Reserve(qty) {
		return nil, false, nil
	}
	item.UpdatedAt = time.Now().UTC()
	r.state.items[itemID] = item
	return &item, true, nil
}

// --- Reservations ---

func (r *MemoryRepository) CreateReservation(ctx context.Context, res *model.StockReservation) error {
	defer r.lock()()
	if _, ok := r.state.reservations[res.ID]; ok {
		return fmt.Errorf("reservation %s: %w", res.ID, model.ErrAlreadyExists)
	}
	r.state.reservations[res.ID] = *res
	return nil
}

func (r *MemoryRepository) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	defer r.lock()()
	res, ok := r.state.reservations[id]
	if !ok {
		return nil, model.NewNotFound("reservation", id)
	}
	return &res, nil
}

func (r *MemoryRepository) GetReservationForUpdate(ctx context.Context, id string) (*model.StockReservation, error) {
	return r.GetReservation(ctx, id)
}

func (r *MemoryRepository) UpdateReservation(ctx context.Context, res *model.StockReservation) error {
	defer r.lock()()
	if _, ok := r.state.reservations[res.ID]; !ok {
		return model.NewNotFound("reservation", res.ID)
	}
	r.state.reservations[res.ID] = *res
	return nil
}

func (r *MemoryRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.StockReservation, int, error) {
	defer r.lock()()
	items := []model.StockReservation{}
	for _, res := range r.state.reservations {
		if f.InventoryItemID != "" && res.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.OrderID != "" && (res.OrderID == nil || *res.OrderID != f.OrderID) {
			continue
		}
		if f.CartID != "" && (res.CartID == nil || *res.CartID != f.CartID) {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		if f.Type != "" && res.Type != f.Type {
			continue
		}
		items = append(items, res)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return paginate(items, f.Page, f.PageSize), len(items), nil
}

func (r *MemoryRepository) ListExpiredCartReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	return r.listStale(limit, func(res *model.StockReservation) bool {
		return res.Status == model.ReservationReserved && res.Type == model.ReservationCart && res.IsExpired(now)
	}), nil
}

func (r *MemoryRepository) ListOverdueReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	return r.listStale(limit, func(res *model.StockReservation) bool {
		return res.IsOverdue(now) && res.OverdueAlertedAt == nil
	}), nil
}

func (r *MemoryRepository) listStale(limit int, match func(*model.StockReservation) bool) []model.StockReservation {
	defer r.lock()()
	items := []model.StockReservation{}
	for _, res := range r.state.reservations {
		if match(&res) {
			items = append(items, res)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ExpiresAt.Before(items[j].ExpiresAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (r *MemoryRepository) MarkReservationOverdue(ctx context.Context, id string, now time.Time) (bool, error) {
	defer r.lock()()
	res, ok := r.state.reservations[id]
	if !ok {
		return false, model.NewNotFound("reservation", id)
	}
	if res.Status != model.ReservationReserved || res.OverdueAlertedAt != nil {
		return false, nil
	}
	res.OverdueAlertedAt = &now
	r.state.reservations[id] = res
	return true, nil
}

func (r *MemoryRepository) SumActiveReservations(ctx context.Context) (map[string]int, error) {
	defer r.lock()()
	sums := map[string]int{}
	for _, res := range r.state.reservations {
		if res.Status == model.ReservationReserved {
			sums[res.InventoryItemID] += res.Quantity
		}
	}
	return sums, nil
}

// --- Movements ---

func (r *MemoryRepository) AppendMovement(ctx context.Context, m *model.InventoryMovement) error {
	defer r.lock()()
	r.state.movements = append(r.state.movements, *m)
	return nil
}

func (r *MemoryRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	defer r.lock()()
	items := []model.InventoryMovement{}
	// newest first, matching the SQL ordering
	for i := len(r.state.movements) - 1; i >= 0; i-- {
		m := r.state.movements[i]
		if f.InventoryItemID != "" && m.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.WarehouseID != "" && m.WarehouseID != f.WarehouseID {
			continue
		}
		if f.SKU != "" && m.SKU != f.SKU {
			continue
		}
		if f.MovementType != "" && m.Type != f.MovementType {
			continue
		}
		if f.ReferenceType != "" && (m.ReferenceType == nil || *m.ReferenceType != f.ReferenceType) {
			continue
		}
		if f.ReferenceID != "" && (m.ReferenceID == nil || *m.ReferenceID != f.ReferenceID) {
			continue
		}
		if f.StartDate != nil && m.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && m.CreatedAt.After(*f.EndDate) {
			continue
		}
		items = append(items, m)
	}
	return paginate(items, f.Page, f.PageSize), len(items), nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
