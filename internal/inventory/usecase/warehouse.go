package usecase

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	warehouseDto "github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
	"go.opentelemetry.io/otel/attribute"
)

type candidate struct {
	item      model.InventoryItem
	warehouse model.Warehouse
}

// ReserveStockAnyWarehouse reserves from the first warehouse that can cover
// the whole quantity. Warehouses are tried by priority (highest first), then
// by available quantity (largest first), then by code, so the choice never
// depends on store ordering. Inactive warehouses and items are skipped.
func (uc *inventoryUseCase) ReserveStockAnyWarehouse(ctx context.Context, input *dto.ReserveAnyWarehouseInput) (res *model.StockReservation, err error) {
	ctx, span := startSpan(ctx, "ReserveStockAnyWarehouse", attribute.Int("quantity", input.Quantity))
	defer func() { endSpan(span, err) }()

	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	if input.ProductID == "" && input.VariantID == "" {
		return nil, model.NewInvalidInput("product_id", "product or variant is required")
	}

	active, err := uc.activeWarehouses(ctx, "")
	if err != nil {
		return nil, err
	}

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		items, err := uc.itemsForKey(ctx, repo, input.StockKey)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return model.NewNotFound("inventory item", keyLabel(input.StockKey))
		}

		candidates := make([]candidate, 0, len(items))
		for _, item := range items {
			w, ok := active[item.WarehouseID]
			if !ok || !item.IsReservable() {
				continue
			}
			candidates = append(candidates, candidate{item: item, warehouse: w})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.warehouse.Priority != b.warehouse.Priority {
				return a.warehouse.Priority > b.warehouse.Priority
			}
			if a.item.AvailableQuantity() != b.item.AvailableQuantity() {
				return a.item.AvailableQuantity() > b.item.AvailableQuantity()
			}
			return a.warehouse.Code < b.warehouse.Code
		})

		best := &model.InsufficientStockError{Requested: input.Quantity}
		for i := range candidates {
			c := &candidates[i]
			if c.item.AvailableQuantity() < input.Quantity {
				if c.item.AvailableQuantity() > best.Available {
					best.InventoryItemID, best.SKU, best.Available = c.item.ID, c.item.SKU, c.item.AvailableQuantity()
				}
				continue
			}
			res, err = uc.reserveOnItem(ctx, repo, fx, &c.item, input.Quantity, input.OrderID, input.CartID, input.ActorID)
			if err == nil {
				return nil
			}
			var ise *model.InsufficientStockError
			if !errors.As(err, &ise) {
				return err
			}
			// lost the race for this row, try the next warehouse
			if ise.Available > best.Available {
				best.InventoryItemID, best.SKU, best.Available = ise.InventoryItemID, ise.SKU, ise.Available
			}
		}
		return best
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FindBestWarehouseForProduct picks, among active warehouses in the country
// that hold available stock of the product, the highest priority one. Ties
// go to the warehouse nearest target (no coordinates counts as farthest),
// then to the lowest code. A nil warehouse with a nil error means none can
// ship it.
func (uc *inventoryUseCase) FindBestWarehouseForProduct(ctx context.Context, productID, countryCode string, target *model.GeoPoint) (w *model.Warehouse, err error) {
	ctx, span := startSpan(ctx, "FindBestWarehouseForProduct",
		attribute.String("product_id", productID),
		attribute.String("country_code", countryCode),
	)
	defer func() { endSpan(span, err) }()

	items, _, err := uc.repo.ListItems(ctx, &dto.ItemFilters{ProductID: productID, Status: model.ItemStatusActive})
	if err != nil {
		return nil, err
	}
	stocked := map[string]bool{}
	for i := range items {
		if items[i].AvailableQuantity() > 0 {
			stocked[items[i].WarehouseID] = true
		}
	}

	active, err := uc.activeWarehouses(ctx, countryCode)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		warehouse model.Warehouse
		distance  float64
	}
	candidates := []ranked{}
	for id, wh := range active {
		if !stocked[id] {
			continue
		}
		d := math.Inf(1)
		if target != nil {
			d, _ = wh.DistanceTo(*target)
		}
		candidates = append(candidates, ranked{warehouse: wh, distance: d})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.warehouse.Priority != b.warehouse.Priority {
			return a.warehouse.Priority > b.warehouse.Priority
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.warehouse.Code < b.warehouse.Code
	})
	best := candidates[0].warehouse
	return &best, nil
}

func (uc *inventoryUseCase) activeWarehouses(ctx context.Context, countryCode string) (map[string]model.Warehouse, error) {
	list, err := uc.warehouses.List(ctx, &warehouseDto.WarehouseFilters{ActiveOnly: true, CountryCode: countryCode})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Warehouse, len(list))
	for _, w := range list {
		if w.IsActive && w.ServesCountry(countryCode) {
			byID[w.ID] = w
		}
	}
	return byID, nil
}

// itemsForKey lists the rows a stock key addresses: one variant, or the
// variant-less rows of a product.
func (uc *inventoryUseCase) itemsForKey(ctx context.Context, repo inventory.Repository, key dto.StockKey) ([]model.InventoryItem, error) {
	if key.VariantID != "" {
		items, _, err := repo.ListItems(ctx, &dto.ItemFilters{VariantID: key.VariantID})
		return items, err
	}
	all, _, err := repo.ListItems(ctx, &dto.ItemFilters{ProductID: key.ProductID})
	if err != nil {
		return nil, err
	}
	items := all[:0]
	for _, item := range all {
		if item.VariantID == nil {
			items = append(items, item)
		}
	}
	return items, nil
}

func keyLabel(key dto.StockKey) string {
	if key.VariantID != "" {
		return "variant " + key.VariantID
	}
	return "product " + key.ProductID
}
