package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Options struct {
	CartReservationTTL  time.Duration
	OrderReservationTTL time.Duration
	DefaultCurrency     string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type inventoryUseCase struct {
	repo       inventory.Repository
	warehouses warehouse.Repository
	publisher  inventory.EventPublisher
	indexer    inventory.MovementIndexer
	opts       Options
	metrics    *metrics
	logger     logger.ZapLogger
}

// NewInventoryUseCase wires the stock ledger. publisher and indexer may be nil.
func NewInventoryUseCase(
	repo inventory.Repository,
	warehouses warehouse.Repository,
	publisher inventory.EventPublisher,
	indexer inventory.MovementIndexer,
	opts Options,
	log logger.ZapLogger,
) inventory.UseCase {
	if opts.CartReservationTTL <= 0 {
		opts.CartReservationTTL = model.DefaultCartReservationTTL
	}
	if opts.OrderReservationTTL <= 0 {
		opts.OrderReservationTTL = model.DefaultOrderReservationTTL
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &inventoryUseCase{
		repo:       repo,
		warehouses: warehouses,
		publisher:  publisher,
		indexer:    indexer,
		opts:       opts,
		metrics:    newMetrics(),
		logger:     log,
	}
}

// effects collects what a transaction produced so it can be published only
// after commit.
type effects struct {
	events    []dto.InventoryEvent
	movements []*model.InventoryMovement
}

func (e *effects) emit(typ string, item *model.InventoryItem, qty int, res *model.StockReservation, now time.Time) {
	evt := dto.InventoryEvent{
		EventID:         uuid.New().String(),
		EventType:       typ,
		InventoryItemID: item.ID,
		SKU:             item.SKU,
		WarehouseID:     item.WarehouseID,
		Quantity:        qty,
		OnHand:          item.OnHand,
		Reserved:        item.Reserved,
		Available:       item.AvailableQuantity(),
		Timestamp:       now,
	}
	if res != nil {
		evt.ReservationID = res.ID
		if res.OrderID != nil {
			evt.OrderID = *res.OrderID
		}
		if res.CartID != nil {
			evt.CartID = *res.CartID
		}
	}
	e.events = append(e.events, evt)
}

// emitLowStock adds a stock.low event when the item crossed its reorder point.
func (e *effects) emitLowStock(item *model.InventoryItem, now time.Time) {
	if item.ReorderPoint > 0 && item.NeedsReorder() {
		e.emit(dto.EventStockLow, item, item.AvailableQuantity(), nil, now)
	}
}

func (e *effects) appendMovement(ctx context.Context, repo inventory.Repository, m *model.InventoryMovement) error {
	if err := repo.AppendMovement(ctx, m); err != nil {
		return err
	}
	e.movements = append(e.movements, m)
	return nil
}

// inTx runs fn in one repository transaction and, once committed, publishes
// the collected events and indexes the movements.
func (uc *inventoryUseCase) inTx(ctx context.Context, fn func(ctx context.Context, repo inventory.Repository, fx *effects) error) error {
	fx := &effects{}
	err := uc.repo.RunInTx(ctx, func(ctx context.Context, repo inventory.Repository) error {
		return fn(ctx, repo, fx)
	})
	if err != nil {
		var iv *model.IntegrityViolationError
		if errors.As(err, &iv) {
			uc.metrics.integrityViolation.Add(ctx, 1)
			uc.logger.Error("inventory invariant violated, transaction rolled back",
				zap.String("inventory_item_id", iv.InventoryItemID),
				zap.Int("on_hand", iv.OnHand),
				zap.Int("reserved", iv.Reserved),
				zap.String("detail", iv.Detail),
			)
		}
		return err
	}
	uc.afterCommit(ctx, fx)
	return nil
}

func (uc *inventoryUseCase) afterCommit(ctx context.Context, fx *effects) {
	if uc.publisher != nil && len(fx.events) > 0 {
		if err := uc.publisher.Publish(ctx, fx.events...); err != nil {
			uc.logger.Error("failed to publish inventory events", zap.Int("count", len(fx.events)), zap.Error(err))
		}
	}
	if uc.indexer != nil && len(fx.movements) > 0 {
		go uc.syncToElastic(context.WithoutCancel(ctx), fx.movements)
	}
}

func (uc *inventoryUseCase) syncToElastic(ctx context.Context, movements []*model.InventoryMovement) {
	for _, m := range movements {
		if err := uc.indexer.IndexMovement(ctx, m); err != nil {
			uc.logger.Error("failed to index movement", zap.String("movement_id", m.ID), zap.Error(err))
		}
	}
}

// saveItem is the single write path for item counters: nothing reaches the
// store unless the ledger invariants still hold.
func saveItem(ctx context.Context, repo inventory.Repository, item *model.InventoryItem, now time.Time) error {
	if err := item.CheckInvariants(); err != nil {
		return err
	}
	item.UpdatedAt = now
	return repo.UpdateItem(ctx, item)
}

func requirePositive(field string, qty int) error {
	if qty <= 0 {
		return model.NewInvalidInput(field, "must be greater than zero")
	}
	return nil
}

func insufficient(item *model.InventoryItem, requested int) error {
	return &model.InsufficientStockError{
		InventoryItemID: item.ID,
		SKU:             item.SKU,
		Requested:       requested,
		Available:       item.AvailableQuantity(),
	}
}

// --- Items ---

func (uc *inventoryUseCase) CreateItem(ctx context.Context, input *dto.CreateItemInput) (*model.InventoryItem, error) {
	if strings.TrimSpace(input.SKU) == "" {
		return nil, model.NewInvalidInput("sku", "is required")
	}
	if input.ProductID == "" {
		return nil, model.NewInvalidInput("product_id", "is required")
	}
	if input.OnHand < 0 || input.Incoming < 0 {
		return nil, model.NewInvalidInput("quantity", "must not be negative")
	}
	if input.ReorderPoint < 0 || input.ReorderQuantity < 0 || input.SafetyStock < 0 {
		return nil, model.NewInvalidInput("thresholds", "must not be negative")
	}
	if _, err := uc.warehouses.GetByID(ctx, input.WarehouseID); err != nil {
		return nil, err
	}

	now := uc.opts.Now()
	item := &model.InventoryItem{
		ID:              uuid.New().String(),
		ProductID:       input.ProductID,
		VariantID:       input.VariantID,
		SKU:             strings.TrimSpace(input.SKU),
		WarehouseID:     input.WarehouseID,
		OnHand:          input.OnHand,
		Incoming:        input.Incoming,
		ReorderPoint:    input.ReorderPoint,
		ReorderQuantity: input.ReorderQuantity,
		SafetyStock:     input.SafetyStock,
		MaxStock:        input.MaxStock,
		UnitCost:        input.UnitCost,
		Currency:        input.Currency,
		BinLocation:     input.BinLocation,
		Zone:            input.Zone,
		Aisle:           input.Aisle,
		Shelf:           input.Shelf,
		Status:          model.ItemStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if item.Currency == "" {
		item.Currency = uc.opts.DefaultCurrency
	}

	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		if err := repo.CreateItem(ctx, item); err != nil {
			return err
		}
		if item.OnHand == 0 {
			return nil
		}
		m := model.NewMovement(item, model.MovementReceive, item.OnHand, 0, input.ActorID, now).
			WithReason("initial stock", "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		fx.emit(dto.EventStockReceived, item, item.OnHand, nil, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info("inventory item created",
		zap.String("inventory_item_id", item.ID),
		zap.String("sku", item.SKU),
		zap.String("warehouse_id", item.WarehouseID),
	)
	return item, nil
}

func (uc *inventoryUseCase) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	return uc.repo.GetItem(ctx, id)
}

func (uc *inventoryUseCase) ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	if filters == nil {
		filters = &dto.ItemFilters{}
	}
	return uc.repo.ListItems(ctx, filters)
}

// SetItemStatus is the only way to retire an item; items are never deleted.
// Entering or leaving ON_HOLD is recorded as a quality movement.
func (uc *inventoryUseCase) SetItemStatus(ctx context.Context, input *dto.SetItemStatusInput) (*model.InventoryItem, error) {
	if !input.Status.IsValid() {
		return nil, model.NewInvalidInput("status", "unknown status "+string(input.Status))
	}

	var item *model.InventoryItem
	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		item, err = repo.GetItemForUpdate(ctx, input.InventoryItemID)
		if err != nil {
			return err
		}
		if item.Status == input.Status {
			return nil
		}
		if item.Status == model.ItemStatusDiscontinued {
			return &model.InvalidStateError{
				Entity: "inventory item", ID: item.ID,
				From: string(item.Status), To: string(input.Status),
				Reason: "discontinued items cannot be reactivated",
			}
		}

		now := uc.opts.Now()
		from := item.Status
		item.Status = input.Status
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}

		var typ model.MovementType
		switch {
		case input.Status == model.ItemStatusOnHold:
			typ = model.MovementQualityHold
		case from == model.ItemStatusOnHold:
			typ = model.MovementQualityRelease
		default:
			return nil
		}
		m := model.NewMovement(item, typ, 0, item.OnHand, input.ActorID, now).
			WithReason("status "+string(from)+" -> "+string(input.Status), "")
		return fx.appendMovement(ctx, repo, m)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetAvailableQuantity sums availability over every warehouse holding the
// product (or the single variant when VariantID is set).
// GetAvailableQuantity sums availability over the rows the key addresses, the
// same rows ReserveStock would draw from.
func (uc *inventoryUseCase) GetAvailableQuantity(ctx context.Context, key dto.StockKey) (int, error) {
	items, err := uc.itemsForKey(ctx, uc.repo, key)
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range items {
		total += items[i].AvailableQuantity()
	}
	return total, nil
}

func (uc *inventoryUseCase) GetItemsNeedingReorder(ctx context.Context) ([]model.InventoryItem, error) {
	items, _, err := uc.repo.ListItems(ctx, &dto.ItemFilters{NeedsReorder: true})
	return items, err
}

func (uc *inventoryUseCase) GetItemsBelowSafetyStock(ctx context.Context) ([]model.InventoryItem, error) {
	items, _, err := uc.repo.ListItems(ctx, &dto.ItemFilters{BelowSafetyStock: true})
	return items, err
}

// --- Reservations ---

func (uc *inventoryUseCase) ReserveStock(ctx context.Context, input *dto.ReserveStockInput) (res *model.StockReservation, err error) {
	ctx, span := startSpan(ctx, "ReserveStock",
		attribute.String("warehouse_id", input.WarehouseID),
		attribute.Int("quantity", input.Quantity),
	)
	defer func() { endSpan(span, err) }()

	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	if input.ProductID == "" && input.VariantID == "" {
		return nil, model.NewInvalidInput("product_id", "product or variant is required")
	}

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		item, err := repo.FindItem(ctx, input.StockKey, input.WarehouseID)
		if err != nil {
			return err
		}
		res, err = uc.reserveOnItem(ctx, repo, fx, item, input.Quantity, input.OrderID, input.CartID, input.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// reserveOnItem runs the conditional reserve against item and records the
// reservation, its RESERVE movement and events.
func (uc *inventoryUseCase) reserveOnItem(ctx context.Context, repo inventory.Repository, fx *effects, item *model.InventoryItem, qty int, orderID, cartID, actorID string) (*model.StockReservation, error) {
	if !item.IsReservable() {
		return nil, &model.InvalidStateError{
			Entity: "inventory item", ID: item.ID,
			From: string(item.Status), To: string(model.ReservationReserved),
			Reason: "item is not active",
		}
	}

	updated, ok, err := repo.TryReserve(ctx, item.ID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		uc.metrics.insufficientStock.Add(ctx, 1)
		current, err := repo.GetItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		return nil, insufficient(current, qty)
	}
	if err := updated.CheckInvariants(); err != nil {
		return nil, err
	}

	now := uc.opts.Now()
	res := model.NewStockReservation(updated.ID, qty, orderID, cartID, now, uc.opts.CartReservationTTL, uc.opts.OrderReservationTTL)
	if err := repo.CreateReservation(ctx, res); err != nil {
		return nil, err
	}

	m := model.NewMovement(updated, model.MovementReserve, qty, updated.OnHand, actorID, now).
		WithReference(model.ReferenceReservation, res.ID)
	if err := fx.appendMovement(ctx, repo, m); err != nil {
		return nil, err
	}

	uc.metrics.reservations.Add(ctx, 1)
	fx.emit(dto.EventStockReserved, updated, qty, res, now)
	fx.emitLowStock(updated, now)
	return res, nil
}

// ReleaseReservation returns the held quantity to available. Releasing an
// already released or expired reservation is a no-op.
func (uc *inventoryUseCase) ReleaseReservation(ctx context.Context, reservationID, actorID, reason string) (res *model.StockReservation, err error) {
	ctx, span := startSpan(ctx, "ReleaseReservation", attribute.String("reservation_id", reservationID))
	defer func() { endSpan(span, err) }()

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		res, err = repo.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status == model.ReservationReleased || res.Status == model.ReservationExpired {
			return nil
		}
		if res.Status != model.ReservationReserved {
			return &model.InvalidStateError{
				Entity: "reservation", ID: res.ID,
				From: string(res.Status), To: string(model.ReservationReleased),
			}
		}

		item, err := repo.GetItemForUpdate(ctx, res.InventoryItemID)
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		item.ReleaseReservation(res.Quantity)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}
		if err := res.Release(now); err != nil {
			return err
		}
		if err := repo.UpdateReservation(ctx, res); err != nil {
			return err
		}

		m := model.NewMovement(item, model.MovementRelease, -res.Quantity, item.OnHand, actorID, now).
			WithReference(model.ReferenceReservation, res.ID).
			WithReason(reason, "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		uc.metrics.releases.Add(ctx, 1)
		fx.emit(dto.EventStockReleased, item, res.Quantity, res, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FulfillReservation ships the reserved quantity: on-hand and reserved both
// drop and a SHIP movement is recorded.
func (uc *inventoryUseCase) FulfillReservation(ctx context.Context, reservationID, actorID string) (res *model.StockReservation, err error) {
	ctx, span := startSpan(ctx, "FulfillReservation", attribute.String("reservation_id", reservationID))
	defer func() { endSpan(span, err) }()

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		res, err = repo.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationReserved {
			return &model.InvalidStateError{
				Entity: "reservation", ID: res.ID,
				From: string(res.Status), To: string(model.ReservationFulfilled),
			}
		}

		item, err := repo.GetItemForUpdate(ctx, res.InventoryItemID)
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		before := item.OnHand
		item.Fulfill(res.Quantity)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}
		if err := res.Fulfill(now); err != nil {
			return err
		}
		if err := repo.UpdateReservation(ctx, res); err != nil {
			return err
		}

		refType, refID := model.ReferenceReservation, res.ID
		if res.OrderID != nil {
			refType, refID = model.ReferenceOrder, *res.OrderID
		}
		m := model.NewMovement(item, model.MovementShip, -res.Quantity, before, actorID, now).
			WithReference(refType, refID)
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		uc.metrics.fulfillments.Add(ctx, 1)
		fx.emit(dto.EventStockFulfilled, item, res.Quantity, res, now)
		fx.emitLowStock(item, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (uc *inventoryUseCase) ConvertReservationToOrder(ctx context.Context, reservationID, orderID string) (*model.StockReservation, error) {
	if orderID == "" {
		return nil, model.NewInvalidInput("order_id", "is required")
	}
	var res *model.StockReservation
	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		res, err = repo.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if err := res.ConvertToOrder(orderID, uc.opts.Now(), uc.opts.OrderReservationTTL); err != nil {
			return err
		}
		return repo.UpdateReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ConvertCartToOrder retargets every open CART reservation of the cart to the
// order. A cart with nothing open converts to an empty list.
func (uc *inventoryUseCase) ConvertCartToOrder(ctx context.Context, cartID, orderID string) ([]model.StockReservation, error) {
	if cartID == "" || orderID == "" {
		return nil, model.NewInvalidInput("cart_id", "cart and order are required")
	}
	converted := []model.StockReservation{}
	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		open, _, err := repo.ListReservations(ctx, &dto.ReservationFilters{
			CartID: cartID,
			Status: model.ReservationReserved,
			Type:   model.ReservationCart,
		})
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		for i := range open {
			res, err := repo.GetReservationForUpdate(ctx, open[i].ID)
			if err != nil {
				return err
			}
			if err := res.ConvertToOrder(orderID, now, uc.opts.OrderReservationTTL); err != nil {
				return err
			}
			if err := repo.UpdateReservation(ctx, res); err != nil {
				return err
			}
			converted = append(converted, *res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(converted) > 0 {
		uc.logger.Info("cart reservations converted to order",
			zap.String("cart_id", cartID),
			zap.String("order_id", orderID),
			zap.Int("count", len(converted)),
		)
	}
	return converted, nil
}

func (uc *inventoryUseCase) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	return uc.repo.GetReservation(ctx, id)
}

func (uc *inventoryUseCase) ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.StockReservation, int, error) {
	if filters == nil {
		filters = &dto.ReservationFilters{}
	}
	return uc.repo.ListReservations(ctx, filters)
}

// --- Stock movements ---

func (uc *inventoryUseCase) ReceiveStock(ctx context.Context, input *dto.ReceiveStockInput) (item *model.InventoryItem, err error) {
	ctx, span := startSpan(ctx, "ReceiveStock", attribute.String("sku", input.SKU), attribute.Int("quantity", input.Quantity))
	defer func() { endSpan(span, err) }()

	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		found, err := repo.FindItemBySKU(ctx, input.SKU, input.WarehouseID)
		if err != nil {
			return err
		}
		item, err = repo.GetItemForUpdate(ctx, found.ID)
		if err != nil {
			return err
		}

		now := uc.opts.Now()
		before := item.OnHand
		item.ReceiveStock(input.Quantity)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}

		refType := input.ReferenceType
		if refType == "" && input.ReferenceID != "" {
			refType = model.ReferencePurchase
		}
		m := model.NewMovement(item, model.MovementReceive, input.Quantity, before, input.ActorID, now).
			WithReference(refType, input.ReferenceID).
			WithReason("", input.Notes)
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		fx.emit(dto.EventStockReceived, item, input.Quantity, nil, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// AdjustStock records a physical count. A count below the reserved quantity
// is rejected rather than clamped; the reservations have to be resolved first.
func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (item *model.InventoryItem, err error) {
	ctx, span := startSpan(ctx, "AdjustStock", attribute.String("inventory_item_id", input.InventoryItemID))
	defer func() { endSpan(span, err) }()

	if input.NewQuantity < 0 {
		return nil, model.NewInvalidInput("new_quantity", "must not be negative")
	}

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		item, err = repo.GetItemForUpdate(ctx, input.InventoryItemID)
		if err != nil {
			return err
		}
		if input.NewQuantity < item.Reserved {
			uc.logger.Warn("stock count below reserved quantity",
				zap.String("inventory_item_id", item.ID),
				zap.String("sku", item.SKU),
				zap.Int("counted", input.NewQuantity),
				zap.Int("reserved", item.Reserved),
			)
			return &model.InvalidStateError{
				Entity: "inventory item", ID: item.ID,
				From:   strconv.Itoa(item.OnHand),
				To:     strconv.Itoa(input.NewQuantity),
				Reason: "count below reserved quantity " + strconv.Itoa(item.Reserved),
			}
		}

		now := uc.opts.Now()
		before := item.OnHand
		item.AdjustStock(input.NewQuantity, now)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}

		m := model.NewMovement(item, model.MovementAdjustment, input.NewQuantity-before, before, input.ActorID, now).
			WithReference(model.ReferenceCount, "").
			WithReason(input.Reason, "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		fx.emit(dto.EventStockAdjusted, item, input.NewQuantity-before, nil, now)
		fx.emitLowStock(item, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// TransferStock moves unreserved stock of a SKU between warehouses. The
// destination row is created on first transfer. Both rows are locked in id
// order so opposing transfers cannot deadlock.
func (uc *inventoryUseCase) TransferStock(ctx context.Context, input *dto.TransferStockInput) (from, to *model.InventoryItem, err error) {
	ctx, span := startSpan(ctx, "TransferStock",
		attribute.String("sku", input.SKU),
		attribute.String("from_warehouse_id", input.FromWarehouseID),
		attribute.String("to_warehouse_id", input.ToWarehouseID),
	)
	defer func() { endSpan(span, err) }()

	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, nil, err
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return nil, nil, model.NewInvalidInput("to_warehouse_id", "must differ from the source warehouse")
	}
	dest, err := uc.warehouses.GetByID(ctx, input.ToWarehouseID)
	if err != nil {
		return nil, nil, err
	}
	if !dest.IsActive {
		return nil, nil, &model.InvalidStateError{
			Entity: "warehouse", ID: dest.ID, From: "INACTIVE", To: string(model.MovementTransferIn),
			Reason: "destination warehouse is not active",
		}
	}

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		src, err := repo.FindItemBySKU(ctx, input.SKU, input.FromWarehouseID)
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		dst, err := repo.FindItemBySKU(ctx, input.SKU, input.ToWarehouseID)
		if errors.Is(err, model.ErrNotFound) {
			dst = &model.InventoryItem{
				ID:              uuid.New().String(),
				ProductID:       src.ProductID,
				VariantID:       src.VariantID,
				SKU:             src.SKU,
				WarehouseID:     input.ToWarehouseID,
				ReorderPoint:    src.ReorderPoint,
				ReorderQuantity: src.ReorderQuantity,
				SafetyStock:     src.SafetyStock,
				UnitCost:        src.UnitCost,
				Currency:        src.Currency,
				Status:          model.ItemStatusActive,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := repo.CreateItem(ctx, dst); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		first, second := src.ID, dst.ID
		if second < first {
			first, second = second, first
		}
		locked := map[string]*model.InventoryItem{}
		for _, id := range []string{first, second} {
			it, err := repo.GetItemForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = it
		}
		from, to = locked[src.ID], locked[dst.ID]

		fromBefore, toBefore := from.OnHand, to.OnHand
		if !from.RemoveStock(input.Quantity) {
			return insufficient(from, input.Quantity)
		}
		to.Restock(input.Quantity)
		if err := saveItem(ctx, repo, from, now); err != nil {
			return err
		}
		if err := saveItem(ctx, repo, to, now); err != nil {
			return err
		}

		transferID := uuid.New().String()
		out := model.NewMovement(from, model.MovementTransferOut, -input.Quantity, fromBefore, input.ActorID, now).
			WithReference(model.ReferenceTransfer, transferID).
			WithReason(input.Reason, "to warehouse "+input.ToWarehouseID)
		in := model.NewMovement(to, model.MovementTransferIn, input.Quantity, toBefore, input.ActorID, now).
			WithReference(model.ReferenceTransfer, transferID).
			WithReason(input.Reason, "from warehouse "+input.FromWarehouseID)
		for _, m := range []*model.InventoryMovement{out, in} {
			if err := fx.appendMovement(ctx, repo, m); err != nil {
				return err
			}
		}
		fx.emit(dto.EventStockTransferred, from, -input.Quantity, nil, now)
		fx.emit(dto.EventStockTransferred, to, input.Quantity, nil, now)
		fx.emitLowStock(from, now)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (uc *inventoryUseCase) RecordDamage(ctx context.Context, input *dto.RecordDamageInput) (*model.InventoryItem, error) {
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	var item *model.InventoryItem
	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		item, err = repo.GetItemForUpdate(ctx, input.InventoryItemID)
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		before := item.OnHand
		if !item.MarkDamaged(input.Quantity) {
			return insufficient(item, input.Quantity)
		}
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}
		m := model.NewMovement(item, model.MovementDamage, -input.Quantity, before, input.ActorID, now).
			WithReason(input.Reason, "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		fx.emit(dto.EventStockDamaged, item, input.Quantity, nil, now)
		fx.emitLowStock(item, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ReturnStock puts customer-returned units back on hand.
func (uc *inventoryUseCase) ReturnStock(ctx context.Context, input *dto.ReturnStockInput) (*model.InventoryItem, error) {
	if err := requirePositive("quantity", input.Quantity); err != nil {
		return nil, err
	}
	var item *model.InventoryItem
	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		item, err = repo.GetItemForUpdate(ctx, input.InventoryItemID)
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		before := item.OnHand
		item.Restock(input.Quantity)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}
		m := model.NewMovement(item, model.MovementReturn, input.Quantity, before, input.ActorID, now).
			WithReference(input.ReferenceType, input.ReferenceID).
			WithReason(input.Reason, "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		fx.emit(dto.EventStockReturned, item, input.Quantity, nil, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ReturnReservation puts a fulfilled reservation's units back on hand. The
// RETURN movement references the reservation and is looked up under the
// reservation's row lock, so a redelivered return finds it and does nothing.
func (uc *inventoryUseCase) ReturnReservation(ctx context.Context, reservationID, actorID, reason string) (res *model.StockReservation, err error) {
	ctx, span := startSpan(ctx, "ReturnReservation", attribute.String("reservation_id", reservationID))
	defer func() { endSpan(span, err) }()

	err = uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		var err error
		res, err = repo.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != model.ReservationFulfilled {
			return &model.InvalidStateError{
				Entity: "reservation", ID: res.ID,
				From: string(res.Status), To: "RETURNED",
				Reason: "only a FULFILLED reservation can be returned",
			}
		}

		_, done, err := repo.ListMovements(ctx, &dto.MovementFilters{
			InventoryItemID: res.InventoryItemID,
			MovementType:    model.MovementReturn,
			ReferenceType:   model.ReferenceReservation,
			ReferenceID:     res.ID,
		})
		if err != nil {
			return err
		}
		if done > 0 {
			return nil
		}

		item, err := repo.GetItemForUpdate(ctx, res.InventoryItemID)
		if err != nil {
			return err
		}
		now := uc.opts.Now()
		before := item.OnHand
		item.Restock(res.Quantity)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}
		m := model.NewMovement(item, model.MovementReturn, res.Quantity, before, actorID, now).
			WithReference(model.ReferenceReservation, res.ID).
			WithReason(reason, "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		fx.emit(dto.EventStockReturned, item, res.Quantity, res, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	if filters == nil {
		filters = &dto.MovementFilters{}
	}
	return uc.repo.ListMovements(ctx, filters)
}
