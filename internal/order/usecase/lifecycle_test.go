package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	inventoryDto "github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	invRepo "github.com/fekuna/omnipos-stock-service/internal/inventory/repository"
	invUsecase "github.com/fekuna/omnipos-stock-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	orderRepo "github.com/fekuna/omnipos-stock-service/internal/order/repository"
	"github.com/fekuna/omnipos-stock-service/internal/order/usecase"
	whRepo "github.com/fekuna/omnipos-stock-service/internal/warehouse/repository"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

const featureWarehouse = "w-main"

type lifecycleContext struct {
	ctx          context.Context
	now          time.Time
	inventory    inventory.UseCase
	orders       order.UseCase
	items        map[string]string
	reservations map[string]string
	err          error
}

func (c *lifecycleContext) reset() error {
	c.ctx = context.Background()
	c.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.items = map[string]string{}
	c.reservations = map[string]string{}
	c.err = nil

	warehouses := whRepo.NewMemoryRepository()
	if err := warehouses.Create(c.ctx, &model.Warehouse{ID: featureWarehouse, Code: "MAIN", Name: "Main", IsActive: true}); err != nil {
		return err
	}
	log := logger.NewNop()
	c.inventory = invUsecase.NewInventoryUseCase(invRepo.NewMemoryRepository(), warehouses, nil, nil, invUsecase.Options{
		Now: func() time.Time { return c.now },
	}, log)
	c.orders = usecase.NewOrderUseCase(orderRepo.NewMemoryRepository(), c.inventory, log)
	return nil
}

func (c *lifecycleContext) anItemWithUnitsOnHand(sku string, onHand int) error {
	return c.anItemWithIncoming(sku, onHand, 0)
}

func (c *lifecycleContext) anItemWithIncoming(sku string, onHand, incoming int) error {
	item, err := c.inventory.CreateItem(c.ctx, &inventoryDto.CreateItemInput{
		ProductID: strings.ToLower(sku), SKU: sku, WarehouseID: featureWarehouse,
		OnHand: onHand, Incoming: incoming,
	})
	if err != nil {
		return err
	}
	c.items[sku] = item.ID
	return nil
}

func (c *lifecycleContext) reserve(qty int, sku, alias, orderID string) error {
	cartID := ""
	if orderID == "" {
		cartID = "cart-" + alias
	}
	res, err := c.inventory.ReserveStock(c.ctx, &inventoryDto.ReserveStockInput{
		StockKey:    inventoryDto.StockKey{ProductID: strings.ToLower(sku)},
		WarehouseID: featureWarehouse,
		Quantity:    qty,
		OrderID:     orderID,
		CartID:      cartID,
	})
	c.err = err
	if err == nil {
		c.reservations[alias] = res.ID
	}
	return nil
}

func (c *lifecycleContext) iReserveUnitsAs(qty int, sku, alias string) error {
	return c.reserve(qty, sku, alias, "")
}

func (c *lifecycleContext) orderHoldsUnits(orderID string, qty int, sku, alias string) error {
	if err := c.reserve(qty, sku, alias, orderID); err != nil {
		return err
	}
	return c.err
}

func (c *lifecycleContext) theReservationSucceeds() error {
	return c.err
}

func (c *lifecycleContext) theReservationFailsWithAvailable(available int) error {
	var ise *model.InsufficientStockError
	if !errors.As(c.err, &ise) {
		return fmt.Errorf("expected insufficient stock, got %v", c.err)
	}
	if ise.Available != available {
		return fmt.Errorf("expected %d available in the error, got %d", available, ise.Available)
	}
	return nil
}

func (c *lifecycleContext) item(sku string) (*model.InventoryItem, error) {
	id, ok := c.items[sku]
	if !ok {
		return nil, fmt.Errorf("unknown item %s", sku)
	}
	return c.inventory.GetItem(c.ctx, id)
}

func (c *lifecycleContext) hasOnHandAndReserved(sku string, onHand, reserved int) error {
	item, err := c.item(sku)
	if err != nil {
		return err
	}
	if item.OnHand != onHand || item.Reserved != reserved {
		return fmt.Errorf("%s: expected on hand %d reserved %d, got %d/%d", sku, onHand, reserved, item.OnHand, item.Reserved)
	}
	return nil
}

func (c *lifecycleContext) hasIncoming(sku string, incoming int) error {
	item, err := c.item(sku)
	if err != nil {
		return err
	}
	if item.Incoming != incoming {
		return fmt.Errorf("%s: expected incoming %d, got %d", sku, incoming, item.Incoming)
	}
	return nil
}

func (c *lifecycleContext) reservation(alias string) (*model.StockReservation, error) {
	id, ok := c.reservations[alias]
	if !ok {
		return nil, fmt.Errorf("unknown reservation %s", alias)
	}
	return c.inventory.GetReservation(c.ctx, id)
}

func (c *lifecycleContext) iConvertReservationToOrder(alias, orderID string) error {
	res, err := c.reservation(alias)
	if err != nil {
		return err
	}
	_, err = c.inventory.ConvertReservationToOrder(c.ctx, res.ID, orderID)
	return err
}

func (c *lifecycleContext) reservationIsTypedExpiringInDays(alias, typ string, days int) error {
	res, err := c.reservation(alias)
	if err != nil {
		return err
	}
	if string(res.Type) != typ {
		return fmt.Errorf("expected %s reservation, got %s", typ, res.Type)
	}
	want := c.now.Add(time.Duration(days) * 24 * time.Hour)
	if !res.ExpiresAt.Equal(want) {
		return fmt.Errorf("expected expiry %s, got %s", want, res.ExpiresAt)
	}
	return nil
}

func (c *lifecycleContext) iFulfillReservation(alias string) error {
	res, err := c.reservation(alias)
	if err != nil {
		return err
	}
	_, err = c.inventory.FulfillReservation(c.ctx, res.ID, "picker")
	return err
}

func (c *lifecycleContext) reservationIs(alias, status string) error {
	res, err := c.reservation(alias)
	if err != nil {
		return err
	}
	if string(res.Status) != status {
		return fmt.Errorf("reservation %s: expected %s, got %s", alias, status, res.Status)
	}
	return nil
}

func (c *lifecycleContext) aPendingOrder(orderID string) error {
	_, err := c.orders.CreateOrder(c.ctx, &dto.CreateOrderInput{ID: orderID})
	return err
}

func (c *lifecycleContext) orderMovesTo(orderID, status string) error {
	_, c.err = c.orders.UpdateStatus(c.ctx, &dto.UpdateStatusInput{OrderID: orderID, Status: model.OrderStatus(status)})
	return nil
}

func (c *lifecycleContext) orderHasMovedThrough(orderID, statuses string) error {
	for _, s := range strings.Split(statuses, ",") {
		if _, err := c.orders.UpdateStatus(c.ctx, &dto.UpdateStatusInput{OrderID: orderID, Status: model.OrderStatus(strings.TrimSpace(s))}); err != nil {
			return err
		}
	}
	return nil
}

func (c *lifecycleContext) theOrderChangeSucceeds() error {
	return c.err
}

func (c *lifecycleContext) theOrderChangeIsRejected() error {
	if !errors.Is(c.err, model.ErrInvalidState) {
		return fmt.Errorf("expected invalid state, got %v", c.err)
	}
	return nil
}

func (c *lifecycleContext) orderIs(orderID, status string) error {
	o, err := c.orders.GetOrder(c.ctx, orderID)
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("order %s: expected %s, got %s", orderID, status, o.Status)
	}
	return nil
}

func (c *lifecycleContext) iReceiveUnits(qty int, sku string) error {
	_, err := c.inventory.ReceiveStock(c.ctx, &inventoryDto.ReceiveStockInput{SKU: sku, WarehouseID: featureWarehouse, Quantity: qty})
	return err
}

func (c *lifecycleContext) minutesPassAndTheSweepRuns(minutes int) error {
	c.now = c.now.Add(time.Duration(minutes) * time.Minute)
	_, err := c.inventory.ExpireStaleReservations(c.ctx, c.now, 100)
	return err
}

func (c *lifecycleContext) movingAnOrderIs(from, to, verdict string) error {
	got := order.CanTransitionTo(model.OrderStatus(from), model.OrderStatus(to))
	if got != (verdict == "allowed") {
		return fmt.Errorf("%s -> %s: expected %s", from, to, verdict)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	lc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, lc.reset()
	})

	// Given steps
	ctx.Step(`^an item "([^"]*)" with (\d+) units on hand$`, lc.anItemWithUnitsOnHand)
	ctx.Step(`^an item "([^"]*)" with (\d+) units on hand and (\d+) incoming$`, lc.anItemWithIncoming)
	ctx.Step(`^a pending order "([^"]*)"$`, lc.aPendingOrder)
	ctx.Step(`^order "([^"]*)" holds (\d+) units of "([^"]*)" as "([^"]*)"$`, lc.orderHoldsUnits)
	ctx.Step(`^order "([^"]*)" has moved through (.+)$`, lc.orderHasMovedThrough)

	// When steps
	ctx.Step(`^I reserve (\d+) units of "([^"]*)" as "([^"]*)"$`, lc.iReserveUnitsAs)
	ctx.Step(`^I convert reservation "([^"]*)" to order "([^"]*)"$`, lc.iConvertReservationToOrder)
	ctx.Step(`^I fulfill reservation "([^"]*)"$`, lc.iFulfillReservation)
	ctx.Step(`^order "([^"]*)" moves to (\w+)$`, lc.orderMovesTo)
	ctx.Step(`^I receive (\d+) units of "([^"]*)"$`, lc.iReceiveUnits)
	ctx.Step(`^(\d+) minutes pass and the sweep runs$`, lc.minutesPassAndTheSweepRuns)

	// Then steps
	ctx.Step(`^the reservation succeeds$`, lc.theReservationSucceeds)
	ctx.Step(`^the reservation fails with (\d+) available$`, lc.theReservationFailsWithAvailable)
	ctx.Step(`^"([^"]*)" has (\d+) on hand and (\d+) reserved$`, lc.hasOnHandAndReserved)
	ctx.Step(`^"([^"]*)" has (\d+) incoming$`, lc.hasIncoming)
	ctx.Step(`^reservation "([^"]*)" is an? (\w+) reservation expiring in (\d+) days$`, lc.reservationIsTypedExpiringInDays)
	ctx.Step(`^reservation "([^"]*)" is (RESERVED|FULFILLED|RELEASED|EXPIRED)$`, lc.reservationIs)
	ctx.Step(`^the order change succeeds$`, lc.theOrderChangeSucceeds)
	ctx.Step(`^the order change is rejected as an invalid transition$`, lc.theOrderChangeIsRejected)
	ctx.Step(`^order "([^"]*)" is (\w+)$`, lc.orderIs)
	ctx.Step(`^moving an order from (\w+) to (\w+) is (allowed|rejected)$`, lc.movingAnOrderIs)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../features/order_lifecycle.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
