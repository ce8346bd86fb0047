package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	inventoryDto "github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type orderUseCase struct {
	repo      order.Repository
	inventory inventory.UseCase
	now       func() time.Time
	logger    logger.ZapLogger
}

func NewOrderUseCase(repo order.Repository, inv inventory.UseCase, log logger.ZapLogger) order.UseCase {
	return &orderUseCase{
		repo:      repo,
		inventory: inv,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    log,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error) {
	now := uc.now()
	o := &model.Order{
		ID:        input.ID,
		Status:    model.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if input.CartID != "" {
		o.CartID = &input.CartID
	}
	if input.CustomerID != "" {
		o.CustomerID = &input.CustomerID
	}
	if err := uc.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	uc.logger.Info("order registered", zap.String("order_id", o.ID))
	return o, nil
}

func (uc *orderUseCase) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return uc.repo.GetByID(ctx, id)
}

// UpdateStatus consults the state machine before anything is written, so a
// forbidden transition never touches inventory. Re-sending the current status
// replays the inventory side effects, which are all idempotent; that is how a
// redelivered event or a retry after a partial failure converges.
func (uc *orderUseCase) UpdateStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Order, error) {
	if !input.Status.IsValid() {
		return nil, model.NewInvalidInput("status", "unknown order status "+string(input.Status))
	}
	o, err := uc.repo.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if from != input.Status {
		if !order.CanTransitionTo(from, input.Status) {
			return nil, &model.InvalidStateError{
				Entity: "order", ID: o.ID,
				From: string(from), To: string(input.Status),
			}
		}
		o, err = uc.repo.CompareAndSetStatus(ctx, o.ID, from, input.Status, uc.now())
		if err != nil {
			return nil, err
		}
		uc.logger.Info("order status changed",
			zap.String("order_id", o.ID),
			zap.String("from", string(from)),
			zap.String("to", string(o.Status)),
		)
	}

	if err := uc.syncInventory(ctx, o, from, input); err != nil {
		return o, fmt.Errorf("order %s is %s but inventory sync failed: %w", o.ID, o.Status, err)
	}
	return o, nil
}

func (uc *orderUseCase) syncInventory(ctx context.Context, o *model.Order, from model.OrderStatus, input *dto.UpdateStatusInput) error {
	switch o.Status {
	case model.OrderConfirmed:
		if o.CartID == nil {
			return nil
		}
		_, err := uc.inventory.ConvertCartToOrder(ctx, *o.CartID, o.ID)
		return err

	case model.OrderShipped:
		return uc.eachReservation(ctx, o, model.ReservationReserved, func(res *model.StockReservation) error {
			_, err := uc.inventory.FulfillReservation(ctx, res.ID, input.ActorID)
			return err
		})

	case model.OrderCancelled:
		// a replayed cancel keeps releasing whatever is still held
		if from != model.OrderCancelled && !order.ShouldRestoreInventoryOnCancel(from) {
			return nil
		}
		reason := input.Reason
		if reason == "" {
			reason = "order cancelled"
		}
		release := func(res *model.StockReservation) error {
			_, err := uc.inventory.ReleaseReservation(ctx, res.ID, input.ActorID, reason)
			return err
		}
		if err := uc.eachReservation(ctx, o, model.ReservationReserved, release); err != nil {
			return err
		}
		if o.CartID == nil {
			return nil
		}
		held, _, err := uc.inventory.ListReservations(ctx, &inventoryDto.ReservationFilters{
			CartID: *o.CartID, Status: model.ReservationReserved, Type: model.ReservationCart,
		})
		if err != nil {
			return err
		}
		return uc.forEach(ctx, o, held, release)

	case model.OrderReturned:
		return uc.eachReservation(ctx, o, model.ReservationFulfilled, func(res *model.StockReservation) error {
			return uc.restock(ctx, res, input)
		})
	}
	return nil
}

// restock puts a fulfilled reservation's units back; ReturnReservation does
// it at most once per reservation.
func (uc *orderUseCase) restock(ctx context.Context, res *model.StockReservation, input *dto.UpdateStatusInput) error {
	reason := input.Reason
	if reason == "" {
		reason = "order returned"
	}
	_, err := uc.inventory.ReturnReservation(ctx, res.ID, input.ActorID, reason)
	return err
}

func (uc *orderUseCase) eachReservation(ctx context.Context, o *model.Order, status model.ReservationStatus, fn func(*model.StockReservation) error) error {
	list, _, err := uc.inventory.ListReservations(ctx, &inventoryDto.ReservationFilters{OrderID: o.ID, Status: status})
	if err != nil {
		return err
	}
	return uc.forEach(ctx, o, list, fn)
}

// forEach applies fn to every reservation. A reservation that has vanished is
// logged and skipped; other failures are collected so one bad row does not
// stop the rest.
func (uc *orderUseCase) forEach(ctx context.Context, o *model.Order, list []model.StockReservation, fn func(*model.StockReservation) error) error {
	var errs []error
	for i := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := &list[i]
		err := fn(res)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrNotFound):
			uc.logger.Warn("reservation not found while syncing order",
				zap.String("order_id", o.ID),
				zap.String("reservation_id", res.ID),
				zap.Error(err),
			)
		default:
			uc.logger.Error("failed to sync reservation for order",
				zap.String("order_id", o.ID),
				zap.String("reservation_id", res.ID),
				zap.String("order_status", string(o.Status)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
