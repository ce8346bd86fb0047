package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"go.uber.org/zap"
)

const expiredReason = "expired"

// ExpireStaleReservations is the periodic expiry contract. CART holds past
// their expiry are expired and their quantity released. ORDER and BACKORDER
// holds past expiry point at a stuck order: each is reported once and left
// RESERVED for an operator. The two kinds are read separately, each up to
// limit, so stuck order holds never crowd out cart expiry.
func (uc *inventoryUseCase) ExpireStaleReservations(ctx context.Context, now time.Time, limit int) (result *dto.SweepResult, err error) {
	ctx, span := startSpan(ctx, "ExpireStaleReservations")
	defer func() { endSpan(span, err) }()

	stale, err := uc.repo.ListExpiredCartReservations(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	result = &dto.SweepResult{Expired: []string{}, Overdue: []string{}}
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		id := stale[i].ID
		expired, err := uc.expireReservation(ctx, id, now)
		if err != nil {
			result.Skipped++
			uc.logger.Error("failed to expire reservation", zap.String("reservation_id", id), zap.Error(err))
			continue
		}
		if expired {
			result.Expired = append(result.Expired, id)
		}
	}

	overdue, err := uc.repo.ListOverdueReservations(ctx, now, limit)
	if err != nil {
		return result, err
	}
	for i := range overdue {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res := overdue[i]
		marked, err := uc.repo.MarkReservationOverdue(ctx, res.ID, now)
		if err != nil {
			result.Skipped++
			uc.logger.Error("failed to mark reservation overdue", zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		if !marked {
			continue
		}
		uc.reportOverdue(ctx, &res, now)
		result.Overdue = append(result.Overdue, res.ID)
	}

	if len(result.Expired) > 0 || len(result.Overdue) > 0 {
		uc.logger.Info("reservation sweep finished",
			zap.Int("expired", len(result.Expired)),
			zap.Int("overdue", len(result.Overdue)),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// expireReservation re-reads the reservation under lock; false means another
// caller already settled it.
func (uc *inventoryUseCase) expireReservation(ctx context.Context, id string, now time.Time) (bool, error) {
	expired := false
	err := uc.inTx(ctx, func(ctx context.Context, repo inventory.Repository, fx *effects) error {
		res, err := repo.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !res.IsActive() || !res.IsExpired(now) {
			return nil
		}

		item, err := repo.GetItemForUpdate(ctx, res.InventoryItemID)
		if err != nil {
			return err
		}
		item.ReleaseReservation(res.Quantity)
		if err := saveItem(ctx, repo, item, now); err != nil {
			return err
		}
		if err := res.Expire(now); err != nil {
			return err
		}
		if err := repo.UpdateReservation(ctx, res); err != nil {
			return err
		}

		m := model.NewMovement(item, model.MovementRelease, -res.Quantity, item.OnHand, "", now).
			WithReference(model.ReferenceReservation, res.ID).
			WithReason(expiredReason, "")
		if err := fx.appendMovement(ctx, repo, m); err != nil {
			return err
		}
		uc.metrics.expired.Add(ctx, 1)
		fx.emit(dto.EventReservationExpired, item, res.Quantity, res, now)
		expired = true
		return nil
	})
	return expired, err
}

func (uc *inventoryUseCase) reportOverdue(ctx context.Context, res *model.StockReservation, now time.Time) {
	uc.metrics.overdue.Add(ctx, 1)
	fields := []zap.Field{
		zap.String("reservation_id", res.ID),
		zap.String("inventory_item_id", res.InventoryItemID),
		zap.String("reservation_type", string(res.Type)),
		zap.Int("quantity", res.Quantity),
		zap.Time("expires_at", res.ExpiresAt),
	}
	if res.OrderID != nil {
		fields = append(fields, zap.String("order_id", *res.OrderID))
	}
	uc.logger.Error("order reservation is past its expiry, order may be stuck", fields...)

	item, err := uc.repo.GetItem(ctx, res.InventoryItemID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			uc.logger.Error("failed to load item for overdue reservation", zap.String("reservation_id", res.ID), zap.Error(err))
		}
		return
	}
	fx := &effects{}
	fx.emit(dto.EventReservationOverdue, item, res.Quantity, res, now)
	uc.afterCommit(ctx, fx)
}

// ReconcileReservations checks that every item's reserved counter equals the
// sum of its RESERVED reservations.
func (uc *inventoryUseCase) ReconcileReservations(ctx context.Context) (mismatches []dto.ReservationMismatch, err error) {
	ctx, span := startSpan(ctx, "ReconcileReservations")
	defer func() { endSpan(span, err) }()

	sums, err := uc.repo.SumActiveReservations(ctx)
	if err != nil {
		return nil, err
	}
	items, _, err := uc.repo.ListItems(ctx, &dto.ItemFilters{})
	if err != nil {
		return nil, err
	}

	mismatches = []dto.ReservationMismatch{}
	seen := make(map[string]bool, len(items))
	for i := range items {
		item := &items[i]
		seen[item.ID] = true
		if item.Reserved != sums[item.ID] {
			mismatches = append(mismatches, dto.ReservationMismatch{
				InventoryItemID: item.ID,
				Reserved:        item.Reserved,
				ReservationSum:  sums[item.ID],
			})
		}
	}
	for id, sum := range sums {
		if !seen[id] {
			mismatches = append(mismatches, dto.ReservationMismatch{InventoryItemID: id, ReservationSum: sum})
		}
	}

	for _, m := range mismatches {
		uc.logger.Error("reserved quantity does not match open reservations",
			zap.String("inventory_item_id", m.InventoryItemID),
			zap.Int("reserved", m.Reserved),
			zap.Int("reservation_sum", m.ReservationSum),
		)
	}
	return mismatches, nil
}
