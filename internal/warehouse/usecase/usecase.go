package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type warehouseUseCase struct {
	repo   warehouse.Repository
	logger logger.ZapLogger
}

func NewWarehouseUseCase(repo warehouse.Repository, log logger.ZapLogger) warehouse.UseCase {
	return &warehouseUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *warehouseUseCase) CreateWarehouse(ctx context.Context, input *dto.CreateWarehouseInput) (*model.Warehouse, error) {
	now := time.Now().UTC()
	w := &model.Warehouse{
		ID:                uuid.New().String(),
		Code:              strings.TrimSpace(input.Code),
		Name:              strings.TrimSpace(input.Name),
		Type:              input.Type,
		AddressLine:       input.AddressLine,
		City:              input.City,
		PostalCode:        input.PostalCode,
		CountryCode:       strings.ToUpper(input.CountryCode),
		Latitude:          input.Latitude,
		Longitude:         input.Longitude,
		Capacity:          input.Capacity,
		Priority:          input.Priority,
		IsActive:          true,
		AcceptsReturns:    input.AcceptsReturns,
		AcceptsInbound:    input.AcceptsInbound,
		SupportedCarriers: model.StringList(input.SupportedCarriers),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if w.Type == "" {
		w.Type = model.WarehouseFulfillmentCenter
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if err := uc.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	uc.logger.Info("warehouse created", zap.String("warehouse_id", w.ID), zap.String("code", w.Code))
	return w, nil
}

func (uc *warehouseUseCase) GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *warehouseUseCase) ListWarehouses(ctx context.Context, filters *dto.WarehouseFilters) ([]model.Warehouse, error) {
	if filters == nil {
		filters = &dto.WarehouseFilters{}
	}
	return uc.repo.List(ctx, filters)
}

func (uc *warehouseUseCase) UpdateWarehouse(ctx context.Context, input *dto.UpdateWarehouseInput) (*model.Warehouse, error) {
	w, err := uc.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		w.Name = strings.TrimSpace(*input.Name)
	}
	if input.IsActive != nil {
		w.IsActive = *input.IsActive
	}
	if input.Priority != nil {
		w.Priority = *input.Priority
	}
	if input.Capacity != nil {
		w.Capacity = *input.Capacity
	}
	if input.Utilization != nil {
		w.Utilization = *input.Utilization
	}
	if input.AcceptsReturns != nil {
		w.AcceptsReturns = *input.AcceptsReturns
	}
	if input.AcceptsInbound != nil {
		w.AcceptsInbound = *input.AcceptsInbound
	}
	if input.SupportedCarriers != nil {
		w.SupportedCarriers = model.StringList(input.SupportedCarriers)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w.UpdatedAt = time.Now().UTC()

	if err := uc.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
