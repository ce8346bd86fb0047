package warehouse

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
)

type UseCase interface {
	CreateWarehouse(ctx context.Context, input *dto.CreateWarehouseInput) (*model.Warehouse, error)
	GetWarehouse(ctx context.Context, id string) (*model.Warehouse, error)
	ListWarehouses(ctx context.Context, filters *dto.WarehouseFilters) ([]model.Warehouse, error)
	UpdateWarehouse(ctx context.Context, input *dto.UpdateWarehouseInput) (*model.Warehouse, error)
}
