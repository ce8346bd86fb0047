package warehouse

import (
	"context"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
)

type Repository interface {
	Create(ctx context.Context, w *model.Warehouse) error
	GetByID(ctx context.Context, id string) (*model.Warehouse, error)
	GetByCode(ctx context.Context, code string) (*model.Warehouse, error)
	List(ctx context.Context, filters *dto.WarehouseFilters) ([]model.Warehouse, error)
	Update(ctx context.Context, w *model.Warehouse) error
}
