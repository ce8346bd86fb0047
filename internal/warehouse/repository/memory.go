package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
)

type MemoryRepository struct {
	mu         sync.RWMutex
	warehouses map[string]model.Warehouse
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{warehouses: map[string]model.Warehouse{}}
}

func (r *MemoryRepository) Create(ctx context.Context, w *model.Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.warehouses {
		if existing.Code == w.Code {
			return fmt.Errorf("warehouse code %s: %w", w.Code, model.ErrAlreadyExists)
		}
	}
	r.warehouses[w.ID] = cloneWarehouse(*w)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*model.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.warehouses[id]
	if !ok {
		return nil, model.NewNotFound("warehouse", id)
	}
	w = cloneWarehouse(w)
	return &w, nil
}

func (r *MemoryRepository) GetByCode(ctx context.Context, code string) (*model.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.warehouses {
		if w.Code == code {
			w = cloneWarehouse(w)
			return &w, nil
		}
	}
	return nil, model.NewNotFound("warehouse", code)
}

func (r *MemoryRepository) List(ctx context.Context, f *dto.WarehouseFilters) ([]model.Warehouse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := []model.Warehouse{}
	for _, w := range r.warehouses {
		if f != nil && f.ActiveOnly && !w.IsActive {
			continue
		}
		if f != nil && f.CountryCode != "" && !w.ServesCountry(f.CountryCode) {
			continue
		}
		items = append(items, cloneWarehouse(w))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].Code < items[j].Code
	})
	return items, nil
}

func (r *MemoryRepository) Update(ctx context.Context, w *model.Warehouse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.warehouses[w.ID]; !ok {
		return model.NewNotFound("warehouse", w.ID)
	}
	r.warehouses[w.ID] = cloneWarehouse(*w)
	return nil
}

func cloneWarehouse(w model.Warehouse) model.Warehouse {
	w.SupportedCarriers = append(model.StringList(nil), w.SupportedCarriers...)
	return w
}
