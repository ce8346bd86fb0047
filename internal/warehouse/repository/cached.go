package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/cache"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	warehouseKeyPrefix = "warehouses:id:"
	warehouseListKey   = "warehouses:list:"
)

// CachedRepository is a Redis read-through cache in front of another
// warehouse repository. Cache errors degrade to the underlying store.
type CachedRepository struct {
	next   warehouse.Repository
	cache  *cache.RedisClient
	ttl    time.Duration
	logger logger.ZapLogger
}

func NewCachedRepository(next warehouse.Repository, c *cache.RedisClient, ttl time.Duration, log logger.ZapLogger) *CachedRepository {
	return &CachedRepository{next: next, cache: c, ttl: ttl, logger: log}
}

func (r *CachedRepository) Create(ctx context.Context, w *model.Warehouse) error {
	if err := r.next.Create(ctx, w); err != nil {
		return err
	}
	r.invalidate(ctx, "")
	return nil
}

func (r *CachedRepository) GetByID(ctx context.Context, id string) (*model.Warehouse, error) {
	key := warehouseKeyPrefix + id
	var w model.Warehouse
	err := r.cache.GetJSON(ctx, key, &w)
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("warehouse cache read failed", zap.String("key", key), zap.Error(err))
	}

	found, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, key, found, r.ttl); err != nil {
		r.logger.Warn("warehouse cache write failed", zap.String("key", key), zap.Error(err))
	}
	return found, nil
}

func (r *CachedRepository) GetByCode(ctx context.Context, code string) (*model.Warehouse, error) {
	return r.next.GetByCode(ctx, code)
}

func (r *CachedRepository) List(ctx context.Context, f *dto.WarehouseFilters) ([]model.Warehouse, error) {
	key := listKey(f)
	var items []model.Warehouse
	err := r.cache.GetJSON(ctx, key, &items)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("warehouse cache read failed", zap.String("key", key), zap.Error(err))
	}

	items, err = r.next.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SetJSON(ctx, key, items, r.ttl); err != nil {
		r.logger.Warn("warehouse cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}

func (r *CachedRepository) Update(ctx context.Context, w *model.Warehouse) error {
	if err := r.next.Update(ctx, w); err != nil {
		return err
	}
	r.invalidate(ctx, w.ID)
	return nil
}

func (r *CachedRepository) invalidate(ctx context.Context, id string) {
	keys, err := r.cache.ScanKeys(ctx, warehouseListKey+"*")
	if err != nil {
		r.logger.Warn("warehouse cache scan failed", zap.Error(err))
	}
	if id != "" {
		keys = append(keys, warehouseKeyPrefix+id)
	}
	if len(keys) == 0 {
		return
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("warehouse cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func listKey(f *dto.WarehouseFilters) string {
	if f == nil {
		return warehouseListKey + "all:"
	}
	return fmt.Sprintf("%s%t:%s", warehouseListKey, f.ActiveOnly, strings.ToUpper(f.CountryCode))
}
