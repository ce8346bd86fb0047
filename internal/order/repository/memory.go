package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]model.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: map[string]model.Order{}}
}

func (r *MemoryRepository) Create(ctx context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, model.ErrAlreadyExists)
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, model.NewNotFound("order", id)
	}
	return &o, nil
}

func (r *MemoryRepository) CompareAndSetStatus(ctx context.Context, id string, from, to model.OrderStatus, now time.Time) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, model.NewNotFound("order", id)
	}
	if o.Status != from {
		return nil, &model.InvalidStateError{
			Entity: "order", ID: id,
			From: string(o.Status), To: string(to),
			Reason: "status changed concurrently, expected " + string(from),
		}
	}
	o.Status = to
	o.UpdatedAt = now
	r.orders[id] = o
	return &o, nil
}
