package order

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// CompareAndSetStatus moves the order to `to` only if it is still in
	// `from`; otherwise it fails with an InvalidStateError.
	CompareAndSetStatus(ctx context.Context, id string, from, to model.OrderStatus, now time.Time) (*model.Order, error)
}
