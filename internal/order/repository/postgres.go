package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, o *model.Order) error {
	query := `
        INSERT INTO orders (id, cart_id, customer_id, status, created_at, updated_at)
        VALUES (:id, :cart_id, :customer_id, :status, :created_at, :updated_at)
    `
	if _, err := r.DB.NamedExecContext(ctx, query, o); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", o.ID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := r.DB.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewNotFound("order", id)
		}
		return nil, err
	}
	return &o, nil
}

func (r *PGRepository) CompareAndSetStatus(ctx context.Context, id string, from, to model.OrderStatus, now time.Time) (*model.Order, error) {
	query := `
        UPDATE orders SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
        RETURNING *
    `
	var o model.Order
	err := r.DB.GetContext(ctx, &o, query, to, now, id, from)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &model.InvalidStateError{
		Entity: "order", ID: id,
		From: string(current.Status), To: string(to),
		Reason: "status changed concurrently, expected " + string(from),
	}
}
