package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, w *model.Warehouse) error {
	query := `
        INSERT INTO warehouses (
            id, code, name, warehouse_type, address_line, city, postal_code, country_code,
            latitude, longitude, capacity, utilization, priority,
            is_active, accepts_returns, accepts_inbound, supported_carriers, created_at, updated_at
        )
        VALUES (
            :id, :code, :name, :warehouse_type, :address_line, :city, :postal_code, :country_code,
            :latitude, :longitude, :capacity, :utilization, :priority,
            :is_active, :accepts_returns, :accepts_inbound, :supported_carriers, :created_at, :updated_at
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, w); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("warehouse code %s: %w", w.Code, model.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert warehouse: %w", err)
	}
	return nil
}

func (r *PGRepository) get(ctx context.Context, column, value string) (*model.Warehouse, error) {
	var w model.Warehouse
	err := r.DB.GetContext(ctx, &w, `SELECT * FROM warehouses WHERE `+column+` = $1`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewNotFound("warehouse", value)
		}
		return nil, err
	}
	return &w, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Warehouse, error) {
	return r.get(ctx, "id", id)
}

func (r *PGRepository) GetByCode(ctx context.Context, code string) (*model.Warehouse, error) {
	return r.get(ctx, "code", code)
}

func (r *PGRepository) List(ctx context.Context, f *dto.WarehouseFilters) ([]model.Warehouse, error) {
	conditions := []string{}
	args := []interface{}{}

	if f != nil && f.ActiveOnly {
		conditions = append(conditions, "is_active")
	}
	if f != nil && f.CountryCode != "" {
		args = append(args, strings.ToUpper(f.CountryCode))
		conditions = append(conditions, fmt.Sprintf("upper(country_code) = $%d", len(args)))
	}

	query := "SELECT * FROM warehouses"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority DESC, code"

	var items []model.Warehouse
	if err := r.DB.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	return items, nil
}

func (r *PGRepository) Update(ctx context.Context, w *model.Warehouse) error {
	query := `
        UPDATE warehouses SET
            name = :name,
            warehouse_type = :warehouse_type,
            address_line = :address_line,
            city = :city,
            postal_code = :postal_code,
            country_code = :country_code,
            latitude = :latitude,
            longitude = :longitude,
            capacity = :capacity,
            utilization = :utilization,
            priority = :priority,
            is_active = :is_active,
            accepts_returns = :accepts_returns,
            accepts_inbound = :accepts_inbound,
            supported_carriers = :supported_carriers,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := r.DB.NamedExecContext(ctx, query, w)
	if err != nil {
		return fmt.Errorf("failed to update warehouse: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.NewNotFound("warehouse", w.ID)
	}
	return nil
}
