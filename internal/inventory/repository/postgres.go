package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{db: db, ext: db}
}

func (r *PGRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo inventory.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &PGRepository{db: r.db, ext: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Inventory items ---

func (r *PGRepository) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	query := `
        INSERT INTO inventory_items (
            id, product_id, variant_id, sku, warehouse_id,
            on_hand, reserved, incoming, damaged,
            reorder_point, reorder_quantity, safety_stock, max_stock,
            unit_cost, currency, bin_location, zone, aisle, shelf,
            status, last_counted_at, created_at, updated_at
        )
        VALUES (
            :id, :product_id, :variant_id, :sku, :warehouse_id,
            :on_hand, :reserved, :incoming, :damaged,
            :reorder_point, :reorder_quantity, :safety_stock, :max_stock,
            :unit_cost, :currency, :bin_location, :zone, :aisle, :shelf,
            :status, :last_counted_at, :created_at, :updated_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, item); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("sku %s at warehouse %s: %w", item.SKU, item.WarehouseID, model.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert inventory item: %w", err)
	}
	return nil
}

func (r *PGRepository) getItem(ctx context.Context, query string, args ...any) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := sqlx.GetContext(ctx, r.ext, &item, query, args...); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PGRepository) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := r.getItem(ctx, `SELECT * FROM inventory_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("inventory item", id)
	}
	return item, err
}

func (r *PGRepository) GetItemForUpdate(ctx context.Context, id string) (*model.InventoryItem, error) {
	item, err := r.getItem(ctx, `SELECT * FROM inventory_items WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("inventory item", id)
	}
	return item, err
}

func (r *PGRepository) FindItem(ctx context.Context, key dto.StockKey, warehouseID string) (*model.InventoryItem, error) {
	var (
		item *model.InventoryItem
		err  error
	)
	if key.VariantID != "" {
		item, err = r.getItem(ctx,
			`SELECT * FROM inventory_items WHERE variant_id = $1 AND warehouse_id = $2`,
			key.VariantID, warehouseID)
	} else {
		item, err = r.getItem(ctx,
			`SELECT * FROM inventory_items WHERE product_id = $1 AND variant_id IS NULL AND warehouse_id = $2`,
			key.ProductID, warehouseID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("inventory item", stockKeyString(key)+"@"+warehouseID)
	}
	return item, err
}

func (r *PGRepository) FindItemBySKU(ctx context.Context, sku, warehouseID string) (*model.InventoryItem, error) {
	item, err := r.getItem(ctx,
		`SELECT * FROM inventory_items WHERE sku = $1 AND warehouse_id = $2`, sku, warehouseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("inventory item", sku+"@"+warehouseID)
	}
	return item, err
}

func (r *PGRepository) ListItems(ctx context.Context, f *dto.ItemFilters) ([]model.InventoryItem, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.VariantID != "" {
		conditions = append(conditions, "variant_id = :variant_id")
		args["variant_id"] = f.VariantID
	}
	if f.WarehouseID != "" {
		conditions = append(conditions, "warehouse_id = :warehouse_id")
		args["warehouse_id"] = f.WarehouseID
	}
	if f.SKU != "" {
		conditions = append(conditions, "sku = :sku")
		args["sku"] = f.SKU
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}
	if f.NeedsReorder {
		conditions = append(conditions, "on_hand - reserved + incoming <= reorder_point")
	}
	if f.BelowSafetyStock {
		conditions = append(conditions, "on_hand - reserved <= safety_stock")
	}

	var items []model.InventoryItem
	count, err := r.selectPage(ctx, &items, "inventory_items", conditions, args, "updated_at DESC, id", f.Page, f.PageSize)
	return items, count, err
}

func (r *PGRepository) UpdateItem(ctx context.Context, item *model.InventoryItem) error {
	query := `
        UPDATE inventory_items SET
            on_hand = :on_hand,
            reserved = :reserved,
            incoming = :incoming,
            damaged = :damaged,
            reorder_point = :reorder_point,
            reorder_quantity = :reorder_quantity,
            safety_stock = :safety_stock,
            max_stock = :max_stock,
            unit_cost = :unit_cost,
            currency = :currency,
            bin_location = :bin_location,
            zone = :zone,
            aisle = :aisle,
            shelf = :shelf,
            status = :status,
            last_counted_at = :last_counted_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := sqlx.NamedExecContext(ctx, r.ext, query, item)
	if err != nil {
		return fmt.Errorf("failed to update inventory item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.NewNotFound("inventory item", item.ID)
	}
	return nil
}

func (r *PGRepository) TryReserve(ctx context.Context, itemID string, qty int) (*model.InventoryItem, bool, error) {
	query := `
        UPDATE inventory_items
        SET reserved = reserved + $1, updated_at = $2
        WHERE id = $3 AND on_hand - reserved >= $1
        RETURNING *
    `
	item, err := r.getItem(ctx, query, qty, time.Now().UTC(), itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve stock: %w", err)
	}
	return item, true, nil
}

// --- Reservations ---

func (r *PGRepository) CreateReservation(ctx context.Context, res *model.StockReservation) error {
	query := `
        INSERT INTO stock_reservations (
            id, inventory_item_id, cart_id, order_id, quantity, status, reservation_type,
            expires_at, reserved_at, fulfilled_at, released_at, created_at, updated_at
        )
        VALUES (
            :id, :inventory_item_id, :cart_id, :order_id, :quantity, :status, :reservation_type,
            :expires_at, :reserved_at, :fulfilled_at, :released_at, :created_at, :updated_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, res); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (r *PGRepository) getReservation(ctx context.Context, query, id string) (*model.StockReservation, error) {
	var res model.StockReservation
	if err := sqlx.GetContext(ctx, r.ext, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewNotFound("reservation", id)
		}
		return nil, err
	}
	return &res, nil
}

func (r *PGRepository) GetReservation(ctx context.Context, id string) (*model.StockReservation, error) {
	return r.getReservation(ctx, `SELECT * FROM stock_reservations WHERE id = $1`, id)
}

func (r *PGRepository) GetReservationForUpdate(ctx context.Context, id string) (*model.StockReservation, error) {
	return r.getReservation(ctx, `SELECT * FROM stock_reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *PGRepository) UpdateReservation(ctx context.Context, res *model.StockReservation) error {
	query := `
        UPDATE stock_reservations SET
            cart_id = :cart_id,
            order_id = :order_id,
            status = :status,
            reservation_type = :reservation_type,
            expires_at = :expires_at,
            fulfilled_at = :fulfilled_at,
            released_at = :released_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	result, err := sqlx.NamedExecContext(ctx, r.ext, query, res)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return model.NewNotFound("reservation", res.ID)
	}
	return nil
}

func (r *PGRepository) ListReservations(ctx context.Context, f *dto.ReservationFilters) ([]model.StockReservation, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryItemID != "" {
		conditions = append(conditions, "inventory_item_id = :inventory_item_id")
		args["inventory_item_id"] = f.InventoryItemID
	}
	if f.OrderID != "" {
		conditions = append(conditions, "order_id = :order_id")
		args["order_id"] = f.OrderID
	}
	if f.CartID != "" {
		conditions = append(conditions, "cart_id = :cart_id")
		args["cart_id"] = f.CartID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}
	if f.Type != "" {
		conditions = append(conditions, "reservation_type = :reservation_type")
		args["reservation_type"] = string(f.Type)
	}

	var items []model.StockReservation
	count, err := r.selectPage(ctx, &items, "stock_reservations", conditions, args, "created_at, id", f.Page, f.PageSize)
	return items, count, err
}

func (r *PGRepository) ListExpiredCartReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	query := `
        SELECT * FROM stock_reservations
        WHERE status = $1 AND reservation_type = $2 AND expires_at < $3
        ORDER BY expires_at
        LIMIT $4
    `
	var items []model.StockReservation
	if err := sqlx.SelectContext(ctx, r.ext, &items, query, model.ReservationReserved, model.ReservationCart, now, sqlLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	return items, nil
}

func (r *PGRepository) ListOverdueReservations(ctx context.Context, now time.Time, limit int) ([]model.StockReservation, error) {
	query := `
        SELECT * FROM stock_reservations
        WHERE status = $1 AND reservation_type <> $2 AND expires_at < $3
          AND overdue_alerted_at IS NULL
        ORDER BY expires_at
        LIMIT $4
    `
	var items []model.StockReservation
	if err := sqlx.SelectContext(ctx, r.ext, &items, query, model.ReservationReserved, model.ReservationCart, now, sqlLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list overdue reservations: %w", err)
	}
	return items, nil
}

func (r *PGRepository) MarkReservationOverdue(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
        UPDATE stock_reservations SET overdue_alerted_at = $1
        WHERE id = $2 AND status = $3 AND overdue_alerted_at IS NULL
    `
	result, err := r.ext.ExecContext(ctx, query, now, id, model.ReservationReserved)
	if err != nil {
		return false, fmt.Errorf("failed to mark reservation overdue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// sqlLimit maps limit <= 0 to NULL, which Postgres reads as no limit.
func sqlLimit(limit int) any {
	if limit > 0 {
		return limit
	}
	return nil
}

func (r *PGRepository) SumActiveReservations(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		InventoryItemID string `db:"inventory_item_id"`
		Total           int    `db:"total"`
	}
	query := `
        SELECT inventory_item_id, SUM(quantity) AS total
        FROM stock_reservations
        WHERE status = $1
        GROUP BY inventory_item_id
    `
	if err := sqlx.SelectContext(ctx, r.ext, &rows, query, model.ReservationReserved); err != nil {
		return nil, fmt.Errorf("failed to sum reservations: %w", err)
	}
	sums := make(map[string]int, len(rows))
	for _, row := range rows {
		sums[row.InventoryItemID] = row.Total
	}
	return sums, nil
}

// --- Movements ---

func (r *PGRepository) AppendMovement(ctx context.Context, m *model.InventoryMovement) error {
	query := `
        INSERT INTO inventory_movements (
            id, inventory_item_id, warehouse_id, sku,
            movement_type, quantity, quantity_before, quantity_after,
            reference_type, reference_id, reason, notes, created_by, created_at
        )
        VALUES (
            :id, :inventory_item_id, :warehouse_id, :sku,
            :movement_type, :quantity, :quantity_before, :quantity_after,
            :reference_type, :reference_id, :reason, :notes, :created_by, :created_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryItemID != "" {
		conditions = append(conditions, "inventory_item_id = :inventory_item_id")
		args["inventory_item_id"] = f.InventoryItemID
	}
	if f.WarehouseID != "" {
		conditions = append(conditions, "warehouse_id = :warehouse_id")
		args["warehouse_id"] = f.WarehouseID
	}
	if f.SKU != "" {
		conditions = append(conditions, "sku = :sku")
		args["sku"] = f.SKU
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = string(f.MovementType)
	}
	if f.ReferenceType != "" {
		conditions = append(conditions, "reference_type = :reference_type")
		args["reference_type"] = f.ReferenceType
	}
	if f.ReferenceID != "" {
		conditions = append(conditions, "reference_id = :reference_id")
		args["reference_id"] = f.ReferenceID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = *f.EndDate
	}

	var items []model.InventoryMovement
	count, err := r.selectPage(ctx, &items, "inventory_movements", conditions, args, "created_at DESC, id", f.Page, f.PageSize)
	return items, count, err
}

// selectPage counts and selects from table with the given named conditions.
func (r *PGRepository) selectPage(ctx context.Context, dest any, table string, conditions []string, args map[string]interface{}, orderBy string, page, pageSize int) (int, error) {
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM "+table+whereClause, args)
	if err != nil {
		return 0, err
	}
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, r.ext.Rebind(countQuery), countArgs...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	query := "SELECT * FROM " + table + whereClause + " ORDER BY " + orderBy
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	}
	query, qArgs, err := sqlx.Named(query, args)
	if err != nil {
		return 0, err
	}
	if err := sqlx.SelectContext(ctx, r.ext, dest, r.ext.Rebind(query), qArgs...); err != nil {
		return 0, fmt.Errorf("failed to select %s: %w", table, err)
	}
	return count, nil
}

func stockKeyString(key dto.StockKey) string {
	if key.VariantID != "" {
		return "variant " + key.VariantID
	}
	return "product " + key.ProductID
}
