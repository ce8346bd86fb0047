package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemColumns = []string{"id", "product_id", "variant_id", "sku", "warehouse_id", "on_hand", "reserved", "incoming", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*repository.PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return repository.NewPGRepository(sqlx.NewDb(db, "postgres")), mock
}

func itemRow(id string, onHand, reserved int) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(itemColumns).
		AddRow(id, "p-1", nil, "SKU-1", "w-1", onHand, reserved, 0, "ACTIVE", now, now)
}

func TestTryReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves when available covers quantity", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE inventory_items")).
			WithArgs(3, sqlmock.AnyArg(), "item-1").
			WillReturnRows(itemRow("item-1", 10, 3))

		item, ok, err := repo.TryReserve(ctx, "item-1", 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, item.Reserved)
		assert.Equal(t, 7, item.AvailableQuantity())
		assert.Nil(t, item.VariantID)
	})

	t.Run("no row means not enough stock", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $3 AND on_hand - reserved >= $1")).
			WithArgs(20, sqlmock.AnyArg(), "item-1").
			WillReturnRows(sqlmock.NewRows(itemColumns))

		item, ok, err := repo.TryReserve(ctx, "item-1", 20)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, item)
	})

	t.Run("driver errors surface", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE inventory_items")).
			WillReturnError(errors.New("connection reset"))

		_, ok, err := repo.TryReserve(ctx, "item-1", 1)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestGetItemNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM inventory_items WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	_, err := repo.GetItem(context.Background(), "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestFindItemByStockKey(t *testing.T) {
	ctx := context.Background()

	t.Run("product key matches variant-less row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("product_id = $1 AND variant_id IS NULL AND warehouse_id = $2")).
			WithArgs("p-1", "w-1").
			WillReturnRows(itemRow("item-1", 5, 0))

		item, err := repo.FindItem(ctx, dto.StockKey{ProductID: "p-1"}, "w-1")
		require.NoError(t, err)
		assert.Equal(t, "item-1", item.ID)
	})

	t.Run("variant key", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("variant_id = $1 AND warehouse_id = $2")).
			WithArgs("v-1", "w-1").
			WillReturnRows(sqlmock.NewRows(itemColumns))

		_, err := repo.FindItem(ctx, dto.StockKey{ProductID: "p-1", VariantID: "v-1"}, "w-1")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})
}

func TestCreateItemDuplicateSKU(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory_items")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateItem(context.Background(), &model.InventoryItem{ID: "item-1", SKU: "SKU-1", WarehouseID: "w-1", Status: model.ItemStatusActive})
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))
}

func TestUpdateItemMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE inventory_items SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateItem(context.Background(), &model.InventoryItem{ID: "gone", Status: model.ItemStatusActive})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestListItemsBuildsFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM inventory_items WHERE product_id = $1 AND on_hand - reserved + incoming <= reorder_point")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY updated_at DESC, id LIMIT 10 OFFSET 10")).
		WithArgs("p-1").
		WillReturnRows(itemRow("item-1", 2, 0))

	items, total, err := repo.ListItems(context.Background(), &dto.ItemFilters{ProductID: "p-1", NeedsReorder: true, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)
}

func TestListExpiredCartReservationsWithoutLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND reservation_type = $2 AND expires_at < $3")).
		WithArgs("RESERVED", "CART", now, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inventory_item_id", "quantity", "status", "reservation_type"}).
			AddRow("r-1", "item-1", 2, "RESERVED", "CART"))

	items, err := repo.ListExpiredCartReservations(context.Background(), now, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ReservationCart, items[0].Type)
}

func TestListOverdueReservationsSkipsReported(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND overdue_alerted_at IS NULL")).
		WithArgs("RESERVED", "CART", now, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inventory_item_id", "quantity", "status", "reservation_type"}).
			AddRow("r-2", "item-1", 5, "RESERVED", "ORDER"))

	items, err := repo.ListOverdueReservations(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.ReservationOrder, items[0].Type)
}

func TestMarkReservationOverdue(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE stock_reservations SET overdue_alerted_at = $1")).
		WithArgs(now, "r-2", "RESERVED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE stock_reservations SET overdue_alerted_at = $1")).
		WithArgs(now, "r-2", "RESERVED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	marked, err := repo.MarkReservationOverdue(context.Background(), "r-2", now)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkReservationOverdue(context.Background(), "r-2", now)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestSumActiveReservations(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SUM(quantity) AS total")).
		WithArgs("RESERVED").
		WillReturnRows(sqlmock.NewRows([]string{"inventory_item_id", "total"}).
			AddRow("item-1", 4).
			AddRow("item-2", 9))

	sums, err := repo.SumActiveReservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"item-1": 4, "item-2": 9}, sums)
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inventory_movements")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.RunInTx(ctx, func(ctx context.Context, tx inventory.Repository) error {
			return tx.AppendMovement(ctx, &model.InventoryMovement{ID: "m-1", Type: model.MovementReceive, Quantity: 5})
		})
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := repo.RunInTx(ctx, func(ctx context.Context, tx inventory.Repository) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nested calls reuse the open transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := repo.RunInTx(ctx, func(ctx context.Context, tx inventory.Repository) error {
			return tx.RunInTx(ctx, func(ctx context.Context, inner inventory.Repository) error {
				return nil
			})
		})
		assert.NoError(t, err)
	})
}
