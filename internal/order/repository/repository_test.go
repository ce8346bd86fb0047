package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	orderColumns = []string{"id", "cart_id", "customer_id", "status", "created_at", "updated_at"}
	fixedNow     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

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

func orderRow(id, status string) *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns).AddRow(id, "cart-1", nil, status, fixedNow, fixedNow)
}

func TestPGCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.Order{ID: "o-1", Status: model.OrderPending})
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}

func TestPGGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE id = $1")).
		WithArgs("o-1").
		WillReturnRows(orderRow("o-1", "PENDING"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE id = $1")).
		WithArgs("o-2").
		WillReturnError(sql.ErrNoRows)

	o, err := repo.GetByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, o.Status)
	require.NotNil(t, o.CartID)
	assert.Equal(t, "cart-1", *o.CartID)
	assert.Nil(t, o.CustomerID)

	_, err = repo.GetByID(context.Background(), "o-2")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPGCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("swaps when the status matches", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1")).
			WithArgs("CONFIRMED", fixedNow, "o-1", "PENDING").
			WillReturnRows(orderRow("o-1", "CONFIRMED"))

		o, err := repo.CompareAndSetStatus(ctx, "o-1", model.OrderPending, model.OrderConfirmed, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, model.OrderConfirmed, o.Status)
	})

	t.Run("lost race reports the current status", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1")).
			WithArgs("CANCELLED", fixedNow, "o-1", "PENDING").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE id = $1")).
			WithArgs("o-1").
			WillReturnRows(orderRow("o-1", "SHIPPED"))

		_, err := repo.CompareAndSetStatus(ctx, "o-1", model.OrderPending, model.OrderCancelled, fixedNow)
		var ise *model.InvalidStateError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, "SHIPPED", ise.From)
		assert.Equal(t, "CANCELLED", ise.To)
	})

	t.Run("missing order", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE orders SET status = $1")).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM orders WHERE id = $1")).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.CompareAndSetStatus(ctx, "ghost", model.OrderPending, model.OrderConfirmed, fixedNow)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestMemoryCompareAndSetStatusSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &model.Order{ID: "o-1", Status: model.OrderPending}))
	assert.ErrorIs(t, repo.Create(ctx, &model.Order{ID: "o-1"}), model.ErrAlreadyExists)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, to := range []model.OrderStatus{model.OrderConfirmed, model.OrderCancelled, model.OrderConfirmed, model.OrderCancelled} {
		wg.Add(1)
		go func(to model.OrderStatus) {
			defer wg.Done()
			if _, err := repo.CompareAndSetStatus(ctx, "o-1", model.OrderPending, to, fixedNow); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, model.ErrInvalidState)
			}
		}(to)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	o, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.NotEqual(t, model.OrderPending, o.Status)
	assert.True(t, o.UpdatedAt.Equal(fixedNow))
}
