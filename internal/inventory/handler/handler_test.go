package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/httpx"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/handler"
	invRepo "github.com/fekuna/omnipos-stock-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	whRepo "github.com/fekuna/omnipos-stock-service/internal/warehouse/repository"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	repo   *invRepo.MemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := invRepo.NewMemoryRepository()
	warehouses := whRepo.NewMemoryRepository()
	now := time.Now().UTC()
	require.NoError(t, warehouses.Create(context.Background(), &model.Warehouse{
		ID: "w-main", Code: "MAIN", Name: "Main", Type: model.WarehouseFulfillmentCenter,
		CountryCode: "US", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, warehouses.Create(context.Background(), &model.Warehouse{
		ID: "w-east", Code: "EAST", Name: "East", Type: model.WarehouseFulfillmentCenter,
		CountryCode: "US", IsActive: true, Priority: 1, CreatedAt: now, UpdatedAt: now,
	}))

	uc := usecase.NewInventoryUseCase(repo, warehouses, nil, nil, usecase.Options{}, logger.NewNop())
	r := chi.NewRouter()
	r.Use(auth.ActorMiddleware)
	handler.NewInventoryHandler(uc, logger.NewNop()).RegisterRoutes(r)
	return &testServer{t: t, router: r, repo: repo}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.ActorHeader, "clerk-7")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testServer) createItem(sku, warehouseID string, onHand int) string {
	rec := s.do(http.MethodPost, "/api/v1/inventory/items", map[string]interface{}{
		"product_id":   "p-" + sku,
		"sku":          sku,
		"warehouse_id": warehouseID,
		"on_hand":      onHand,
		"unit_cost":    "2.50",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeInto[map[string]interface{}](s.t, rec)
	return item["id"].(string)
}

func TestCreateAndGetItem(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("MUG", "w-main", 8)

	rec := s.do(http.MethodGet, "/api/v1/inventory/items/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decodeInto[map[string]interface{}](t, rec)
	assert.Equal(t, "MUG", item["sku"])
	assert.EqualValues(t, 8, item["available"])
	assert.Equal(t, "20", item["inventory_value"])

	rec = s.do(http.MethodGet, "/api/v1/inventory/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveInsufficientStockReturnsConflict(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("MUG", "w-main", 2)

	rec := s.do(http.MethodPost, "/api/v1/inventory/reservations", map[string]interface{}{
		"product_id":   "p-MUG",
		"warehouse_id": "w-main",
		"quantity":     5,
		"cart_id":      "cart-1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeInto[httpx.ErrorResponse](t, rec)
	assert.Equal(t, id, body.InventoryItemID)
	assert.Equal(t, 5, body.Requested)
	require.NotNil(t, body.Available)
	assert.Equal(t, 2, *body.Available)
}

func TestReserveReleaseFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("MUG", "w-main", 10)

	rec := s.do(http.MethodPost, "/api/v1/inventory/reservations", map[string]interface{}{
		"product_id":   "p-MUG",
		"warehouse_id": "w-main",
		"quantity":     4,
		"order_id":     "o-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeInto[model.StockReservation](t, rec)
	assert.Equal(t, model.ReservationReserved, res.Status)

	rec = s.do(http.MethodGet, "/api/v1/inventory/availability?product_id=p-MUG", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 6, decodeInto[map[string]interface{}](t, rec)["available"])

	rec = s.do(http.MethodPost, "/api/v1/inventory/reservations/"+res.ID+"/release", map[string]string{"reason": "changed mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ReservationReleased, decodeInto[model.StockReservation](t, rec).Status)

	rec = s.do(http.MethodPost, "/api/v1/inventory/reservations/"+res.ID+"/fulfill", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	item, err := s.repo.GetItem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 10, item.OnHand)
	assert.Zero(t, item.Reserved)
}

func TestFulfillThenReturn(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("MUG", "w-main", 10)

	rec := s.do(http.MethodPost, "/api/v1/inventory/reservations", map[string]interface{}{
		"product_id":   "p-MUG",
		"warehouse_id": "w-main",
		"quantity":     4,
		"order_id":     "o-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeInto[model.StockReservation](t, rec)

	rec = s.do(http.MethodPost, "/api/v1/inventory/reservations/"+res.ID+"/return", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/inventory/reservations/"+res.ID+"/fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for i := 0; i < 2; i++ {
		rec = s.do(http.MethodPost, "/api/v1/inventory/reservations/"+res.ID+"/return", map[string]string{"reason": "damaged box"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	item, err := s.repo.GetItem(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 10, item.OnHand)
}

func TestReserveWithoutWarehouseUsesAnyWarehouse(t *testing.T) {
	s := newTestServer(t)
	s.createItem("MUG", "w-main", 1)
	eastID := s.createItem("MUG", "w-east", 5)

	rec := s.do(http.MethodPost, "/api/v1/inventory/reservations", map[string]interface{}{
		"product_id": "p-MUG",
		"quantity":   3,
		"cart_id":    "cart-9",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeInto[model.StockReservation](t, rec)
	assert.Equal(t, eastID, res.InventoryItemID)
	assert.Equal(t, model.ReservationCart, res.Type)
}

func TestTransferAndMovements(t *testing.T) {
	s := newTestServer(t)
	fromID := s.createItem("MUG", "w-main", 10)

	rec := s.do(http.MethodPost, "/api/v1/inventory/transfer", map[string]interface{}{
		"sku":               "MUG",
		"from_warehouse_id": "w-main",
		"to_warehouse_id":   "w-east",
		"quantity":          4,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeInto[map[string]map[string]interface{}](t, rec)
	assert.EqualValues(t, 6, out["from"]["on_hand"])
	assert.EqualValues(t, 4, out["to"]["on_hand"])

	rec = s.do(http.MethodGet, "/api/v1/inventory/movements?inventory_item_id="+fromID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeInto[httpx.ListResponse[model.InventoryMovement]](t, rec)
	require.NotEmpty(t, list.Items)
	for _, m := range list.Items {
		require.NotNil(t, m.CreatedBy)
		assert.Equal(t, "clerk-7", *m.CreatedBy)
	}

	rec = s.do(http.MethodGet, "/api/v1/inventory/movements?start_date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustBelowReservedIsRejected(t *testing.T) {
	s := newTestServer(t)
	id := s.createItem("MUG", "w-main", 10)
	rec := s.do(http.MethodPost, "/api/v1/inventory/reservations", map[string]interface{}{
		"product_id": "p-MUG", "warehouse_id": "w-main", "quantity": 6, "order_id": "o-2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/inventory/items/"+id+"/adjust", map[string]interface{}{
		"new_quantity": 3, "reason": "cycle count",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/items", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/inventory/availability", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/inventory/items?page=two", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/inventory/best-warehouse?product_id=p&lat=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBestWarehouse(t *testing.T) {
	s := newTestServer(t)
	s.createItem("MUG", "w-main", 2)
	s.createItem("MUG", "w-east", 5)

	rec := s.do(http.MethodGet, "/api/v1/inventory/best-warehouse?product_id=p-MUG&country=US", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "w-east", decodeInto[model.Warehouse](t, rec).ID)

	rec = s.do(http.MethodGet, "/api/v1/inventory/best-warehouse?product_id=p-MUG&country=FR", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaintenanceEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.createItem("MUG", "w-main", 3)

	rec := s.do(http.MethodPost, "/api/v1/inventory/maintenance/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/inventory/maintenance/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeInto[httpx.ListResponse[map[string]interface{}]](t, rec).Total)
}
