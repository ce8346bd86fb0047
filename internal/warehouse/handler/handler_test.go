package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/httpx"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/handler"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/repository"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/usecase"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() http.Handler {
	uc := usecase.NewWarehouseUseCase(repository.NewMemoryRepository(), logger.NewNop())
	r := chi.NewRouter()
	handler.NewWarehouseHandler(uc, logger.NewNop()).RegisterRoutes(r)
	return r
}

func send(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestWarehouseCRUD(t *testing.T) {
	h := newRouter()

	rec := send(t, h, http.MethodPost, "/api/v1/warehouses/", map[string]interface{}{
		"code": "PAR", "name": "Paris", "country_code": "fr", "priority": 2,
		"latitude": 48.85, "longitude": 2.35,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Warehouse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "FR", created.CountryCode)
	assert.Equal(t, model.WarehouseFulfillmentCenter, created.Type)
	assert.True(t, created.IsActive)

	rec = send(t, h, http.MethodPatch, "/api/v1/warehouses/"+created.ID, map[string]interface{}{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, h, http.MethodGet, "/api/v1/warehouses/?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list httpx.ListResponse[model.Warehouse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Zero(t, list.Total)

	rec = send(t, h, http.MethodGet, "/api/v1/warehouses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Warehouse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.IsActive)
}

func TestWarehouseErrors(t *testing.T) {
	h := newRouter()

	rec := send(t, h, http.MethodPost, "/api/v1/warehouses/", map[string]interface{}{"code": "X", "name": "X", "type": "SPACEPORT"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, h, http.MethodPost, "/api/v1/warehouses/", map[string]interface{}{"code": "X", "name": "X"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = send(t, h, http.MethodPost, "/api/v1/warehouses/", map[string]interface{}{"code": "X", "name": "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, h, http.MethodGet, "/api/v1/warehouses/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(t, h, http.MethodGet, "/api/v1/warehouses/?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
