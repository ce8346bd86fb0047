package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid input", model.NewInvalidInput("quantity", "must be positive"), http.StatusBadRequest},
		{"not found", model.NewNotFound("reservation", "r-1"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", model.NewNotFound("order", "o-1")), http.StatusNotFound},
		{"already exists", fmt.Errorf("sku: %w", model.ErrAlreadyExists), http.StatusConflict},
		{"invalid state", &model.InvalidStateError{Entity: "order", From: "SHIPPED", To: "CANCELLED"}, http.StatusUnprocessableEntity},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, logger.NewNop(), tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, logger.NewNop(), errors.New("pq: password authentication failed"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestInsufficientStockCarriesQuantities(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, logger.NewNop(), &model.InsufficientStockError{InventoryItemID: "item-1", Requested: 5, Available: 0})

	require.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "item-1", body.InventoryItemID)
	assert.Equal(t, 5, body.Requested)
	require.NotNil(t, body.Available)
	assert.Zero(t, *body.Available)
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&active=true&bad=x", nil)

	n, err := QueryInt(r, "page")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = QueryInt(r, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = QueryInt(r, "bad")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	b, err := QueryBool(r, "active")
	require.NoError(t, err)
	assert.True(t, b)

	_, err = QueryBool(r, "bad")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestDecode(t *testing.T) {
	var v struct {
		Quantity int `json:"quantity"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": 4}`))
	require.NoError(t, Decode(r, &v))
	assert.Equal(t, 4, v.Quantity)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": "four"}`))
	assert.ErrorIs(t, Decode(r, &v), model.ErrInvalidInput)
}
