package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error           string `json:"error"`
	InventoryItemID string `json:"inventory_item_id,omitempty"`
	Requested       int    `json:"requested,omitempty"`
	Available       *int   `json:"available,omitempty"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Error maps domain errors onto status codes. Anything unexpected is logged
// and answered with a generic 500 so internals do not leak.
func Error(w http.ResponseWriter, log logger.ZapLogger, err error) {
	var ise *model.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		available := ise.Available
		Respond(w, http.StatusConflict, ErrorResponse{
			Error:           err.Error(),
			InventoryItemID: ise.InventoryItemID,
			Requested:       ise.Requested,
			Available:       &available,
		})
	case errors.Is(err, model.ErrInvalidInput):
		Respond(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		Respond(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrAlreadyExists):
		Respond(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrInvalidState):
		Respond(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		log.Error("request failed", zap.Error(err))
		Respond(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewInvalidInput("body", err.Error())
	}
	return nil
}

// QueryInt reads an optional integer query parameter.
func QueryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewInvalidInput(key, "must be an integer")
	}
	return n, nil
}

func QueryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewInvalidInput(key, "must be a boolean")
	}
	return b, nil
}
