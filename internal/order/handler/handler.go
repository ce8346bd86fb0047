package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/httpx"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{uc: uc, logger: log}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Get("/{id}/transitions", h.transitions)
		r.Patch("/{id}/status", h.updateStatus)
	})
}

func (h *OrderHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID         string `json:"id"`
		CartID     string `json:"cart_id"`
		CustomerID string `json:"customer_id"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	o, err := h.uc.CreateOrder(r.Context(), &dto.CreateOrderInput{
		ID:         body.ID,
		CartID:     body.CartID,
		CustomerID: body.CustomerID,
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, o)
}

func (h *OrderHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, o)
}

func (h *OrderHandler) transitions(w http.ResponseWriter, r *http.Request) {
	o, err := h.uc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	allowed := order.AllowedTransitions(o.Status)
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"status":   o.Status,
		"allowed":  allowed,
		"terminal": order.IsTerminal(o.Status),
	})
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.OrderStatus `json:"status"`
		Reason string            `json:"reason"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	o, err := h.uc.UpdateStatus(r.Context(), &dto.UpdateStatusInput{
		OrderID: chi.URLParam(r, "id"),
		Status:  body.Status,
		ActorID: auth.GetActorID(r.Context()),
		Reason:  body.Reason,
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, o)
}
