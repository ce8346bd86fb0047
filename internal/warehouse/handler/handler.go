package handler

import (
	"net/http"

	"github.com/fekuna/omnipos-stock-service/internal/httpx"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse"
	"github.com/fekuna/omnipos-stock-service/internal/warehouse/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type WarehouseHandler struct {
	uc     warehouse.UseCase
	logger logger.ZapLogger
}

func NewWarehouseHandler(uc warehouse.UseCase, log logger.ZapLogger) *WarehouseHandler {
	return &WarehouseHandler{uc: uc, logger: log}
}

func (h *WarehouseHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/warehouses", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
	})
}

type createWarehouseRequest struct {
	Code              string              `json:"code"`
	Name              string              `json:"name"`
	Type              model.WarehouseType `json:"type"`
	AddressLine       string              `json:"address_line"`
	City              string              `json:"city"`
	PostalCode        string              `json:"postal_code"`
	CountryCode       string              `json:"country_code"`
	Latitude          *float64            `json:"latitude"`
	Longitude         *float64            `json:"longitude"`
	Capacity          int                 `json:"capacity"`
	Priority          int                 `json:"priority"`
	AcceptsReturns    bool                `json:"accepts_returns"`
	AcceptsInbound    bool                `json:"accepts_inbound"`
	SupportedCarriers []string            `json:"supported_carriers"`
}

type updateWarehouseRequest struct {
	Name              *string  `json:"name"`
	IsActive          *bool    `json:"is_active"`
	Priority          *int     `json:"priority"`
	Capacity          *int     `json:"capacity"`
	Utilization       *int     `json:"utilization"`
	AcceptsReturns    *bool    `json:"accepts_returns"`
	AcceptsInbound    *bool    `json:"accepts_inbound"`
	SupportedCarriers []string `json:"supported_carriers"`
}

func (h *WarehouseHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createWarehouseRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	wh, err := h.uc.CreateWarehouse(r.Context(), &dto.CreateWarehouseInput{
		Code:              req.Code,
		Name:              req.Name,
		Type:              req.Type,
		AddressLine:       req.AddressLine,
		City:              req.City,
		PostalCode:        req.PostalCode,
		CountryCode:       req.CountryCode,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		Capacity:          req.Capacity,
		Priority:          req.Priority,
		AcceptsReturns:    req.AcceptsReturns,
		AcceptsInbound:    req.AcceptsInbound,
		SupportedCarriers: req.SupportedCarriers,
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, wh)
}

func (h *WarehouseHandler) get(w http.ResponseWriter, r *http.Request) {
	wh, err := h.uc.GetWarehouse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, wh)
}

func (h *WarehouseHandler) list(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := httpx.QueryBool(r, "active")
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	list, err := h.uc.ListWarehouses(r.Context(), &dto.WarehouseFilters{
		ActiveOnly:  activeOnly,
		CountryCode: r.URL.Query().Get("country"),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[model.Warehouse]{Items: list, Total: len(list)})
}

func (h *WarehouseHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateWarehouseRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	wh, err := h.uc.UpdateWarehouse(r.Context(), &dto.UpdateWarehouseInput{
		ID:                chi.URLParam(r, "id"),
		Name:              req.Name,
		IsActive:          req.IsActive,
		Priority:          req.Priority,
		Capacity:          req.Capacity,
		Utilization:       req.Utilization,
		AcceptsReturns:    req.AcceptsReturns,
		AcceptsInbound:    req.AcceptsInbound,
		SupportedCarriers: req.SupportedCarriers,
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, wh)
}
