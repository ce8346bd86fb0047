package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/httpx"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Post("/items", h.createItem)
		r.Get("/items", h.listItems)
		r.Get("/items/{id}", h.getItem)
		r.Patch("/items/{id}/status", h.setItemStatus)
		r.Post("/items/{id}/adjust", h.adjustStock)
		r.Post("/items/{id}/damage", h.recordDamage)
		r.Post("/items/{id}/return", h.returnStock)

		r.Get("/availability", h.getAvailability)
		r.Get("/reorder", h.listNeedingReorder)
		r.Get("/below-safety-stock", h.listBelowSafetyStock)
		r.Get("/best-warehouse", h.findBestWarehouse)

		r.Post("/receive", h.receiveStock)
		r.Post("/transfer", h.transferStock)
		r.Get("/movements", h.listMovements)

		r.Post("/reservations", h.reserveStock)
		r.Get("/reservations", h.listReservations)
		r.Get("/reservations/{id}", h.getReservation)
		r.Post("/reservations/{id}/release", h.releaseReservation)
		r.Post("/reservations/{id}/fulfill", h.fulfillReservation)
		r.Post("/reservations/{id}/return", h.returnReservation)
		r.Post("/reservations/{id}/convert", h.convertReservation)
		r.Post("/carts/{cart_id}/convert", h.convertCart)

		r.Post("/maintenance/sweep", h.sweep)
		r.Get("/maintenance/reconcile", h.reconcile)
	})
}

type createItemRequest struct {
	ProductID       string           `json:"product_id"`
	VariantID       *string          `json:"variant_id"`
	SKU             string           `json:"sku"`
	WarehouseID     string           `json:"warehouse_id"`
	OnHand          int              `json:"on_hand"`
	Incoming        int              `json:"incoming"`
	ReorderPoint    int              `json:"reorder_point"`
	ReorderQuantity int              `json:"reorder_quantity"`
	SafetyStock     int              `json:"safety_stock"`
	MaxStock        *int             `json:"max_stock"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	Currency        string           `json:"currency"`
	BinLocation     string           `json:"bin_location"`
	Zone            string           `json:"zone"`
	Aisle           string           `json:"aisle"`
	Shelf           string           `json:"shelf"`
}

type itemResponse struct {
	*model.InventoryItem
	Available      int             `json:"available"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
}

func toItemResponse(item *model.InventoryItem) itemResponse {
	return itemResponse{
		InventoryItem:  item,
		Available:      item.AvailableQuantity(),
		InventoryValue: item.InventoryValue(),
	}
}

func toItemResponses(items []model.InventoryItem) []itemResponse {
	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = toItemResponse(&items[i])
	}
	return out
}

func (h *InventoryHandler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	input := &dto.CreateItemInput{
		ProductID:       req.ProductID,
		VariantID:       req.VariantID,
		SKU:             req.SKU,
		WarehouseID:     req.WarehouseID,
		OnHand:          req.OnHand,
		Incoming:        req.Incoming,
		ReorderPoint:    req.ReorderPoint,
		ReorderQuantity: req.ReorderQuantity,
		SafetyStock:     req.SafetyStock,
		MaxStock:        req.MaxStock,
		Currency:        req.Currency,
		BinLocation:     req.BinLocation,
		Zone:            req.Zone,
		Aisle:           req.Aisle,
		Shelf:           req.Shelf,
		ActorID:         auth.GetActorID(r.Context()),
	}
	if req.UnitCost != nil {
		input.UnitCost = decimal.NewNullDecimal(*req.UnitCost)
	}

	item, err := h.uc.CreateItem(r.Context(), input)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, toItemResponse(item))
}

func (h *InventoryHandler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.uc.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &dto.ItemFilters{
		ProductID:   q.Get("product_id"),
		VariantID:   q.Get("variant_id"),
		WarehouseID: q.Get("warehouse_id"),
		SKU:         q.Get("sku"),
		Status:      model.ItemStatus(q.Get("status")),
	}
	var err error
	if filters.Page, filters.PageSize, err = pagination(r); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}

	items, total, err := h.uc.ListItems(r.Context(), filters)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[itemResponse]{Items: toItemResponses(items), Total: total})
}

func (h *InventoryHandler) setItemStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.ItemStatus `json:"status"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	item, err := h.uc.SetItemStatus(r.Context(), &dto.SetItemStatusInput{
		InventoryItemID: chi.URLParam(r, "id"),
		Status:          body.Status,
		ActorID:         auth.GetActorID(r.Context()),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewQuantity int    `json:"new_quantity"`
		Reason      string `json:"reason"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	item, err := h.uc.AdjustStock(r.Context(), &dto.AdjustStockInput{
		InventoryItemID: chi.URLParam(r, "id"),
		NewQuantity:     body.NewQuantity,
		Reason:          body.Reason,
		ActorID:         auth.GetActorID(r.Context()),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) recordDamage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int    `json:"quantity"`
		Reason   string `json:"reason"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	item, err := h.uc.RecordDamage(r.Context(), &dto.RecordDamageInput{
		InventoryItemID: chi.URLParam(r, "id"),
		Quantity:        body.Quantity,
		Reason:          body.Reason,
		ActorID:         auth.GetActorID(r.Context()),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) returnStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity      int    `json:"quantity"`
		ReferenceType string `json:"reference_type"`
		ReferenceID   string `json:"reference_id"`
		Reason        string `json:"reason"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	item, err := h.uc.ReturnStock(r.Context(), &dto.ReturnStockInput{
		InventoryItemID: chi.URLParam(r, "id"),
		Quantity:        body.Quantity,
		ReferenceType:   body.ReferenceType,
		ReferenceID:     body.ReferenceID,
		Reason:          body.Reason,
		ActorID:         auth.GetActorID(r.Context()),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) getAvailability(w http.ResponseWriter, r *http.Request) {
	key := dto.StockKey{ProductID: r.URL.Query().Get("product_id"), VariantID: r.URL.Query().Get("variant_id")}
	if key.ProductID == "" && key.VariantID == "" {
		httpx.Error(w, h.logger, model.NewInvalidInput("product_id", "product_id or variant_id is required"))
		return
	}
	available, err := h.uc.GetAvailableQuantity(r.Context(), key)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]interface{}{
		"product_id": key.ProductID,
		"variant_id": key.VariantID,
		"available":  available,
	})
}

func (h *InventoryHandler) listNeedingReorder(w http.ResponseWriter, r *http.Request) {
	items, err := h.uc.GetItemsNeedingReorder(r.Context())
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[itemResponse]{Items: toItemResponses(items), Total: len(items)})
}

func (h *InventoryHandler) listBelowSafetyStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.uc.GetItemsBelowSafetyStock(r.Context())
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[itemResponse]{Items: toItemResponses(items), Total: len(items)})
}

func (h *InventoryHandler) findBestWarehouse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := q.Get("product_id")
	if productID == "" {
		httpx.Error(w, h.logger, model.NewInvalidInput("product_id", "is required"))
		return
	}

	var target *model.GeoPoint
	if q.Get("lat") != "" || q.Get("lon") != "" {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil {
			httpx.Error(w, h.logger, model.NewInvalidInput("lat/lon", "both must be numbers"))
			return
		}
		target = &model.GeoPoint{Latitude: lat, Longitude: lon}
	}

	wh, err := h.uc.FindBestWarehouseForProduct(r.Context(), productID, q.Get("country"), target)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	if wh == nil {
		httpx.Error(w, h.logger, model.NewNotFound("warehouse", "able to ship product "+productID))
		return
	}
	httpx.Respond(w, http.StatusOK, wh)
}

func (h *InventoryHandler) receiveStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SKU           string `json:"sku"`
		WarehouseID   string `json:"warehouse_id"`
		Quantity      int    `json:"quantity"`
		ReferenceType string `json:"reference_type"`
		ReferenceID   string `json:"reference_id"`
		Notes         string `json:"notes"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	item, err := h.uc.ReceiveStock(r.Context(), &dto.ReceiveStockInput{
		SKU:           body.SKU,
		WarehouseID:   body.WarehouseID,
		Quantity:      body.Quantity,
		ReferenceType: body.ReferenceType,
		ReferenceID:   body.ReferenceID,
		Notes:         body.Notes,
		ActorID:       auth.GetActorID(r.Context()),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, toItemResponse(item))
}

func (h *InventoryHandler) transferStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SKU             string `json:"sku"`
		FromWarehouseID string `json:"from_warehouse_id"`
		ToWarehouseID   string `json:"to_warehouse_id"`
		Quantity        int    `json:"quantity"`
		Reason          string `json:"reason"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	from, to, err := h.uc.TransferStock(r.Context(), &dto.TransferStockInput{
		SKU:             body.SKU,
		FromWarehouseID: body.FromWarehouseID,
		ToWarehouseID:   body.ToWarehouseID,
		Quantity:        body.Quantity,
		Reason:          body.Reason,
		ActorID:         auth.GetActorID(r.Context()),
	})
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, map[string]itemResponse{
		"from": toItemResponse(from),
		"to":   toItemResponse(to),
	})
}

func (h *InventoryHandler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &dto.MovementFilters{
		InventoryItemID: q.Get("inventory_item_id"),
		WarehouseID:     q.Get("warehouse_id"),
		SKU:             q.Get("sku"),
		MovementType:    model.MovementType(q.Get("movement_type")),
		ReferenceType:   q.Get("reference_type"),
		ReferenceID:     q.Get("reference_id"),
	}
	for key, dst := range map[string]**time.Time{"start_date": &filters.StartDate, "end_date": &filters.EndDate} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Error(w, h.logger, model.NewInvalidInput(key, "must be RFC3339"))
			return
		}
		*dst = &t
	}
	var err error
	if filters.Page, filters.PageSize, err = pagination(r); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}

	movements, total, err := h.uc.ListMovements(r.Context(), filters)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[model.InventoryMovement]{Items: movements, Total: total})
}

type reserveRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	// WarehouseID is optional; without it any active warehouse may serve.
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
	OrderID     string `json:"order_id"`
	CartID      string `json:"cart_id"`
}

func (h *InventoryHandler) reserveStock(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	key := dto.StockKey{ProductID: req.ProductID, VariantID: req.VariantID}
	actor := auth.GetActorID(r.Context())

	var (
		res *model.StockReservation
		err error
	)
	if req.WarehouseID == "" {
		res, err = h.uc.ReserveStockAnyWarehouse(r.Context(), &dto.ReserveAnyWarehouseInput{
			StockKey: key, Quantity: req.Quantity, OrderID: req.OrderID, CartID: req.CartID, ActorID: actor,
		})
	} else {
		res, err = h.uc.ReserveStock(r.Context(), &dto.ReserveStockInput{
			StockKey: key, WarehouseID: req.WarehouseID, Quantity: req.Quantity,
			OrderID: req.OrderID, CartID: req.CartID, ActorID: actor,
		})
	}
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, res)
}

func (h *InventoryHandler) listReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &dto.ReservationFilters{
		InventoryItemID: q.Get("inventory_item_id"),
		OrderID:         q.Get("order_id"),
		CartID:          q.Get("cart_id"),
		Status:          model.ReservationStatus(q.Get("status")),
		Type:            model.ReservationType(q.Get("type")),
	}
	var err error
	if filters.Page, filters.PageSize, err = pagination(r); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	list, total, err := h.uc.ListReservations(r.Context(), filters)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[model.StockReservation]{Items: list, Total: total})
}

func (h *InventoryHandler) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.uc.GetReservation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, res)
}

func (h *InventoryHandler) releaseReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// the body is optional here
	if r.ContentLength > 0 {
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, h.logger, err)
			return
		}
	}
	res, err := h.uc.ReleaseReservation(r.Context(), chi.URLParam(r, "id"), auth.GetActorID(r.Context()), body.Reason)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, res)
}

func (h *InventoryHandler) fulfillReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.uc.FulfillReservation(r.Context(), chi.URLParam(r, "id"), auth.GetActorID(r.Context()))
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, res)
}

func (h *InventoryHandler) returnReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, h.logger, err)
			return
		}
	}
	res, err := h.uc.ReturnReservation(r.Context(), chi.URLParam(r, "id"), auth.GetActorID(r.Context()), body.Reason)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, res)
}

func (h *InventoryHandler) convertReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	res, err := h.uc.ConvertReservationToOrder(r.Context(), chi.URLParam(r, "id"), body.OrderID)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, res)
}

func (h *InventoryHandler) convertCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	list, err := h.uc.ConvertCartToOrder(r.Context(), chi.URLParam(r, "cart_id"), body.OrderID)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[model.StockReservation]{Items: list, Total: len(list)})
}

func (h *InventoryHandler) sweep(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	result, err := h.uc.ExpireStaleReservations(r.Context(), time.Now().UTC(), limit)
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, result)
}

func (h *InventoryHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	mismatches, err := h.uc.ReconcileReservations(r.Context())
	if err != nil {
		httpx.Error(w, h.logger, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.ListResponse[dto.ReservationMismatch]{Items: mismatches, Total: len(mismatches)})
}

func pagination(r *http.Request) (page, pageSize int, err error) {
	if page, err = httpx.QueryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if pageSize, err = httpx.QueryInt(r, "page_size"); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}
