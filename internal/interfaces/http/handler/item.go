package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
)

// ItemService registers items and maintains their ordering rules
type ItemService interface {
	Register(ctx context.Context, req stockapp.RegisterItemRequest) (*stockapp.ItemResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*stockapp.ItemResponse, error)
	List(ctx context.Context, filter stockapp.ListFilter) (shared.Paginated[stockapp.ItemResponse], error)
	UpdateRules(ctx context.Context, id uuid.UUID, req stockapp.ItemRulesRequest) (*stockapp.ItemResponse, error)
}

// AvailabilityChecker answers can-order questions
type AvailabilityChecker interface {
	CanOrder(ctx context.Context, itemID uuid.UUID, deliveryDate *time.Time) (*stockapp.CanOrderResponse, error)
}

// StockReader reads the live available quantity
type StockReader interface {
	AvailableStock(ctx context.Context, itemID uuid.UUID) (stock.Availability, error)
}

// ItemHandler serves the item catalogue as the ledger sees it
type ItemHandler struct {
	BaseHandler
	items        ItemService
	availability AvailabilityChecker
	stock        StockReader
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(base BaseHandler, items ItemService, availability AvailabilityChecker, stock StockReader) *ItemHandler {
	return &ItemHandler{
		BaseHandler:  base,
		items:        items,
		availability: availability,
		stock:        stock,
	}
}

// AvailabilityResponse is the live available quantity of an item
type AvailabilityResponse struct {
	ItemID uuid.UUID `json:"item_id"`
	stock.Availability
}

// Register godoc
// @ID           registerItem
// @Summary      Register a sellable item
// @Tags         items
// @Accept       json
// @Produce      json
// @Param        request body stockapp.RegisterItemRequest true "Item"
// @Success      201 {object} APIResponse[stockapp.ItemResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /items [post]
func (h *ItemHandler) Register(c *gin.Context) {
	var req stockapp.RegisterItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	item, err := h.items.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, "register_item", err)
		return
	}
	h.Created(c, item)
}

// Get godoc
// @ID           getItem
// @Summary      Get an item with its counters
// @Tags         items
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Success      200 {object} APIResponse[stockapp.ItemResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	item, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, "get_item", err)
		return
	}
	h.Success(c, item)
}

// List godoc
// @ID           listItems
// @Summary      List items
// @Tags         items
// @Produce      json
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]stockapp.ItemResponse]
// @Router       /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	var filter stockapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.InvalidBody(c, err)
		return
	}
	page, err := h.items.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, "list_items", err)
		return
	}
	Paged(c, page)
}

// UpdateRules replaces the ordering rules of an item: perishability, lead
// time, low-stock threshold and whether stock is tracked at all.
// @ID           updateItemRules
// @Summary      Update ordering rules
// @Tags         items
// @Accept       json
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        request body stockapp.ItemRulesRequest true "Rules"
// @Success      200 {object} APIResponse[stockapp.ItemResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /items/{id}/rules [put]
func (h *ItemHandler) UpdateRules(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	var req stockapp.ItemRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	item, err := h.items.UpdateRules(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, "update_item_rules", err)
		return
	}
	h.Success(c, item)
}

// Availability godoc
// @ID           getItemAvailability
// @Summary      Live available quantity
// @Description  stock minus reserved; unbounded for untracked items
// @Tags         items
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Success      200 {object} APIResponse[AvailabilityResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /items/{id}/availability [get]
func (h *ItemHandler) Availability(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	avail, err := h.stock.AvailableStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, "available_stock", err)
		return
	}
	h.Success(c, AvailabilityResponse{ItemID: id, Availability: avail})
}

// CanOrder godoc
// @ID           canOrderItem
// @Summary      Check whether an item can be ordered for a delivery date
// @Tags         items
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        delivery_date query string false "YYYY-MM-DD or RFC3339"
// @Success      200 {object} APIResponse[stockapp.CanOrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /items/{id}/can-order [get]
func (h *ItemHandler) CanOrder(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	var delivery *time.Time
	if raw := c.Query("delivery_date"); raw != "" {
		t, err := parseDeliveryDate(raw)
		if err != nil {
			h.BadRequest(c, "Invalid delivery_date format")
			return
		}
		delivery = &t
	}
	decision, err := h.availability.CanOrder(c.Request.Context(), id, delivery)
	if err != nil {
		h.HandleError(c, "can_order", err)
		return
	}
	h.Success(c, decision)
}

func parseDeliveryDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
