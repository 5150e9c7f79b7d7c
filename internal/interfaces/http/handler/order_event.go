package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/shopcore/stockengine/internal/application/order"
	"github.com/shopcore/stockengine/internal/domain/order"
)

// IdempotencyKeyHeader carries the producer's event id when the body does not
const IdempotencyKeyHeader = "Idempotency-Key"

// StatusEventApplier applies an order status change to the ledger
type StatusEventApplier interface {
	Apply(ctx context.Context, e *order.OrderStatusChangedEvent) (*orderapp.TransitionResult, error)
}

// OrderEventHandler is the synchronous callback the order service uses when
// it does not publish through the broker
type OrderEventHandler struct {
	BaseHandler
	bridge StatusEventApplier
}

// NewOrderEventHandler creates a new OrderEventHandler
func NewOrderEventHandler(base BaseHandler, bridge StatusEventApplier) *OrderEventHandler {
	return &OrderEventHandler{BaseHandler: base, bridge: bridge}
}

// LineRequest is one order line
type LineRequest struct {
	ItemID   uuid.UUID `json:"item_id" binding:"required"`
	Quantity int64     `json:"quantity" binding:"required,gt=0" example:"2"`
}

// StatusEventRequest describes one order status change
type StatusEventRequest struct {
	EventID    string        `json:"event_id" binding:"max=128" example:"evt-000123"`
	From       string        `json:"from" binding:"order_status" example:"PENDING"`
	To         string        `json:"to" binding:"required,order_status" example:"CONFIRMED"`
	Lines      []LineRequest `json:"lines" binding:"omitempty,dive"`
	OccurredAt *time.Time    `json:"occurred_at"`
}

func (r StatusEventRequest) toEvent(orderRef, fallbackID string) *order.OrderStatusChangedEvent {
	var lines []order.LineItem
	for _, l := range r.Lines {
		lines = append(lines, order.LineItem{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	id := r.EventID
	if id == "" {
		id = fallbackID
	}
	e := order.NewOrderStatusChangedEvent(id, orderRef, order.Status(r.From), order.Status(r.To), lines)
	if r.OccurredAt != nil {
		e.WithOccurredAt(*r.OccurredAt)
	}
	return e
}

// StatusEvent godoc
// @ID           applyOrderStatusEvent
// @Summary      Apply an order status change to the stock ledger
// @Description  PENDING reserves, DELIVERED confirms the sale, CANCELLED releases. Transitions out of a terminal state are rejected.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        ref path string true "Order reference"
// @Param        Idempotency-Key header string false "Producer event id"
// @Param        request body StatusEventRequest true "Status change"
// @Success      200 {object} APIResponse[orderapp.TransitionResult]
// @Failure      409 {object} ErrorResponse "INVALID_TRANSITION or RESERVATION_LAPSED"
// @Failure      422 {object} ErrorResponse "INSUFFICIENT_STOCK"
// @Router       /orders/{ref}/status-events [post]
func (h *OrderEventHandler) StatusEvent(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("ref"))
	if ref == "" {
		h.BadRequest(c, "Order reference is required")
		return
	}
	var req StatusEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}

	result, err := h.bridge.Apply(c.Request.Context(), req.toEvent(ref, c.GetHeader(IdempotencyKeyHeader)))
	if err != nil {
		h.HandleError(c, "order_status_event", err)
		return
	}
	h.Success(c, result)
}
