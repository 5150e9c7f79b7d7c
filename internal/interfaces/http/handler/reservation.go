package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
)

// ReservationLedger places and settles reservations
type ReservationLedger interface {
	Reserve(ctx context.Context, itemID uuid.UUID, req stockapp.ReserveRequest) (*stockapp.ReservationResponse, error)
	Release(ctx context.Context, reservationID uuid.UUID) (*stockapp.ReservationResponse, error)
	ConfirmSale(ctx context.Context, reservationID uuid.UUID) (*stockapp.ReservationResponse, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*stockapp.ReservationResponse, error)
	ListOrderReservations(ctx context.Context, orderRef string) ([]stockapp.ReservationResponse, error)
}

// ReservationHandler exposes reservation operations
type ReservationHandler struct {
	BaseHandler
	ledger ReservationLedger
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(base BaseHandler, ledger ReservationLedger) *ReservationHandler {
	return &ReservationHandler{BaseHandler: base, ledger: ledger}
}

// Reserve godoc
// @ID           reserveStock
// @Summary      Reserve units of an item for an order
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        request body stockapp.ReserveRequest true "Reservation"
// @Success      201 {object} APIResponse[stockapp.ReservationResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse "INSUFFICIENT_STOCK, EXPIRED or INSUFFICIENT_LEAD_TIME"
// @Router       /items/{id}/reservations [post]
func (h *ReservationHandler) Reserve(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	var req stockapp.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	res, err := h.ledger.Reserve(c.Request.Context(), itemID, req)
	if err != nil {
		h.HandleError(c, "reserve", err)
		return
	}
	h.Created(c, res)
}

// Get godoc
// @ID           getReservation
// @Summary      Get a reservation
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Success      200 {object} APIResponse[stockapp.ReservationResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "reservation")
	if !ok {
		return
	}
	res, err := h.ledger.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, "get_reservation", err)
		return
	}
	h.Success(c, res)
}

// Release returns a live reservation's units to available stock.
// @ID           releaseReservation
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Success      200 {object} APIResponse[stockapp.ReservationResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse "ALREADY_RELEASED"
// @Router       /reservations/{id}/release [post]
func (h *ReservationHandler) Release(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "reservation")
	if !ok {
		return
	}
	res, err := h.ledger.Release(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, "release", err)
		return
	}
	h.Success(c, res)
}

// Confirm turns a live reservation into a sale, taking the units out of stock.
// @ID           confirmReservation
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Success      200 {object} APIResponse[stockapp.ReservationResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse "ALREADY_RELEASED"
// @Router       /reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "reservation")
	if !ok {
		return
	}
	res, err := h.ledger.ConfirmSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, "confirm_sale", err)
		return
	}
	h.Success(c, res)
}

// ListByOrder godoc
// @ID           listOrderReservations
// @Summary      Reservations held for an order
// @Tags         reservations
// @Produce      json
// @Param        ref path string true "Order reference"
// @Success      200 {object} APIResponse[[]stockapp.ReservationResponse]
// @Router       /orders/{ref}/reservations [get]
func (h *ReservationHandler) ListByOrder(c *gin.Context) {
	ref := strings.TrimSpace(c.Param("ref"))
	if ref == "" {
		h.BadRequest(c, "Order reference is required")
		return
	}
	list, err := h.ledger.ListOrderReservations(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, "list_order_reservations", err)
		return
	}
	h.Success(c, list)
}
