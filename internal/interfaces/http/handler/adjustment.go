package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/interfaces/http/middleware"
)

// StockAdjuster applies manual stock corrections
type StockAdjuster interface {
	AdjustStock(ctx context.Context, itemID uuid.UUID, req stockapp.AdjustStockRequest) (*stockapp.ItemResponse, error)
}

// AdjustmentHandler records manual stock corrections. Routes are behind
// JWTAuth; the actor comes from the token.
type AdjustmentHandler struct {
	BaseHandler
	ledger StockAdjuster
}

// NewAdjustmentHandler creates a new AdjustmentHandler
func NewAdjustmentHandler(base BaseHandler, ledger StockAdjuster) *AdjustmentHandler {
	return &AdjustmentHandler{BaseHandler: base, ledger: ledger}
}

// Adjust godoc
// @ID           adjustStock
// @Summary      Correct the physical stock of an item
// @Description  Positive delta for found or returned units, negative for shrinkage. Reserved units cannot be adjusted away.
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        request body stockapp.AdjustStockRequest true "Adjustment"
// @Success      200 {object} APIResponse[stockapp.ItemResponse]
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse "INVALID_ADJUSTMENT"
// @Security     BearerAuth
// @Router       /items/{id}/adjustments [post]
func (h *AdjustmentHandler) Adjust(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	var req stockapp.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	req.ActorID = middleware.GetActorID(c)

	item, err := h.ledger.AdjustStock(c.Request.Context(), itemID, req)
	if err != nil {
		h.HandleError(c, "adjust_stock", err)
		return
	}
	h.Success(c, item)
}
