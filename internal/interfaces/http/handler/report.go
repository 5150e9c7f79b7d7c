package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

// StockReports serves the reporting queries
type StockReports interface {
	Summary(ctx context.Context) (*stock.Summary, error)
	LowStockItems(ctx context.Context, filter stockapp.ListFilter) (shared.Paginated[stockapp.ItemResponse], error)
	History(ctx context.Context, itemID uuid.UUID, filter stockapp.HistoryFilter) (shared.Paginated[stockapp.MovementResponse], error)
	ExportSnapshot(ctx context.Context) (*stockapp.SnapshotResponse, error)
}

// ReportHandler handles report API endpoints
type ReportHandler struct {
	BaseHandler
	reports StockReports
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(base BaseHandler, reports StockReports, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{BaseHandler: base, reports: reports, logger: logger}
}

// Summary godoc
// @ID           getStockSummary
// @Summary      Stock totals across all items
// @Tags         reports
// @Produce      json
// @Success      200 {object} APIResponse[stock.Summary]
// @Router       /reports/stock-summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reports.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, "stock_summary", err)
		return
	}
	h.Success(c, summary)
}

// LowStock godoc
// @ID           listLowStock
// @Summary      Tracked items at or below their low-stock threshold
// @Tags         reports
// @Produce      json
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]stockapp.ItemResponse]
// @Router       /reports/low-stock [get]
func (h *ReportHandler) LowStock(c *gin.Context) {
	var filter stockapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.InvalidBody(c, err)
		return
	}
	page, err := h.reports.LowStockItems(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, "low_stock", err)
		return
	}
	Paged(c, page)
}

// History godoc
// @ID           getItemHistory
// @Summary      Audit log of an item's stock movements
// @Tags         reports
// @Produce      json
// @Param        id path string true "Item ID" format(uuid)
// @Param        kind query []string false "Movement kinds" collectionFormat(multi)
// @Param        from query string false "RFC3339"
// @Param        to query string false "RFC3339"
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Success      200 {object} APIResponse[[]stockapp.MovementResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /items/{id}/history [get]
func (h *ReportHandler) History(c *gin.Context) {
	id, ok := h.uuidParam(c, "id", "item")
	if !ok {
		return
	}
	var filter stockapp.HistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.InvalidBody(c, err)
		return
	}
	page, err := h.reports.History(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, "item_history", err)
		return
	}
	Paged(c, page)
}

// ExportSnapshot godoc
// @ID           exportStockSnapshot
// @Summary      Export every item's counters as CSV to object storage
// @Tags         reports
// @Produce      json
// @Success      201 {object} APIResponse[stockapp.SnapshotResponse]
// @Failure      503 {object} ErrorResponse "SNAPSHOT_STORE_DISABLED"
// @Security     BearerAuth
// @Router       /reports/snapshots [post]
func (h *ReportHandler) ExportSnapshot(c *gin.Context) {
	snap, err := h.reports.ExportSnapshot(c.Request.Context())
	if err != nil {
		h.HandleError(c, "export_snapshot", err)
		return
	}
	h.logger.Info("Stock snapshot exported",
		zap.String("actor_id", actorOf(c)),
		zap.String("storage_key", snap.StorageKey),
		zap.Int("items", snap.Items),
	)
	h.Created(c, snap)
}
