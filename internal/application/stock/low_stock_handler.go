package stock

import (
	"context"
	"fmt"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

// StockAlert is what gets handed to a notifier when an item runs low
type StockAlert struct {
	ItemID        string `json:"item_id"`
	Stock         int64  `json:"stock"`
	ReservedStock int64  `json:"reserved_stock"`
	Available     int64  `json:"available"`
	LowStockAlert int64  `json:"low_stock_alert"`
	AlertType     string `json:"alert_type"` // low_stock, out_of_stock
	Trigger       string `json:"trigger"`
}

// StockAlertNotifier delivers stock alerts
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// LowStockHandler watches ledger events and raises an alert whenever the
// post-mutation levels of a tracked item are at or under its threshold.
type LowStockHandler struct {
	notifier StockAlertNotifier
	logger   *zap.Logger
}

// NewLowStockHandler creates a LowStockHandler
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{logger: logger}
}

// WithNotifier sets the notifier
func (h *LowStockHandler) WithNotifier(n StockAlertNotifier) *LowStockHandler {
	h.notifier = n
	return h
}

// EventTypes returns the ledger events that can lower availability
func (h *LowStockHandler) EventTypes() []string {
	return []string{
		stock.EventTypeStockReserved,
		stock.EventTypeSaleConfirmed,
		stock.EventTypeStockAdjusted,
		stock.EventTypeStockExpired,
	}
}

// Handle checks the levels carried by the event
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	levelsEvent, ok := event.(stock.LevelsEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s carries no stock levels", event.EventType())
	}

	levels := levelsEvent.Levels()
	if !levels.IsLow() {
		return nil
	}

	alertType := "low_stock"
	if levels.Available() <= 0 {
		alertType = "out_of_stock"
	}
	alert := StockAlert{
		ItemID:        levels.ItemID.String(),
		Stock:         levels.Stock,
		ReservedStock: levels.ReservedStock,
		Available:     levels.Available(),
		LowStockAlert: levels.LowStockAlert,
		AlertType:     alertType,
		Trigger:       event.EventType(),
	}

	h.logger.Warn("stock below threshold detected",
		zap.String("item_id", alert.ItemID),
		zap.Int64("available", alert.Available),
		zap.Int64("low_stock_alert", alert.LowStockAlert),
		zap.String("trigger", alert.Trigger),
	)

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			// notification failure must not fail event handling
			h.logger.Error("failed to send stock alert notification",
				zap.String("item_id", alert.ItemID),
				zap.Error(err),
			)
		}
	}
	return nil
}

var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingStockAlertNotifier writes alerts to the log
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a LoggingStockAlertNotifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("item_id", alert.ItemID),
		zap.Int64("available", alert.Available),
		zap.Int64("threshold", alert.LowStockAlert),
	)
	return nil
}
