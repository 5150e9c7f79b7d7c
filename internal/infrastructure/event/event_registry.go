package event

import (
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/stock"
)

// RegisterStockEvents registers every event the engine publishes or consumes.
// The order status consumer needs OrderStatusChanged; the stock events are
// registered for the forwarding publisher.
func RegisterStockEvents(serializer *EventSerializer) {
	serializer.Register(stock.EventTypeStockReserved, &stock.StockReservedEvent{})
	serializer.Register(stock.EventTypeReservationReleased, &stock.ReservationReleasedEvent{})
	serializer.Register(stock.EventTypeSaleConfirmed, &stock.SaleConfirmedEvent{})
	serializer.Register(stock.EventTypeStockAdjusted, &stock.StockAdjustedEvent{})
	serializer.Register(stock.EventTypeStockExpired, &stock.StockExpiredEvent{})
	serializer.Register(stock.EventTypeReservationExpired, &stock.ReservationExpiredEvent{})

	serializer.Register(order.EventTypeOrderStatusChanged, &order.OrderStatusChangedEvent{})
}

// NewStockEventSerializer returns a serializer with RegisterStockEvents applied
func NewStockEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterStockEvents(s)
	return s
}
