package event

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
)

// recordingHandler records every event it receives
type recordingHandler struct {
	eventTypes []string
	err        error
	panicWith  any

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func reservedEvent(orderRef string) *stock.StockReservedEvent {
	r := &stock.Reservation{
		BaseEntity: shared.BaseEntity{ID: uuid.New()},
		ItemID:     uuid.New(),
		OrderRef:   orderRef,
		Quantity:   2,
		Tracked:    true,
	}
	return stock.NewStockReservedEvent(r, stock.StockLevels{ItemID: r.ItemID, Stock: 5, ReservedStock: 2, TrackInventory: true})
}
