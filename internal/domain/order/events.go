package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
)

const (
	AggregateTypeOrder           = "Order"
	EventTypeOrderStatusChanged  = "OrderStatusChanged"
	eventNamespaceOrderStatusIDs = "order-status-event"
)

var eventIDNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventNamespaceOrderStatusIDs))

// LineItem is one order line as seen by the ledger
type LineItem struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int64     `json:"quantity"`
}

// OrderStatusChangedEvent is published by the order service on every status
// change. Lines may be omitted, in which case the ledger reads them from the
// order's own tables.
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderRef string     `json:"order_ref"`
	From     Status     `json:"from"`
	To       Status     `json:"to"`
	Lines    []LineItem `json:"lines,omitempty"`
}

// NewOrderStatusChangedEvent builds the event. sourceEventID is the producer's
// id; non-UUID ids are mapped to a stable name-based UUID so redeliveries keep
// the same idempotency key.
func NewOrderStatusChangedEvent(sourceEventID, orderRef string, from, to Status, lines []LineItem) *OrderStatusChangedEvent {
	base := shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, strings.TrimSpace(orderRef))
	if id := EventIDFromSource(sourceEventID); id != uuid.Nil {
		base.ID = id
	}
	return &OrderStatusChangedEvent{
		BaseDomainEvent: base,
		OrderRef:        strings.TrimSpace(orderRef),
		From:            from,
		To:              to,
		Lines:           lines,
	}
}

// EventIDFromSource maps an external event id to a UUID
func EventIDFromSource(sourceEventID string) uuid.UUID {
	sourceEventID = strings.TrimSpace(sourceEventID)
	if sourceEventID == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(sourceEventID); err == nil {
		return id
	}
	return uuid.NewSHA1(eventIDNamespace, []byte(sourceEventID))
}

// WithOccurredAt overrides the event timestamp with the producer's
func (e *OrderStatusChangedEvent) WithOccurredAt(t time.Time) *OrderStatusChangedEvent {
	if !t.IsZero() {
		e.Timestamp = t
	}
	return e
}

// Validate checks the event payload
func (e *OrderStatusChangedEvent) Validate() error {
	if e.OrderRef == "" {
		return shared.NewDomainError("INVALID_ORDER_REF", "Order reference cannot be empty")
	}
	if _, err := ParseStatus(string(e.From)); err != nil {
		return err
	}
	if e.To == StatusNone {
		return shared.NewDomainError("INVALID_ORDER_STATUS", "Target status is required")
	}
	if _, err := ParseStatus(string(e.To)); err != nil {
		return err
	}
	for _, l := range e.Lines {
		if l.ItemID == uuid.Nil || l.Quantity <= 0 {
			return shared.NewDomainError("INVALID_LINE_ITEM", "Line items need an item ID and a positive quantity")
		}
	}
	return nil
}
