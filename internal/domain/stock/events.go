package stock

import (
	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
)

// Event type constants
const (
	EventTypeStockReserved       = "StockReserved"
	EventTypeReservationReleased = "ReservationReleased"
	EventTypeSaleConfirmed       = "SaleConfirmed"
	EventTypeStockAdjusted       = "StockAdjusted"
	EventTypeStockExpired        = "StockExpired"
	EventTypeReservationExpired  = "ReservationExpired"
)

// StockLevels is the counter snapshot carried by every stock event
type StockLevels struct {
	ItemID         uuid.UUID `json:"item_id"`
	Stock          int64     `json:"stock"`
	ReservedStock  int64     `json:"reserved_stock"`
	TrackInventory bool      `json:"track_inventory"`
	LowStockAlert  int64     `json:"low_stock_alert"`
}

// Available returns stock minus reserved
func (l StockLevels) Available() int64 {
	return l.Stock - l.ReservedStock
}

// IsLow reports whether the snapshot is at or under the alert threshold
func (l StockLevels) IsLow() bool {
	return l.TrackInventory && l.LowStockAlert > 0 && l.Available() <= l.LowStockAlert
}

// LevelsEvent is implemented by events that carry post-mutation levels
type LevelsEvent interface {
	shared.DomainEvent
	Levels() StockLevels
}

type levelsPayload struct {
	After StockLevels `json:"after"`
}

// Levels returns the counters after the mutation
func (p levelsPayload) Levels() StockLevels {
	return p.After
}

// StockReservedEvent is raised when units are reserved for an order
type StockReservedEvent struct {
	shared.BaseDomainEvent
	levelsPayload
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderRef      string    `json:"order_ref"`
	Quantity      int64     `json:"quantity"`
	Tracked       bool      `json:"tracked"`
}

// NewStockReservedEvent creates a StockReservedEvent
func NewStockReservedEvent(r *Reservation, after StockLevels) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, AggregateTypeSellableItem, r.ItemID.String()),
		levelsPayload:   levelsPayload{After: after},
		ReservationID:   r.ID,
		OrderRef:        r.OrderRef,
		Quantity:        r.Quantity,
		Tracked:         r.Tracked,
	}
}

// ReservationReleasedEvent is raised when a reservation gives its units back
type ReservationReleasedEvent struct {
	shared.BaseDomainEvent
	levelsPayload
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderRef      string    `json:"order_ref"`
	Quantity      int64     `json:"quantity"`
}

// NewReservationReleasedEvent creates a ReservationReleasedEvent
func NewReservationReleasedEvent(r *Reservation, after StockLevels) *ReservationReleasedEvent {
	return &ReservationReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationReleased, AggregateTypeSellableItem, r.ItemID.String()),
		levelsPayload:   levelsPayload{After: after},
		ReservationID:   r.ID,
		OrderRef:        r.OrderRef,
		Quantity:        r.Quantity,
	}
}

// SaleConfirmedEvent is raised when reserved units leave the building
type SaleConfirmedEvent struct {
	shared.BaseDomainEvent
	levelsPayload
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderRef      string    `json:"order_ref"`
	Quantity      int64     `json:"quantity"`
}

// NewSaleConfirmedEvent creates a SaleConfirmedEvent
func NewSaleConfirmedEvent(r *Reservation, after StockLevels) *SaleConfirmedEvent {
	return &SaleConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleConfirmed, AggregateTypeSellableItem, r.ItemID.String()),
		levelsPayload:   levelsPayload{After: after},
		ReservationID:   r.ID,
		OrderRef:        r.OrderRef,
		Quantity:        r.Quantity,
	}
}

// StockAdjustedEvent is raised by administrative stock corrections
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	levelsPayload
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id"`
}

// NewStockAdjustedEvent creates a StockAdjustedEvent
func NewStockAdjustedEvent(after StockLevels, delta int64, reason, actorID string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeSellableItem, after.ItemID.String()),
		levelsPayload:   levelsPayload{After: after},
		Delta:           delta,
		Reason:          reason,
		ActorID:         actorID,
	}
}

// StockExpiredEvent is raised when the sweep writes off unreserved units
type StockExpiredEvent struct {
	shared.BaseDomainEvent
	levelsPayload
	ExpiredUnits int64 `json:"expired_units"`
}

// NewStockExpiredEvent creates a StockExpiredEvent
func NewStockExpiredEvent(after StockLevels, expiredUnits int64) *StockExpiredEvent {
	return &StockExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockExpired, AggregateTypeSellableItem, after.ItemID.String()),
		levelsPayload:   levelsPayload{After: after},
		ExpiredUnits:    expiredUnits,
	}
}

// ReservationExpiredEvent is raised when a reservation outlives its TTL and is
// released automatically. Order owners use it to cancel the order.
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
	OrderRef      string    `json:"order_ref"`
	Quantity      int64     `json:"quantity"`
}

// NewReservationExpiredEvent creates a ReservationExpiredEvent
func NewReservationExpiredEvent(r *Reservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationExpired, AggregateTypeSellableItem, r.ItemID.String()),
		ReservationID:   r.ID,
		ItemID:          r.ItemID,
		OrderRef:        r.OrderRef,
		Quantity:        r.Quantity,
	}
}
