package stock

import (
	"time"

	"github.com/google/uuid"
)

// MovementKind classifies an audit log entry
type MovementKind string

const (
	MovementReserve     MovementKind = "RESERVE"
	MovementRelease     MovementKind = "RELEASE"
	MovementConfirmSale MovementKind = "CONFIRM_SALE"
	MovementAdjust      MovementKind = "ADJUST"
	MovementExpire      MovementKind = "EXPIRE"
)

// StockMovement is an append-only audit record of one ledger mutation.
type StockMovement struct {
	ID            uuid.UUID
	ItemID        uuid.UUID
	Kind          MovementKind
	StockDelta    int64
	ReservedDelta int64
	StockAfter    int64
	ReservedAfter int64
	ReservationID *uuid.UUID
	OrderRef      string
	Reason        string
	ActorID       string
	OccurredAt    time.Time
}

// NewStockMovement records change as applied, with the item's counters after it
func NewStockMovement(change LedgerChange, after *SellableItem, occurredAt time.Time) *StockMovement {
	return &StockMovement{
		ID:            uuid.New(),
		ItemID:        change.ItemID,
		Kind:          change.Kind,
		StockDelta:    change.StockDelta,
		ReservedDelta: change.ReservedDelta,
		StockAfter:    after.Stock,
		ReservedAfter: after.ReservedStock,
		OccurredAt:    occurredAt,
	}
}

// ForReservation links the movement to a reservation
func (m *StockMovement) ForReservation(r *Reservation) *StockMovement {
	id := r.ID
	m.ReservationID = &id
	m.OrderRef = r.OrderRef
	return m
}

// WithReason sets reason and actor
func (m *StockMovement) WithReason(reason, actorID string) *StockMovement {
	m.Reason = reason
	m.ActorID = actorID
	return m
}
