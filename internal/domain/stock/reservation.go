package stock

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
)

// ReservationState is the lifecycle state of a reservation
type ReservationState string

const (
	ReservationLive      ReservationState = "LIVE"
	ReservationReleased  ReservationState = "RELEASED"
	ReservationConfirmed ReservationState = "CONFIRMED"
)

// Reservation is a per-order hold on units of one item.
// Tracked records whether the hold moved the item's reserved counter; only
// tracked reservations give units back on settlement.
type Reservation struct {
	shared.BaseEntity
	ItemID    uuid.UUID
	OrderRef  string
	Quantity  int64
	State     ReservationState
	Tracked   bool
	ExpiresAt *time.Time
	SettledAt *time.Time
}

// NewReservation creates a live reservation. A positive ttl stamps ExpiresAt.
func NewReservation(itemID uuid.UUID, orderRef string, qty int64, tracked bool, ttl time.Duration) (*Reservation, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_REF", "Order reference cannot be empty")
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	r := &Reservation{
		BaseEntity: shared.NewBaseEntity(),
		ItemID:     itemID,
		OrderRef:   orderRef,
		Quantity:   qty,
		State:      ReservationLive,
		Tracked:    tracked,
	}
	if ttl > 0 {
		expiresAt := r.CreatedAt.Add(ttl)
		r.ExpiresAt = &expiresAt
	}
	return r, nil
}

// StartAt restamps the reservation as created at now, carrying its TTL along
func (r *Reservation) StartAt(now time.Time) {
	if r.ExpiresAt != nil {
		expiresAt := now.Add(r.ExpiresAt.Sub(r.CreatedAt))
		r.ExpiresAt = &expiresAt
	}
	r.CreatedAt = now
	r.UpdatedAt = now
}

// IsLive returns true while the reservation holds units
func (r *Reservation) IsLive() bool {
	return r.State == ReservationLive
}

// IsOverdue reports whether a TTL-bound reservation has outlived its window
func (r *Reservation) IsOverdue(now time.Time) bool {
	return r.IsLive() && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Settle moves a live reservation to a terminal state
func (r *Reservation) Settle(to ReservationState, now time.Time) error {
	if to != ReservationReleased && to != ReservationConfirmed {
		return shared.NewDomainError("INVALID_RESERVATION_STATE", "Reservation can only settle as released or confirmed")
	}
	if !r.IsLive() {
		return ErrAlreadyReleased
	}
	r.State = to
	r.SettledAt = &now
	r.UpdatedAt = now
	return nil
}

// SettlementChange is the counter change that settling this reservation as
// `to` applies. The second return is false for untracked reservations.
func (r *Reservation) SettlementChange(to ReservationState) (LedgerChange, bool) {
	if !r.Tracked {
		return LedgerChange{}, false
	}
	if to == ReservationConfirmed {
		return ConfirmSaleChange(r.ItemID, r.Quantity), true
	}
	return ReleaseChange(r.ItemID, r.Quantity), true
}
