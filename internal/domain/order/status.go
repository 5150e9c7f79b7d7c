package order

import (
	"fmt"

	"github.com/shopcore/stockengine/internal/domain/shared"
)

// Status is the order status as published by the order service
type Status string

const (
	// StatusNone stands for "no status applied yet"
	StatusNone       Status = ""
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// CodeInvalidTransition is returned for transitions out of a terminal state
// or that skip the initial PENDING step.
const CodeInvalidTransition = "INVALID_TRANSITION"

// ErrInvalidTransition is the sentinel for rejected transitions
var ErrInvalidTransition = shared.NewDomainError(CodeInvalidTransition, "Invalid order status transition")

// CodeReservationLapsed is returned when an order is delivered after one of
// its reservations was released, for example by the reservation TTL.
const CodeReservationLapsed = "RESERVATION_LAPSED"

// ErrReservationLapsed is the sentinel for deliveries of orders whose stock
// is no longer held
var ErrReservationLapsed = shared.NewDomainError(CodeReservationLapsed, "Order reservations were released before delivery")

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNone, StatusPending, StatusConfirmed, StatusProcessing, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", shared.NewDomainError("INVALID_ORDER_STATUS", fmt.Sprintf("Unknown order status %q", s))
	}
}

// IsTerminal reports whether no further transition is accepted
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsOpen reports whether the order holds live reservations
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusProcessing
}

// LedgerEffect is what a transition does to the stock ledger
type LedgerEffect int

const (
	EffectNone LedgerEffect = iota
	EffectReserve
	EffectConfirmSale
	EffectRelease
)

func (e LedgerEffect) String() string {
	switch e {
	case EffectReserve:
		return "reserve"
	case EffectConfirmSale:
		return "confirm_sale"
	case EffectRelease:
		return "release"
	default:
		return "none"
	}
}

// EffectOf returns the single ledger effect of moving from `from` to `to`.
// `from` is the last status applied to the ledger, not what the event claims.
func EffectOf(from, to Status) (LedgerEffect, error) {
	if from.IsTerminal() {
		return EffectNone, shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Order is already %s; cannot move to %s", from, to))
	}
	if from == StatusNone {
		if to != StatusPending {
			return EffectNone, shared.NewDomainError(CodeInvalidTransition,
				fmt.Sprintf("Order must enter %s before %s", StatusPending, to))
		}
		return EffectReserve, nil
	}

	switch to {
	case StatusDelivered:
		return EffectConfirmSale, nil
	case StatusCancelled:
		return EffectRelease, nil
	case StatusConfirmed, StatusProcessing:
		if to == from {
			return EffectNone, shared.NewDomainError(CodeInvalidTransition,
				fmt.Sprintf("Order is already %s", from))
		}
		return EffectNone, nil
	default:
		return EffectNone, shared.NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("Cannot move order from %s to %s", from, to))
	}
}
