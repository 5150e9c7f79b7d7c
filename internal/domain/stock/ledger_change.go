package stock

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
)

// CounterSnapshot pins both counters for a compare-and-swap update
type CounterSnapshot struct {
	Stock    int64
	Reserved int64
}

// LedgerChange describes one guarded mutation of an item's counters.
//
// Repositories apply it as a single conditional UPDATE whose predicate is
//
//	reserved_stock + ReservedDelta >= 0 AND stock + StockDelta >= reserved_stock + ReservedDelta
//
// so a change that would break the ledger invariant affects no row.
type LedgerChange struct {
	ItemID        uuid.UUID
	Kind          MovementKind
	StockDelta    int64
	ReservedDelta int64
	// RequireReservable restricts the update to tracked, unswept items.
	RequireReservable bool
	// MarkSwept stamps swept_at and forces is_in_stock to false.
	MarkSwept bool
	// Expect, when set, also requires the counters to still equal the snapshot.
	Expect *CounterSnapshot
}

// ReserveChange moves qty units from available to reserved
func ReserveChange(itemID uuid.UUID, qty int64) LedgerChange {
	return LedgerChange{ItemID: itemID, Kind: MovementReserve, ReservedDelta: qty, RequireReservable: true}
}

// ReleaseChange returns qty reserved units to available
func ReleaseChange(itemID uuid.UUID, qty int64) LedgerChange {
	return LedgerChange{ItemID: itemID, Kind: MovementRelease, ReservedDelta: -qty}
}

// ConfirmSaleChange removes qty sold units from both counters
func ConfirmSaleChange(itemID uuid.UUID, qty int64) LedgerChange {
	return LedgerChange{ItemID: itemID, Kind: MovementConfirmSale, StockDelta: -qty, ReservedDelta: -qty}
}

// AdjustChange changes physical stock by delta
func AdjustChange(itemID uuid.UUID, delta int64) LedgerChange {
	return LedgerChange{ItemID: itemID, Kind: MovementAdjust, StockDelta: delta}
}

// ExpireChange drops the unreserved remainder of a snapshot and marks the
// item swept. Reserved units stay for in-flight orders.
func ExpireChange(itemID uuid.UUID, seen CounterSnapshot) LedgerChange {
	return LedgerChange{
		ItemID:     itemID,
		Kind:       MovementExpire,
		StockDelta: seen.Reserved - seen.Stock,
		MarkSwept:  true,
		Expect:     &seen,
	}
}

// Validate checks the delta signs for the change kind
func (c LedgerChange) Validate() error {
	if c.ItemID == uuid.Nil {
		return shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	switch c.Kind {
	case MovementReserve:
		if c.ReservedDelta <= 0 || c.StockDelta != 0 {
			return ErrInvalidQuantity
		}
	case MovementRelease:
		if c.ReservedDelta >= 0 || c.StockDelta != 0 {
			return ErrInvalidQuantity
		}
	case MovementConfirmSale:
		if c.ReservedDelta >= 0 || c.StockDelta != c.ReservedDelta {
			return ErrInvalidQuantity
		}
	case MovementAdjust:
		if c.StockDelta == 0 || c.ReservedDelta != 0 {
			return shared.NewDomainError("INVALID_DELTA", "Adjustment delta cannot be zero")
		}
	case MovementExpire:
		if c.StockDelta > 0 || c.ReservedDelta != 0 || c.Expect == nil {
			return shared.NewDomainError("INVALID_EXPIRY", "Expiry change requires a counter snapshot")
		}
	default:
		return shared.NewDomainError("INVALID_MOVEMENT_KIND", fmt.Sprintf("Unknown movement kind %q", c.Kind))
	}
	return nil
}

// Rejection explains why the guarded update affected no row, given the item as
// read right after the update. Reservations and adjustments report their own
// error even when the row moved in between; other kinds report a conflict.
func (c LedgerChange) Rejection(item *SellableItem) error {
	if c.RequireReservable {
		if !item.TrackInventory {
			return ErrItemNotTracked
		}
		if item.SweptAt != nil {
			return shared.NewDomainError(CodeInsufficientStock, "Item stock has expired")
		}
	}
	if c.Expect != nil && (item.Stock != c.Expect.Stock || item.ReservedStock != c.Expect.Reserved) {
		return shared.ErrConcurrencyConflict
	}

	reserved := item.ReservedStock + c.ReservedDelta
	stock := item.Stock + c.StockDelta
	switch {
	case reserved < 0:
		return ErrLedgerUnderflow
	case stock < reserved:
		switch c.Kind {
		case MovementReserve:
			return fmt.Errorf("requested %d, available %d: %w", c.ReservedDelta, item.Stock-item.ReservedStock, ErrInsufficientStock)
		case MovementAdjust:
			return fmt.Errorf("stock %d%+d below reserved %d: %w", item.Stock, c.StockDelta, item.ReservedStock, ErrInvalidAdjustment)
		default:
			return ErrLedgerUnderflow
		}
	}

	switch c.Kind {
	case MovementReserve:
		return ErrInsufficientStock
	case MovementAdjust:
		return ErrInvalidAdjustment
	default:
		return shared.ErrConcurrencyConflict
	}
}
