package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
)

// ExpiryCursor marks the last expiry candidate of a page
type ExpiryCursor struct {
	ExpirationDate time.Time
	ID             uuid.UUID
}

// CursorAfter returns the cursor positioned on item
func CursorAfter(item *SellableItem) *ExpiryCursor {
	c := &ExpiryCursor{ID: item.ID}
	if item.ExpirationDate != nil {
		c.ExpirationDate = *item.ExpirationDate
	}
	return c
}

// ItemRepository persists sellable items. Counters are written only through
// ApplyChange.
type ItemRepository interface {
	// FindByID returns ErrItemNotFound when the item does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*SellableItem, error)

	FindBySKU(ctx context.Context, sku string) (*SellableItem, error)

	// FindAll pages through items ordered by SKU
	FindAll(ctx context.Context, filter shared.Filter) ([]SellableItem, int64, error)

	// Create inserts a new item; returns ErrDuplicateSKU on SKU conflict
	Create(ctx context.Context, item *SellableItem) error

	// UpdateRules writes rule columns, swept_at and the recomputed in-stock
	// flag without touching stock counters
	UpdateRules(ctx context.Context, item *SellableItem) error

	// ApplyChange executes the guarded update and returns the item as it is
	// after the change. When no row qualifies it returns ErrItemNotFound or the
	// change's Rejection.
	ApplyChange(ctx context.Context, change LedgerChange, now time.Time) (*SellableItem, error)

	// FindExpiryCandidates returns tracked perishable items expiring before
	// cutoff that still hold unreserved units or have not been swept yet,
	// ordered by (expiration date, id) and starting after the cursor if given
	FindExpiryCandidates(ctx context.Context, cutoff time.Time, after *ExpiryCursor, limit int) ([]SellableItem, error)

	// FindLowStock pages through tracked items at or under their alert threshold
	FindLowStock(ctx context.Context, filter shared.Filter) ([]SellableItem, int64, error)

	// Summarize aggregates stock levels in one statement
	Summarize(ctx context.Context) (*Summary, error)
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error

	// FindByID returns ErrReservationNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	FindByOrder(ctx context.Context, orderRef string) ([]Reservation, error)

	FindLiveByOrder(ctx context.Context, orderRef string) ([]Reservation, error)

	// FindOverdue returns live reservations whose TTL ran out before now
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]Reservation, error)

	// Settle moves a LIVE reservation to `to` with a conditional update.
	// Returns ErrReservationNotFound or ErrAlreadyReleased when it is not live.
	Settle(ctx context.Context, id uuid.UUID, to ReservationState, now time.Time) (*Reservation, error)
}

// MovementRepository is the append-only audit log
type MovementRepository interface {
	Append(ctx context.Context, m *StockMovement) error

	// FindByItem pages through an item's movements, newest first
	FindByItem(ctx context.Context, itemID uuid.UUID, filter MovementFilter) ([]StockMovement, int64, error)
}

// MovementFilter narrows a history query
type MovementFilter struct {
	shared.Filter
	Kinds []MovementKind
	From  *time.Time
	To    *time.Time
}
