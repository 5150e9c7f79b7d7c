package order

import (
	"context"
	"time"

	"github.com/shopcore/stockengine/internal/domain/shared"
)

// ErrLedgerRecordNotFound means the ledger has never seen the order
var ErrLedgerRecordNotFound = shared.NewDomainError("ORDER_LEDGER_NOT_FOUND", "Order has no ledger record")

// LedgerRecord remembers the last order status applied to the stock ledger.
// Advancing it is a conditional update, so each transition takes effect once.
type LedgerRecord struct {
	OrderRef  string
	Status    Status
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLedgerRecord starts tracking an order at PENDING
func NewLedgerRecord(orderRef string, now time.Time) *LedgerRecord {
	return &LedgerRecord{
		OrderRef:  orderRef,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LedgerRecordRepository persists ledger records
type LedgerRecordRepository interface {
	// FindByOrderRef returns ErrLedgerRecordNotFound when missing
	FindByOrderRef(ctx context.Context, orderRef string) (*LedgerRecord, error)

	// Create returns shared.ErrAlreadyExists when the order is already tracked
	Create(ctx context.Context, rec *LedgerRecord) error

	// Advance moves the record from `from` to `to` only if it is still at
	// `from`; otherwise shared.ErrConcurrencyConflict
	Advance(ctx context.Context, orderRef string, from, to Status, now time.Time) error
}

// LineItemReader reads an order's lines from the order service's storage
type LineItemReader interface {
	LineItems(ctx context.Context, orderRef string) ([]LineItem, error)
}
