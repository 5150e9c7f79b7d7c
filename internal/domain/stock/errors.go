package stock

import "github.com/shopcore/stockengine/internal/domain/shared"

// Ledger error codes. They are stable and part of the HTTP contract.
const (
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeItemNotFound         = "ITEM_NOT_FOUND"
	CodeItemNotTracked       = "ITEM_NOT_TRACKED"
	CodeAlreadyReleased      = "ALREADY_RELEASED"
	CodeReservationNotFound  = "RESERVATION_NOT_FOUND"
	CodeExpired              = "EXPIRED"
	CodeInsufficientLeadTime = "INSUFFICIENT_LEAD_TIME"
	CodeLedgerUnderflow      = "LEDGER_UNDERFLOW"
	CodeInvalidAdjustment    = "INVALID_ADJUSTMENT"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeDuplicateSKU         = "DUPLICATE_SKU"
)

var (
	ErrInsufficientStock = shared.NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrItemNotFound      = shared.NewDomainError(CodeItemNotFound, "Sellable item not found")
	// ErrItemNotTracked is a signal, not a failure: untracked items are always
	// reservable and the ledger records the reservation without counters.
	ErrItemNotTracked       = shared.NewDomainError(CodeItemNotTracked, "Item does not track inventory")
	ErrAlreadyReleased      = shared.NewDomainError(CodeAlreadyReleased, "Reservation is already settled")
	ErrReservationNotFound  = shared.NewDomainError(CodeReservationNotFound, "Reservation not found")
	ErrExpired              = shared.NewDomainError(CodeExpired, "Item is past its expiration date")
	ErrInsufficientLeadTime = shared.NewDomainError(CodeInsufficientLeadTime, "Delivery date does not satisfy the advance order window")
	ErrLedgerUnderflow      = shared.NewDomainError(CodeLedgerUnderflow, "Ledger counter would underflow")
	ErrInvalidAdjustment    = shared.NewDomainError(CodeInvalidAdjustment, "Adjustment would drop stock below reserved stock")
	ErrInvalidQuantity      = shared.NewDomainError(CodeInvalidQuantity, "Quantity must be positive")
	ErrDuplicateSKU         = shared.NewDomainError(CodeDuplicateSKU, "An item with this SKU already exists")
)
