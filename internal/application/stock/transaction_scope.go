package stock

import (
	"context"

	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/stock"
)

// TransactionScope runs ledger work atomically. All repositories handed to fn
// share one database transaction; an error from fn rolls everything back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories scoped to a transaction.
//
// A reservation row, the counter update it implies and its movement entry are
// always written through the same TransactionalRepositories so they commit
// together. OrderRecords lets the order bridge advance an order's ledger status
// in the same transaction as the settlements it triggers.
type TransactionalRepositories interface {
	Items() stock.ItemRepository
	Reservations() stock.ReservationRepository
	Movements() stock.MovementRepository
	OrderRecords() order.LedgerRecordRepository
}

// NoOpTransactionScope runs fn against plain repositories without a
// transaction. Used in unit tests.
type NoOpTransactionScope struct {
	items        stock.ItemRepository
	reservations stock.ReservationRepository
	movements    stock.MovementRepository
	orderRecords order.LedgerRecordRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	items stock.ItemRepository,
	reservations stock.ReservationRepository,
	movements stock.MovementRepository,
	orderRecords order.LedgerRecordRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		items:        items,
		reservations: reservations,
		movements:    movements,
		orderRecords: orderRecords,
	}
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Items() stock.ItemRepository               { return s.items }
func (s *NoOpTransactionScope) Reservations() stock.ReservationRepository { return s.reservations }
func (s *NoOpTransactionScope) Movements() stock.MovementRepository       { return s.movements }
func (s *NoOpTransactionScope) OrderRecords() order.LedgerRecordRepository {
	return s.orderRecords
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
