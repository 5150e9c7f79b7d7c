package persistence

import (
	"context"

	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos stockapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Items returns the item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Items() stock.ItemRepository {
	return NewGormSellableItemRepository(r.tx)
}

// Reservations returns the reservation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Reservations() stock.ReservationRepository {
	return NewGormStockReservationRepository(r.tx)
}

// Movements returns the movement repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Movements() stock.MovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

// OrderRecords returns the order ledger record repository scoped to the current transaction.
func (r *gormTransactionalRepositories) OrderRecords() order.LedgerRecordRepository {
	return NewGormOrderLedgerRecordRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ stockapp.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ stockapp.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
