package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderLedgerRecordRepository implements order.LedgerRecordRepository using GORM
type GormOrderLedgerRecordRepository struct {
	db *gorm.DB
}

// NewGormOrderLedgerRecordRepository creates a new GormOrderLedgerRecordRepository
func NewGormOrderLedgerRecordRepository(db *gorm.DB) *GormOrderLedgerRecordRepository {
	return &GormOrderLedgerRecordRepository{db: db}
}

// FindByOrderRef finds the record of an order
func (r *GormOrderLedgerRecordRepository) FindByOrderRef(ctx context.Context, orderRef string) (*order.LedgerRecord, error) {
	var model models.OrderLedgerRecordModel
	if err := r.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrLedgerRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a record; the primary key makes a second create fail
func (r *GormOrderLedgerRecordRepository) Create(ctx context.Context, rec *order.LedgerRecord) error {
	if err := r.db.WithContext(ctx).Create(models.OrderLedgerRecordModelFromDomain(rec)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Advance moves the record from `from` to `to` if it is still at `from`
func (r *GormOrderLedgerRecordRepository) Advance(ctx context.Context, orderRef string, from, to order.Status, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderLedgerRecordModel{}).
		Where("order_ref = ? AND status = ?", orderRef, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormOrderLedgerRecordRepository implements order.LedgerRecordRepository
var _ order.LedgerRecordRepository = (*GormOrderLedgerRecordRepository)(nil)

// GormOrderLineItemReader reads line items from the order service's
// order_items table
type GormOrderLineItemReader struct {
	db *gorm.DB
}

// NewGormOrderLineItemReader creates a new GormOrderLineItemReader
func NewGormOrderLineItemReader(db *gorm.DB) *GormOrderLineItemReader {
	return &GormOrderLineItemReader{db: db}
}

// LineItems returns the lines of an order in line order
func (r *GormOrderLineItemReader) LineItems(ctx context.Context, orderRef string) ([]order.LineItem, error) {
	var rows []models.OrderItemModel
	err := r.db.WithContext(ctx).
		Where("order_ref = ?", orderRef).
		Order("line_no ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	lines := make([]order.LineItem, len(rows))
	for i := range rows {
		lines[i] = rows[i].ToDomain()
	}
	return lines, nil
}

// Ensure GormOrderLineItemReader implements order.LineItemReader
var _ order.LineItemReader = (*GormOrderLineItemReader)(nil)
