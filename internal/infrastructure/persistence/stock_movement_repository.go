package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements stock.MovementRepository using GORM.
// Rows are only ever inserted.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Append inserts a movement
func (r *GormStockMovementRepository) Append(ctx context.Context, m *stock.StockMovement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(m)).Error
}

// FindByItem pages through an item's movements, newest first
func (r *GormStockMovementRepository) FindByItem(ctx context.Context, itemID uuid.UUID, filter stock.MovementFilter) ([]stock.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("item_id = ?", itemID)

	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		query = query.Where("kind IN ?", kinds)
	}
	if filter.From != nil {
		query = query.Where("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("occurred_at < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.StockMovementModel
	err := query.
		Order("occurred_at DESC").
		Order("id DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]stock.StockMovement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Ensure GormStockMovementRepository implements stock.MovementRepository
var _ stock.MovementRepository = (*GormStockMovementRepository)(nil)
