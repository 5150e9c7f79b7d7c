package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SellableItemSortFields are the columns item listings may be ordered by
var SellableItemSortFields = SortColumns{
	"sku":             true,
	"name":            true,
	"stock":           true,
	"reserved_stock":  true,
	"expiration_date": true,
	"created_at":      true,
	"updated_at":      true,
}

// GormSellableItemRepository implements stock.ItemRepository using GORM
type GormSellableItemRepository struct {
	db *gorm.DB
}

// NewGormSellableItemRepository creates a new GormSellableItemRepository
func NewGormSellableItemRepository(db *gorm.DB) *GormSellableItemRepository {
	return &GormSellableItemRepository{db: db}
}

// FindByID finds an item by ID
func (r *GormSellableItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.SellableItem, error) {
	var model models.SellableItemModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stock.ErrItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySKU finds an item by SKU
func (r *GormSellableItemRepository) FindBySKU(ctx context.Context, sku string) (*stock.SellableItem, error) {
	var model models.SellableItemModel
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stock.ErrItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll pages through all items
func (r *GormSellableItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]stock.SellableItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SellableItemModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SellableItemModel
	if err := r.applyFilter(query, filter, "sku", "ASC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toItems(rows), total, nil
}

// Create inserts a new item
func (r *GormSellableItemRepository) Create(ctx context.Context, item *stock.SellableItem) error {
	model := models.SellableItemModelFromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return stock.ErrDuplicateSKU
		}
		return err
	}
	return nil
}

// UpdateRules writes the rule columns. is_in_stock is recomputed from the
// stored counters so a concurrent ledger mutation is never overwritten.
func (r *GormSellableItemRepository) UpdateRules(ctx context.Context, item *stock.SellableItem) error {
	result := r.db.WithContext(ctx).
		Model(&models.SellableItemModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"name":                item.Name,
			"track_inventory":     item.TrackInventory,
			"low_stock_alert":     item.LowStockAlert,
			"is_perishable":       item.IsPerishable,
			"expiration_date":     item.ExpirationDate,
			"production_date":     item.ProductionDate,
			"advance_order_days":  item.AdvanceOrderDays,
			"delivery_time_hours": item.DeliveryTimeHours,
			"delivery_time_days":  item.DeliveryTimeDays,
			"unit_name":           item.UnitName,
			"unit_price":          item.UnitPrice,
			"swept_at":            item.SweptAt,
			"is_in_stock":         gorm.Expr("(NOT ?) OR (stock > 0 AND ?)", item.TrackInventory, item.SweptAt == nil),
			"version":             gorm.Expr("version + 1"),
			"updated_at":          item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stock.ErrItemNotFound
	}
	return nil
}

// ApplyChange executes the guarded conditional update.
//
//	UPDATE sellable_items
//	   SET stock = stock + ds, reserved_stock = reserved_stock + dr, ...
//	 WHERE id = ?
//	   AND reserved_stock + dr >= 0
//	   AND stock + ds >= reserved_stock + dr
//
// The predicate is evaluated against the row under the database's row lock,
// so two writers racing for the same units serialize and at most one sees a
// qualifying row.
func (r *GormSellableItemRepository) ApplyChange(ctx context.Context, change stock.LedgerChange, now time.Time) (*stock.SellableItem, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"stock":          gorm.Expr("stock + ?", change.StockDelta),
		"reserved_stock": gorm.Expr("reserved_stock + ?", change.ReservedDelta),
		"is_in_stock":    gorm.Expr("(NOT track_inventory) OR (stock + ? > 0 AND swept_at IS NULL)", change.StockDelta),
		"version":        gorm.Expr("version + 1"),
		"updated_at":     now,
	}
	if change.MarkSwept {
		updates["is_in_stock"] = false
		updates["swept_at"] = now
	}

	query := r.db.WithContext(ctx).
		Model(&models.SellableItemModel{}).
		Where("id = ?", change.ItemID).
		Where("reserved_stock + ? >= 0", change.ReservedDelta).
		Where("stock + ? >= reserved_stock + ?", change.StockDelta, change.ReservedDelta)
	if change.RequireReservable {
		query = query.Where("track_inventory = ? AND swept_at IS NULL", true)
	}
	if change.Expect != nil {
		query = query.Where("stock = ? AND reserved_stock = ?", change.Expect.Stock, change.Expect.Reserved)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}

	item, err := r.FindByID(ctx, change.ItemID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, change.Rejection(item)
	}
	return item, nil
}

// FindExpiryCandidates returns tracked perishable items expiring before cutoff
// that are unswept or hold unreserved units again, one keyset page at a time
func (r *GormSellableItemRepository) FindExpiryCandidates(
	ctx context.Context,
	cutoff time.Time,
	after *stock.ExpiryCursor,
	limit int,
) ([]stock.SellableItem, error) {
	query := r.db.WithContext(ctx).
		Where("track_inventory = ? AND is_perishable = ?", true, true).
		Where("expiration_date IS NOT NULL AND expiration_date < ?", cutoff).
		Where("swept_at IS NULL OR stock > reserved_stock")
	if after != nil {
		query = query.Where("expiration_date > ? OR (expiration_date = ? AND id > ?)",
			after.ExpirationDate, after.ExpirationDate, after.ID)
	}

	var rows []models.SellableItemModel
	err := query.
		Order("expiration_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// FindLowStock pages through tracked items whose available stock is at or
// under their alert threshold, scarcest first
func (r *GormSellableItemRepository) FindLowStock(ctx context.Context, filter shared.Filter) ([]stock.SellableItem, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SellableItemModel{}).
		Where("track_inventory = ? AND low_stock_alert > 0", true).
		Where("stock - reserved_stock <= low_stock_alert")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SellableItemModel
	err := query.
		Order("stock - reserved_stock ASC").
		Order("sku ASC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return toItems(rows), total, nil
}

// summaryRow receives the aggregate statement's result
type summaryRow struct {
	TotalItems    int64
	TrackedItems  int64
	InStock       int64
	OutOfStock    int64
	LowStock      int64
	StockUnits    int64
	ReservedUnits int64
	Valuation     decimal.Decimal
}

const summarySQL = `
SELECT
	COUNT(*) AS total_items,
	COALESCE(SUM(CASE WHEN track_inventory THEN 1 ELSE 0 END), 0) AS tracked_items,
	COALESCE(SUM(CASE WHEN is_in_stock THEN 1 ELSE 0 END), 0) AS in_stock,
	COALESCE(SUM(CASE WHEN is_in_stock THEN 0 ELSE 1 END), 0) AS out_of_stock,
	COALESCE(SUM(CASE WHEN track_inventory AND low_stock_alert > 0
		AND stock - reserved_stock <= low_stock_alert THEN 1 ELSE 0 END), 0) AS low_stock,
	COALESCE(SUM(CASE WHEN track_inventory THEN stock ELSE 0 END), 0) AS stock_units,
	COALESCE(SUM(CASE WHEN track_inventory THEN reserved_stock ELSE 0 END), 0) AS reserved_units,
	COALESCE(SUM(CASE WHEN track_inventory THEN stock * unit_price ELSE 0 END), 0) AS valuation
FROM sellable_items`

// Summarize aggregates stock levels in one statement, so the counts come from
// a single point in time
func (r *GormSellableItemRepository) Summarize(ctx context.Context) (*stock.Summary, error) {
	var row summaryRow
	if err := r.db.WithContext(ctx).Raw(summarySQL).Scan(&row).Error; err != nil {
		return nil, err
	}
	return &stock.Summary{
		TotalItems:     row.TotalItems,
		TrackedItems:   row.TrackedItems,
		InStock:        row.InStock,
		OutOfStock:     row.OutOfStock,
		LowStock:       row.LowStock,
		StockUnits:     row.StockUnits,
		ReservedUnits:  row.ReservedUnits,
		AvailableUnits: row.StockUnits - row.ReservedUnits,
		Valuation:      row.Valuation,
	}, nil
}

func (r *GormSellableItemRepository) applyFilter(query *gorm.DB, filter shared.Filter, defaultField, defaultDir string) *gorm.DB {
	return query.
		Order(SellableItemSortFields.OrderClause(filter.OrderBy, filter.OrderDir, defaultField, defaultDir)).
		Order("id ASC").
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

func toItems(rows []models.SellableItemModel) []stock.SellableItem {
	items := make([]stock.SellableItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items
}

// Ensure GormSellableItemRepository implements stock.ItemRepository
var _ stock.ItemRepository = (*GormSellableItemRepository)(nil)
