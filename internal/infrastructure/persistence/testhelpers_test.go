package persistence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with the stock schema.
// One connection keeps every transaction on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.SellableItemModel{},
		&models.StockReservationModel{},
		&models.StockMovementModel{},
		&models.OrderLedgerRecordModel{},
		&models.OrderItemModel{},
	)
	require.NoError(t, err)
	return db
}

// seedItem stores a tracked item with the given opening stock
func seedItem(t *testing.T, db *gorm.DB, sku string, opening int64, rules stock.ItemRules) *stock.SellableItem {
	t.Helper()
	item, err := stock.NewSellableItem(sku, "Test "+sku, opening, rules)
	require.NoError(t, err)
	require.NoError(t, NewGormSellableItemRepository(db).Create(context.Background(), item))
	return item
}

func tracked() stock.ItemRules {
	return stock.ItemRules{TrackInventory: true}
}

func perishable(exp time.Time) stock.ItemRules {
	return stock.ItemRules{TrackInventory: true, IsPerishable: true, ExpirationDate: &exp}
}

func reload(t *testing.T, db *gorm.DB, item *stock.SellableItem) *stock.SellableItem {
	t.Helper()
	fresh, err := NewGormSellableItemRepository(db).FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	return fresh
}

func countMovements(t *testing.T, db *gorm.DB, item *stock.SellableItem) int64 {
	t.Helper()
	_, total, err := NewGormStockMovementRepository(db).FindByItem(context.Background(), item.ID,
		stock.MovementFilter{Filter: shared.Filter{Page: 1, PageSize: 1}})
	require.NoError(t, err)
	return total
}
