// Package integration runs the stock ledger against a real PostgreSQL
// started with testcontainers. Every test skips under -short.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/migration"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence"
	"github.com/shopcore/stockengine/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated PostgreSQL database for one test
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

func runContainer(ctx context.Context, dbName string) (testcontainers.Container, string, error) {
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("stock123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, "", err
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, dsn, nil
}

// NewTestDB starts a dedicated PostgreSQL container and applies the
// embedded migrations.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	container, dsn, err := runContainer(context.Background(), "stock_test")
	require.NoError(t, err, "Failed to start PostgreSQL container")

	db, sqlDB := connectToDatabase(t, dsn)
	runMigrations(t, sqlDB)

	tdb := &TestDB{DB: db, SqlDB: sqlDB, Container: container, DSN: dsn, t: t}
	t.Cleanup(tdb.Close)
	return tdb
}

// NewSharedTestDB connects to a container shared by the package. Tables are
// truncated before the test runs.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	sharedContainerMu.Lock()
	if sharedContainer == nil {
		container, dsn, err := runContainer(context.Background(), "stock_shared_test")
		if err != nil {
			sharedContainerMu.Unlock()
			require.NoError(t, err, "Failed to start shared PostgreSQL container")
		}
		_, sqlDB := connectToDatabase(t, dsn)
		runMigrations(t, sqlDB)
		_ = sqlDB.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}
	dsn := sharedContainerDSN
	container := sharedContainer
	sharedContainerMu.Unlock()

	db, sqlDB := connectToDatabase(t, dsn)
	tdb := &TestDB{DB: db, SqlDB: sqlDB, Container: container, DSN: dsn, t: t}
	tdb.CleanTables()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return tdb
}

// Close closes the connection and terminates a dedicated container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil && tdb.Container != sharedContainer {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// CleanTables truncates every ledger table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// SeedItem registers an item with opening stock
func (tdb *TestDB) SeedItem(sku string, opening int64, rules stock.ItemRules) *stock.SellableItem {
	tdb.t.Helper()
	item, err := stock.NewSellableItem(sku, "Test "+sku, opening, rules)
	require.NoError(tdb.t, err)
	require.NoError(tdb.t, persistence.NewGormSellableItemRepository(tdb.DB).Create(context.Background(), item))
	return item
}

// Reload reads the item back from the database
func (tdb *TestDB) Reload(id uuid.UUID) *stock.SellableItem {
	tdb.t.Helper()
	item, err := persistence.NewGormSellableItemRepository(tdb.DB).FindByID(context.Background(), id)
	require.NoError(tdb.t, err)
	return item
}

// CountMovements counts audit rows of one kind for an item
func (tdb *TestDB) CountMovements(itemID uuid.UUID, kind stock.MovementKind) int64 {
	tdb.t.Helper()
	var n int64
	err := tdb.DB.Table("stock_movements").
		Where("item_id = ? AND kind = ?", itemID, string(kind)).
		Count(&n).Error
	require.NoError(tdb.t, err)
	return n
}

// CountReservations counts reservation records of an order in any state
func (tdb *TestDB) CountReservations(orderRef string) int64 {
	tdb.t.Helper()
	var n int64
	err := tdb.DB.Table("stock_reservations").Where("order_ref = ?", orderRef).Count(&n).Error
	require.NoError(tdb.t, err)
	return n
}

// NewLedger wires a ledger over the database
func (tdb *TestDB) NewLedger(opts ...stockapp.LedgerOption) *stockapp.Ledger {
	return stockapp.NewLedger(
		persistence.NewGormSellableItemRepository(tdb.DB),
		persistence.NewGormStockReservationRepository(tdb.DB),
		persistence.NewGormStockMovementRepository(tdb.DB),
		persistence.NewGormTransactionScope(tdb.DB),
		zap.NewNop(),
		opts...,
	)
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get sql.DB")
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")
}
