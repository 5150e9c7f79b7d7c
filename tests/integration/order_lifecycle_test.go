package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	orderapp "github.com/shopcore/stockengine/internal/application/order"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/cache"
	"github.com/shopcore/stockengine/internal/infrastructure/event"
	"github.com/shopcore/stockengine/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBridge(tdb *TestDB) (*orderapp.LifecycleBridge, *stockapp.Ledger) {
	ledger := tdb.NewLedger()
	bridge := orderapp.NewLifecycleBridge(
		ledger,
		persistence.NewGormTransactionScope(tdb.DB),
		persistence.NewGormOrderLedgerRecordRepository(tdb.DB),
		zap.NewNop(),
		orderapp.WithLineItemReader(persistence.NewGormOrderLineItemReader(tdb.DB)),
	)
	return bridge, ledger
}

func statusChanged(ref string, from, to order.Status, lines ...order.LineItem) *order.OrderStatusChangedEvent {
	return order.NewOrderStatusChangedEvent(uuid.NewString(), ref, from, to, lines)
}

func TestOrderLifecycle_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	bridge, ledger := newBridge(tdb)
	ctx := context.Background()

	roses := tdb.SeedItem("ROSE-12", 10, stock.ItemRules{TrackInventory: true})
	vases := tdb.SeedItem("VASE-1", 3, stock.ItemRules{TrackInventory: true})
	cards := tdb.SeedItem("CARD-1", 0, stock.ItemRules{TrackInventory: false})

	t.Run("pending reserves every line", func(t *testing.T) {
		res, err := bridge.Apply(ctx, statusChanged("SO-100", order.StatusNone, order.StatusPending,
			order.LineItem{ItemID: roses.ID, Quantity: 4},
			order.LineItem{ItemID: vases.ID, Quantity: 1},
			order.LineItem{ItemID: cards.ID, Quantity: 1},
		))
		require.NoError(t, err)
		assert.Len(t, res.Reservations, 3)
		assert.Equal(t, int64(4), tdb.Reload(roses.ID).ReservedStock)
		assert.Equal(t, int64(1), tdb.Reload(vases.ID).ReservedStock)
	})

	t.Run("delivered confirms the sale", func(t *testing.T) {
		_, err := bridge.Apply(ctx, statusChanged("SO-100", order.StatusPending, order.StatusConfirmed))
		require.NoError(t, err)
		_, err = bridge.Apply(ctx, statusChanged("SO-100", order.StatusConfirmed, order.StatusDelivered))
		require.NoError(t, err)

		r := tdb.Reload(roses.ID)
		assert.Equal(t, int64(6), r.Stock)
		assert.Zero(t, r.ReservedStock)
		v := tdb.Reload(vases.ID)
		assert.Equal(t, int64(2), v.Stock)
		assert.Zero(t, v.ReservedStock)

		rs, err := ledger.ListOrderReservations(ctx, "SO-100")
		require.NoError(t, err)
		for _, res := range rs {
			assert.Equal(t, stock.ReservationConfirmed, res.State)
		}
	})

	t.Run("terminal order refuses cancellation", func(t *testing.T) {
		_, err := bridge.Apply(ctx, statusChanged("SO-100", order.StatusDelivered, order.StatusCancelled))
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
		assert.Equal(t, int64(6), tdb.Reload(roses.ID).Stock)
	})

	t.Run("failing line leaves no record and no reservation", func(t *testing.T) {
		_, err := bridge.Apply(ctx, statusChanged("SO-101", order.StatusNone, order.StatusPending,
			order.LineItem{ItemID: roses.ID, Quantity: 2},
			order.LineItem{ItemID: vases.ID, Quantity: 5},
		))
		assert.ErrorIs(t, err, stock.ErrInsufficientStock)
		assert.Zero(t, tdb.Reload(roses.ID).ReservedStock)
		assert.Zero(t, tdb.Reload(vases.ID).ReservedStock)

		_, err = persistence.NewGormOrderLedgerRecordRepository(tdb.DB).FindByOrderRef(ctx, "SO-101")
		assert.ErrorIs(t, err, order.ErrLedgerRecordNotFound)
		assert.Zero(t, tdb.CountReservations("SO-101"))
	})
}

func TestOrderLifecycle_DuplicatePendingReservesOnce_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	bridge, _ := newBridge(tdb)
	ctx := context.Background()

	roses := tdb.SeedItem("ROSE-12", 10, stock.ItemRules{TrackInventory: true})

	const deliveries = 8
	var (
		wg      sync.WaitGroup
		applied atomic.Int64
		refused atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := bridge.Apply(ctx, statusChanged("SO-200", order.StatusNone, order.StatusPending,
				order.LineItem{ItemID: roses.ID, Quantity: 3},
			))
			if err == nil {
				applied.Add(1)
			} else if assert.ErrorIs(t, err, order.ErrInvalidTransition) {
				refused.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), applied.Load())
	assert.Equal(t, int64(deliveries-1), refused.Load())
	assert.Equal(t, int64(3), tdb.Reload(roses.ID).ReservedStock)
}

func TestOrderLifecycle_CancelRacesDelivery_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	bridge, _ := newBridge(tdb)
	ctx := context.Background()

	roses := tdb.SeedItem("ROSE-12", 10, stock.ItemRules{TrackInventory: true})
	_, err := bridge.Apply(ctx, statusChanged("SO-300", order.StatusNone, order.StatusPending,
		order.LineItem{ItemID: roses.ID, Quantity: 4},
	))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		delivered atomic.Bool
		cancelled atomic.Bool
	)
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		if _, err := bridge.Apply(ctx, statusChanged("SO-300", order.StatusPending, order.StatusDelivered)); err == nil {
			delivered.Store(true)
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		if _, err := bridge.Apply(ctx, statusChanged("SO-300", order.StatusPending, order.StatusCancelled)); err == nil {
			cancelled.Store(true)
		}
	}()
	close(start)
	wg.Wait()

	require.NotEqual(t, delivered.Load(), cancelled.Load(), "exactly one terminal transition wins")

	item := tdb.Reload(roses.ID)
	assert.Zero(t, item.ReservedStock)
	rec, err := persistence.NewGormOrderLedgerRecordRepository(tdb.DB).FindByOrderRef(ctx, "SO-300")
	require.NoError(t, err)
	if delivered.Load() {
		assert.Equal(t, order.StatusDelivered, rec.Status)
		assert.Equal(t, int64(6), item.Stock)
	} else {
		assert.Equal(t, order.StatusCancelled, rec.Status)
		assert.Equal(t, int64(10), item.Stock)
	}
}

// interleavingScope runs hook once, inside the open transaction, right
// before the first counter update
type interleavingScope struct {
	stockapp.TransactionScope
	once *sync.Once
	hook func()
}

func (s interleavingScope) Execute(ctx context.Context, fn func(repos stockapp.TransactionalRepositories) error) error {
	return s.TransactionScope.Execute(ctx, func(repos stockapp.TransactionalRepositories) error {
		return fn(interleavingRepos{TransactionalRepositories: repos, scope: s})
	})
}

type interleavingRepos struct {
	stockapp.TransactionalRepositories
	scope interleavingScope
}

func (r interleavingRepos) Items() stock.ItemRepository {
	return interleavingItems{ItemRepository: r.TransactionalRepositories.Items(), scope: r.scope}
}

type interleavingItems struct {
	stock.ItemRepository
	scope interleavingScope
}

func (i interleavingItems) ApplyChange(ctx context.Context, change stock.LedgerChange, now time.Time) (*stock.SellableItem, error) {
	i.scope.once.Do(i.scope.hook)
	return i.ItemRepository.ApplyChange(ctx, change, now)
}

func TestOrderLifecycle_CancelDuringCreation_Postgres(t *testing.T) {
	newCreatingBridge := func(tdb *TestDB, hook func()) *orderapp.LifecycleBridge {
		return orderapp.NewLifecycleBridge(
			tdb.NewLedger(),
			interleavingScope{
				TransactionScope: persistence.NewGormTransactionScope(tdb.DB),
				once:             &sync.Once{},
				hook:             hook,
			},
			persistence.NewGormOrderLedgerRecordRepository(tdb.DB),
			zap.NewNop(),
		)
	}

	t.Run("cancel cannot see the order until every line is held", func(t *testing.T) {
		tdb := NewSharedTestDB(t)
		canceller, _ := newBridge(tdb)
		ctx := context.Background()
		roses := tdb.SeedItem("ROSE-12", 5, stock.ItemRules{TrackInventory: true})
		lilies := tdb.SeedItem("LILY-3", 5, stock.ItemRules{TrackInventory: true})

		var cancelErr error
		creator := newCreatingBridge(tdb, func() {
			_, cancelErr = canceller.Apply(ctx, statusChanged("SO-500", order.StatusPending, order.StatusCancelled))
		})

		created, err := creator.Apply(ctx, statusChanged("SO-500", order.StatusNone, order.StatusPending,
			order.LineItem{ItemID: roses.ID, Quantity: 3},
			order.LineItem{ItemID: lilies.ID, Quantity: 1},
		))
		require.NoError(t, err)
		require.Len(t, created.Reservations, 2)
		assert.ErrorIs(t, cancelErr, order.ErrInvalidTransition)

		rec, err := persistence.NewGormOrderLedgerRecordRepository(tdb.DB).FindByOrderRef(ctx, "SO-500")
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, rec.Status)
		assert.Equal(t, int64(3), tdb.Reload(roses.ID).ReservedStock)

		// redelivered cancel now releases every line
		cancelled, err := canceller.Apply(ctx, statusChanged("SO-500", order.StatusPending, order.StatusCancelled))
		require.NoError(t, err)
		assert.Len(t, cancelled.Reservations, 2)
		assert.Zero(t, tdb.Reload(roses.ID).ReservedStock)
		assert.Zero(t, tdb.Reload(lilies.ID).ReservedStock)
	})

	t.Run("failed creation leaves nothing for the cancel", func(t *testing.T) {
		tdb := NewSharedTestDB(t)
		canceller, _ := newBridge(tdb)
		ctx := context.Background()
		roses := tdb.SeedItem("ROSE-12", 5, stock.ItemRules{TrackInventory: true})
		vases := tdb.SeedItem("VASE-1", 1, stock.ItemRules{TrackInventory: true})

		var cancelErr error
		creator := newCreatingBridge(tdb, func() {
			_, cancelErr = canceller.Apply(ctx, statusChanged("SO-501", order.StatusPending, order.StatusCancelled))
		})

		_, err := creator.Apply(ctx, statusChanged("SO-501", order.StatusNone, order.StatusPending,
			order.LineItem{ItemID: roses.ID, Quantity: 3},
			order.LineItem{ItemID: vases.ID, Quantity: 2},
		))
		assert.ErrorIs(t, err, stock.ErrInsufficientStock)
		assert.ErrorIs(t, cancelErr, order.ErrInvalidTransition)

		_, err = persistence.NewGormOrderLedgerRecordRepository(tdb.DB).FindByOrderRef(ctx, "SO-501")
		assert.ErrorIs(t, err, order.ErrLedgerRecordNotFound)
		assert.Zero(t, tdb.CountReservations("SO-501"))
		assert.Zero(t, tdb.Reload(roses.ID).ReservedStock)
	})
}

func TestOrderLifecycle_DeliveryAfterReservationTTL_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	ledger := tdb.NewLedger(
		stockapp.WithReservationTTL(time.Minute),
		stockapp.WithLedgerClock(func() time.Time { return past }),
	)
	bridge := orderapp.NewLifecycleBridge(ledger, persistence.NewGormTransactionScope(tdb.DB),
		persistence.NewGormOrderLedgerRecordRepository(tdb.DB), zap.NewNop())
	roses := tdb.SeedItem("ROSE-12", 5, stock.ItemRules{TrackInventory: true})

	_, err := bridge.Apply(ctx, statusChanged("SO-600", order.StatusNone, order.StatusPending,
		order.LineItem{ItemID: roses.ID, Quantity: 3},
	))
	require.NoError(t, err)

	svc := stockapp.NewReservationExpiryService(persistence.NewGormStockReservationRepository(tdb.DB), ledger, zap.NewNop())
	_, err = svc.ReleaseOverdue(ctx)
	require.NoError(t, err)

	_, err = bridge.Apply(ctx, statusChanged("SO-600", order.StatusPending, order.StatusDelivered))
	assert.ErrorIs(t, err, order.ErrReservationLapsed)
	item := tdb.Reload(roses.ID)
	assert.Equal(t, int64(5), item.Stock)
	assert.Zero(t, item.ReservedStock)
	assert.Zero(t, tdb.CountMovements(roses.ID, stock.MovementConfirmSale))
}

func TestOrderLifecycle_RedeliveredEventIsSkipped_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	bridge, _ := newBridge(tdb)
	ctx := context.Background()

	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	handler := event.NewIdempotentHandler(bridge, store, zap.NewNop(),
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: time.Hour, Enabled: true}))

	roses := tdb.SeedItem("ROSE-12", 10, stock.ItemRules{TrackInventory: true})
	evt := order.NewOrderStatusChangedEvent("evt-400-1", "SO-400", order.StatusNone, order.StatusPending,
		[]order.LineItem{{ItemID: roses.ID, Quantity: 2}})

	require.NoError(t, handler.Handle(ctx, evt))
	require.NoError(t, handler.Handle(ctx, evt))

	assert.Equal(t, int64(2), tdb.Reload(roses.ID).ReservedStock)
	assert.Equal(t, int64(1), tdb.CountMovements(roses.ID, stock.MovementReserve))
}
