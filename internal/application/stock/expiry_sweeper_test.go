package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func perishableItem(stockQty, reserved int64, exp time.Time) *stock.SellableItem {
	item, err := stock.NewSellableItem("TULIP-5", "Tulips", stockQty, stock.ItemRules{
		TrackInventory: true,
		IsPerishable:   true,
		ExpirationDate: &exp,
	})
	if err != nil {
		panic(err)
	}
	item.ReservedStock = reserved
	return item
}

func swept(item *stock.SellableItem, at time.Time) *stock.SellableItem {
	c := withCounters(item, item.ReservedStock, item.ReservedStock)
	c.SweptAt = &at
	c.RecomputeInStock()
	return c
}

func newTestSweeper(f *ledgerFixture) *ExpirySweeper {
	s := NewExpirySweeper(f.items, f.scope, stock.DefaultExpiryPolicy(), zap.NewNop(), WithSweepClock(f.clock))
	s.SetEventBus(f.bus)
	return s
}

func TestExpirySweeper_NoCandidates(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, defaultSweepBatchSize).Return([]stock.SellableItem{}, nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scanned)
	assert.Equal(t, time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC), stats.Cutoff)
}

func TestExpirySweeper_ZeroesUnreservedStock(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)
	item := perishableItem(8, 0, f.now.AddDate(0, 0, -1))
	seen := stock.CounterSnapshot{Stock: 8, Reserved: 0}

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, defaultSweepBatchSize).Return([]stock.SellableItem{*item}, nil)
	f.items.On("ApplyChange", mock.Anything, stock.ExpireChange(item.ID, seen), f.now).Return(swept(item, f.now), nil)
	f.movements.On("Append", mock.Anything, mock.MatchedBy(func(m *stock.StockMovement) bool {
		return m.Kind == stock.MovementExpire && m.StockDelta == -8 && m.StockAfter == 0 &&
			m.Reason == "expired" && m.ActorID == "system:expiry-sweeper"
	})).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		e, ok := events[0].(*stock.StockExpiredEvent)
		return ok && e.ExpiredUnits == 8
	})).Return(nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, int64(8), stats.ExpiredUnits)
	f.items.AssertExpectations(t)
	f.movements.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

func TestExpirySweeper_KeepsReservedUnits(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)
	item := perishableItem(10, 4, f.now.AddDate(0, 0, -2))
	seen := stock.CounterSnapshot{Stock: 10, Reserved: 4}

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, defaultSweepBatchSize).Return([]stock.SellableItem{*item}, nil)
	f.items.On("ApplyChange", mock.Anything, stock.ExpireChange(item.ID, seen), f.now).Return(swept(item, f.now), nil)
	f.movements.On("Append", mock.Anything, mock.MatchedBy(func(m *stock.StockMovement) bool {
		return m.StockDelta == -6 && m.StockAfter == 4 && m.ReservedAfter == 4
	})).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.ExpiredUnits)
	f.movements.AssertExpectations(t)
}

func TestExpirySweeper_SameDayExpiry(t *testing.T) {
	f := newLedgerFixture()
	today := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	item := perishableItem(3, 0, today)

	t.Run("reject sweeps items expiring today", func(t *testing.T) {
		sweeper := newTestSweeper(f)
		assert.True(t, item.IsExpired(sweeper.policy, f.now))
	})

	t.Run("allow keeps items expiring today", func(t *testing.T) {
		g := newLedgerFixture()
		sweeper := NewExpirySweeper(g.items, g.scope, stock.ExpiryPolicy{SameDay: stock.SameDayAllow}, zap.NewNop(), WithSweepClock(g.clock))

		g.items.On("FindExpiryCandidates", mock.Anything, today, mock.Anything, defaultSweepBatchSize).Return([]stock.SellableItem{*item}, nil)

		stats, err := sweeper.Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Scanned)
		assert.Equal(t, 0, stats.Expired)
		g.items.AssertNotCalled(t, "ApplyChange", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExpirySweeper_RetriesOnConflict(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)
	item := perishableItem(10, 2, f.now.AddDate(0, 0, -1))
	// a reservation lands between the read and the update
	reread := withCounters(item, 10, 3)

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, defaultSweepBatchSize).Return([]stock.SellableItem{*item}, nil)
	f.items.On("ApplyChange", mock.Anything, stock.ExpireChange(item.ID, stock.CounterSnapshot{Stock: 10, Reserved: 2}), f.now).
		Return(nil, shared.ErrConcurrencyConflict).Once()
	f.items.On("FindByID", mock.Anything, item.ID).Return(reread, nil).Once()
	f.items.On("ApplyChange", mock.Anything, stock.ExpireChange(item.ID, stock.CounterSnapshot{Stock: 10, Reserved: 3}), f.now).
		Return(swept(reread, f.now), nil).Once()
	f.movements.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, int64(7), stats.ExpiredUnits)
	assert.Equal(t, 0, stats.Conflicts)
	f.items.AssertExpectations(t)
}

func TestExpirySweeper_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)
	item := perishableItem(10, 2, f.now.AddDate(0, 0, -1))

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, defaultSweepBatchSize).Return([]stock.SellableItem{*item}, nil)
	f.items.On("ApplyChange", mock.Anything, mock.Anything, f.now).Return(nil, shared.ErrConcurrencyConflict)
	f.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, 0, stats.Expired)
	f.items.AssertNumberOfCalls(t, "ApplyChange", defaultSweepMaxAttempts)
	f.movements.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestExpirySweeper_ContinuesAfterFailure(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)
	broken := perishableItem(4, 0, f.now.AddDate(0, 0, -1))
	healthy := perishableItem(5, 0, f.now.AddDate(0, 0, -1))

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, defaultSweepBatchSize).
		Return([]stock.SellableItem{*broken, *healthy}, nil)
	f.items.On("ApplyChange", mock.Anything, mock.MatchedBy(func(c stock.LedgerChange) bool { return c.ItemID == broken.ID }), f.now).
		Return(nil, errors.New("connection reset"))
	f.items.On("ApplyChange", mock.Anything, mock.MatchedBy(func(c stock.LedgerChange) bool { return c.ItemID == healthy.ID }), f.now).
		Return(swept(healthy, f.now), nil)
	f.movements.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.Failed)
}

func TestExpirySweeper_CandidateQueryFails(t *testing.T) {
	f := newLedgerFixture()
	sweeper := newTestSweeper(f)

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	stats, err := sweeper.Sweep(context.Background())

	assert.Error(t, err)
	assert.Nil(t, stats)
}

func TestExpirySweeper_PagesPastFailingItems(t *testing.T) {
	f := newLedgerFixture()
	sweeper := NewExpirySweeper(f.items, f.scope, stock.DefaultExpiryPolicy(), zap.NewNop(),
		WithSweepClock(f.clock), WithSweepBatchSize(2))
	sweeper.SetEventBus(f.bus)
	exp := f.now.AddDate(0, 0, -3)
	first := perishableItem(4, 0, exp)
	second := perishableItem(4, 0, exp)
	later := perishableItem(6, 0, f.now.AddDate(0, 0, -1))

	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything, (*stock.ExpiryCursor)(nil), 2).
		Return([]stock.SellableItem{*first, *second}, nil).Once()
	f.items.On("FindExpiryCandidates", mock.Anything, mock.Anything,
		mock.MatchedBy(func(c *stock.ExpiryCursor) bool {
			return c != nil && c.ID == second.ID && c.ExpirationDate.Equal(exp)
		}), 2).
		Return([]stock.SellableItem{*later}, nil).Once()
	f.items.On("ApplyChange", mock.Anything, mock.MatchedBy(func(c stock.LedgerChange) bool {
		return c.ItemID == first.ID || c.ItemID == second.ID
	}), f.now).Return(nil, errors.New("connection reset"))
	f.items.On("ApplyChange", mock.Anything, mock.MatchedBy(func(c stock.LedgerChange) bool { return c.ItemID == later.ID }), f.now).
		Return(swept(later, f.now), nil)
	f.movements.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	stats, err := sweeper.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, int64(6), stats.ExpiredUnits)
	f.items.AssertExpectations(t)
}
