package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(f *ledgerFixture, opts ...LedgerOption) *Ledger {
	opts = append([]LedgerOption{WithLedgerClock(f.clock)}, opts...)
	l := NewLedger(f.items, f.reservations, f.movements, f.scope, zap.NewNop(), opts...)
	l.SetEventBus(f.bus)
	return l
}

func TestLedger_Reserve_Tracked(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(10, 0, true)
	after := withCounters(item, 10, 3)

	f.items.On("ApplyChange", mock.Anything, stock.ReserveChange(item.ID, 3), f.now).Return(after, nil)
	f.reservations.On("Create", mock.Anything, mock.MatchedBy(func(r *stock.Reservation) bool {
		return r.ItemID == item.ID && r.Quantity == 3 && r.OrderRef == "SO-1" && r.Tracked && r.IsLive()
	})).Return(nil)
	f.movements.On("Append", mock.Anything, mock.MatchedBy(func(m *stock.StockMovement) bool {
		return m.Kind == stock.MovementReserve && m.ReservedDelta == 3 && m.ReservedAfter == 3 && m.OrderRef == "SO-1"
	})).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == stock.EventTypeStockReserved
	})).Return(nil)

	resp, err := ledger.Reserve(context.Background(), item.ID, ReserveRequest{Quantity: 3, OrderRef: "SO-1"})

	require.NoError(t, err)
	assert.Equal(t, stock.ReservationLive, resp.State)
	assert.True(t, resp.Tracked)
	assert.Nil(t, resp.ExpiresAt)
	f.items.AssertExpectations(t)
	f.reservations.AssertExpectations(t)
	f.movements.AssertExpectations(t)
	f.bus.AssertExpectations(t)
}

func TestLedger_Reserve_Untracked(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(0, 0, false)

	f.items.On("ApplyChange", mock.Anything, mock.Anything, f.now).Return(nil, stock.ErrItemNotTracked)
	f.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
	f.reservations.On("Create", mock.Anything, mock.MatchedBy(func(r *stock.Reservation) bool {
		return !r.Tracked
	})).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	resp, err := ledger.Reserve(context.Background(), item.ID, ReserveRequest{Quantity: 1000, OrderRef: "SO-2"})

	require.NoError(t, err)
	assert.False(t, resp.Tracked)
	assert.Equal(t, int64(1000), resp.Quantity)
	f.movements.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLedger_Reserve_InsufficientStock(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	itemID := uuid.New()
	refusal := errors.New("requested 4, available 3")

	f.items.On("ApplyChange", mock.Anything, stock.ReserveChange(itemID, 4), f.now).
		Return(nil, errors.Join(refusal, stock.ErrInsufficientStock))

	resp, err := ledger.Reserve(context.Background(), itemID, ReserveRequest{Quantity: 4, OrderRef: "SO-3"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)
	f.reservations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestLedger_Reserve_ItemNotFound(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	itemID := uuid.New()

	f.items.On("ApplyChange", mock.Anything, mock.Anything, f.now).Return(nil, stock.ErrItemNotFound)

	_, err := ledger.Reserve(context.Background(), itemID, ReserveRequest{Quantity: 1, OrderRef: "SO-4"})

	assert.ErrorIs(t, err, stock.ErrItemNotFound)
}

func TestLedger_Reserve_RejectsNonPositiveQuantity(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)

	for _, qty := range []int64{0, -2} {
		_, err := ledger.Reserve(context.Background(), uuid.New(), ReserveRequest{Quantity: qty, OrderRef: "SO-5"})
		assert.ErrorIs(t, err, stock.ErrInvalidQuantity)
	}
	f.items.AssertNotCalled(t, "ApplyChange", mock.Anything, mock.Anything, mock.Anything)
}

func TestLedger_Reserve_WithTTL(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f, WithReservationTTL(30*time.Minute))
	item := testItem(5, 0, true)

	f.items.On("ApplyChange", mock.Anything, mock.Anything, f.now).Return(withCounters(item, 5, 1), nil)
	f.reservations.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.movements.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	resp, err := ledger.Reserve(context.Background(), item.ID, ReserveRequest{Quantity: 1, OrderRef: "SO-6"})

	require.NoError(t, err)
	require.NotNil(t, resp.ExpiresAt)
	assert.WithinDuration(t, resp.CreatedAt.Add(30*time.Minute), *resp.ExpiresAt, time.Second)
}

func TestLedger_Reserve_PublishFailureDoesNotFail(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(5, 0, true)

	f.items.On("ApplyChange", mock.Anything, mock.Anything, f.now).Return(withCounters(item, 5, 2), nil)
	f.reservations.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.movements.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus stopped"))

	resp, err := ledger.Reserve(context.Background(), item.ID, ReserveRequest{Quantity: 2, OrderRef: "SO-7"})

	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Quantity)
}

func liveReservation(itemID uuid.UUID, qty int64, tracked bool) *stock.Reservation {
	r, err := stock.NewReservation(itemID, "SO-100", qty, tracked, 0)
	if err != nil {
		panic(err)
	}
	return r
}

func settled(r *stock.Reservation, to stock.ReservationState, at time.Time) *stock.Reservation {
	c := *r
	_ = c.Settle(to, at)
	return &c
}

func TestLedger_Release(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(10, 3, true)
	r := liveReservation(item.ID, 3, true)

	f.reservations.On("Settle", mock.Anything, r.ID, stock.ReservationReleased, f.now).
		Return(settled(r, stock.ReservationReleased, f.now), nil)
	f.items.On("ApplyChange", mock.Anything, stock.ReleaseChange(item.ID, 3), f.now).
		Return(withCounters(item, 10, 0), nil)
	f.movements.On("Append", mock.Anything, mock.MatchedBy(func(m *stock.StockMovement) bool {
		return m.Kind == stock.MovementRelease && m.ReservedDelta == -3 && *m.ReservationID == r.ID
	})).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == stock.EventTypeReservationReleased
	})).Return(nil)

	resp, err := ledger.Release(context.Background(), r.ID)

	require.NoError(t, err)
	assert.Equal(t, stock.ReservationReleased, resp.State)
	assert.NotNil(t, resp.SettledAt)
	f.items.AssertExpectations(t)
	f.movements.AssertExpectations(t)
}

func TestLedger_Release_Twice(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	id := uuid.New()

	f.reservations.On("Settle", mock.Anything, id, stock.ReservationReleased, f.now).Return(nil, stock.ErrAlreadyReleased)

	_, err := ledger.Release(context.Background(), id)

	assert.ErrorIs(t, err, stock.ErrAlreadyReleased)
	f.items.AssertNotCalled(t, "ApplyChange", mock.Anything, mock.Anything, mock.Anything)
	f.movements.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLedger_Release_UnknownReservation(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	id := uuid.New()

	f.reservations.On("Settle", mock.Anything, id, stock.ReservationReleased, f.now).Return(nil, stock.ErrReservationNotFound)

	_, err := ledger.Release(context.Background(), id)

	assert.ErrorIs(t, err, stock.ErrReservationNotFound)
}

func TestLedger_Release_Untracked(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(0, 0, false)
	r := liveReservation(item.ID, 4, false)

	f.reservations.On("Settle", mock.Anything, r.ID, stock.ReservationReleased, f.now).
		Return(settled(r, stock.ReservationReleased, f.now), nil)
	f.items.On("FindByID", mock.Anything, item.ID).Return(item, nil)
	f.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	resp, err := ledger.Release(context.Background(), r.ID)

	require.NoError(t, err)
	assert.Equal(t, stock.ReservationReleased, resp.State)
	f.items.AssertNotCalled(t, "ApplyChange", mock.Anything, mock.Anything, mock.Anything)
	f.movements.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLedger_ConfirmSale_KeepsAvailable(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(10, 3, true)
	r := liveReservation(item.ID, 3, true)
	after := withCounters(item, 7, 0)

	f.reservations.On("Settle", mock.Anything, r.ID, stock.ReservationConfirmed, f.now).
		Return(settled(r, stock.ReservationConfirmed, f.now), nil)
	f.items.On("ApplyChange", mock.Anything, stock.ConfirmSaleChange(item.ID, 3), f.now).Return(after, nil)
	f.movements.On("Append", mock.Anything, mock.Anything).Return(nil)

	var published shared.DomainEvent
	f.bus.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = args.Get(1).([]shared.DomainEvent)[0]
	}).Return(nil)

	resp, err := ledger.ConfirmSale(context.Background(), r.ID)

	require.NoError(t, err)
	assert.Equal(t, stock.ReservationConfirmed, resp.State)
	assert.Equal(t, item.Availability(), after.Availability())

	confirmed, ok := published.(*stock.SaleConfirmedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(7), confirmed.Levels().Stock)
	assert.Equal(t, int64(0), confirmed.Levels().ReservedStock)
}

func TestLedger_ConfirmSale_Underflow(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	r := liveReservation(uuid.New(), 3, true)

	f.reservations.On("Settle", mock.Anything, r.ID, stock.ReservationConfirmed, f.now).
		Return(settled(r, stock.ReservationConfirmed, f.now), nil)
	f.items.On("ApplyChange", mock.Anything, mock.Anything, f.now).Return(nil, stock.ErrLedgerUnderflow)

	_, err := ledger.ConfirmSale(context.Background(), r.ID)

	assert.ErrorIs(t, err, stock.ErrLedgerUnderflow)
	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestLedger_AdjustStock(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	item := testItem(10, 2, true)

	f.items.On("ApplyChange", mock.Anything, stock.AdjustChange(item.ID, -5), f.now).Return(withCounters(item, 5, 2), nil)
	f.movements.On("Append", mock.Anything, mock.MatchedBy(func(m *stock.StockMovement) bool {
		return m.Kind == stock.MovementAdjust && m.StockDelta == -5 && m.Reason == "Damaged" && m.ActorID == "user-7"
	})).Return(nil)
	f.bus.On("Publish", mock.Anything, mock.MatchedBy(func(events []shared.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType() == stock.EventTypeStockAdjusted
	})).Return(nil)

	resp, err := ledger.AdjustStock(context.Background(), item.ID, AdjustStockRequest{Delta: -5, Reason: " Damaged ", ActorID: "user-7"})

	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Stock)
	assert.Equal(t, int64(3), resp.Available.Quantity)
	f.movements.AssertExpectations(t)
}

func TestLedger_AdjustStock_BelowReserved(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	itemID := uuid.New()

	f.items.On("ApplyChange", mock.Anything, stock.AdjustChange(itemID, -9), f.now).Return(nil, stock.ErrInvalidAdjustment)

	_, err := ledger.AdjustStock(context.Background(), itemID, AdjustStockRequest{Delta: -9, Reason: "Count", ActorID: "user-7"})

	assert.ErrorIs(t, err, stock.ErrInvalidAdjustment)
	f.movements.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestLedger_AdjustStock_Validation(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)

	tests := []struct {
		name string
		req  AdjustStockRequest
		code string
	}{
		{"missing reason", AdjustStockRequest{Delta: 1, Reason: "  ", ActorID: "u"}, "REASON_REQUIRED"},
		{"missing actor", AdjustStockRequest{Delta: 1, Reason: "Recount"}, "ACTOR_REQUIRED"},
		{"zero delta", AdjustStockRequest{Delta: 0, Reason: "Recount", ActorID: "u"}, "INVALID_DELTA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.AdjustStock(context.Background(), uuid.New(), tt.req)
			assert.Equal(t, tt.code, shared.CodeOf(err))
		})
	}
}

func TestLedger_AvailableStock(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	tracked := testItem(10, 4, true)
	untracked := testItem(0, 0, false)

	f.items.On("FindByID", mock.Anything, tracked.ID).Return(tracked, nil)
	f.items.On("FindByID", mock.Anything, untracked.ID).Return(untracked, nil)

	avail, err := ledger.AvailableStock(context.Background(), tracked.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), avail.Quantity)
	assert.False(t, avail.Unbounded)

	avail, err = ledger.AvailableStock(context.Background(), untracked.ID)
	require.NoError(t, err)
	assert.True(t, avail.Unbounded)
}

func TestLedger_ListOrderReservations(t *testing.T) {
	f := newLedgerFixture()
	ledger := newTestLedger(f)
	r1 := liveReservation(uuid.New(), 1, true)
	r2 := settled(liveReservation(uuid.New(), 2, true), stock.ReservationReleased, f.now)

	f.reservations.On("FindByOrder", mock.Anything, "SO-100").Return([]stock.Reservation{*r1, *r2}, nil)

	out, err := ledger.ListOrderReservations(context.Background(), "SO-100")

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, stock.ReservationLive, out[0].State)
	assert.Equal(t, stock.ReservationReleased, out[1].State)
}
