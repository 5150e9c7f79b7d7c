package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLedgerRecordRepository struct {
	mock.Mock
}

func (m *MockLedgerRecordRepository) FindByOrderRef(ctx context.Context, orderRef string) (*order.LedgerRecord, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.LedgerRecord), args.Error(1)
}

func (m *MockLedgerRecordRepository) Create(ctx context.Context, rec *order.LedgerRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockLedgerRecordRepository) Advance(ctx context.Context, orderRef string, from, to order.Status, now time.Time) error {
	return m.Called(ctx, orderRef, from, to, now).Error(0)
}

type MockLineItemReader struct {
	mock.Mock
}

func (m *MockLineItemReader) LineItems(ctx context.Context, orderRef string) ([]order.LineItem, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.LineItem), args.Error(1)
}

type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.SellableItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.SellableItem), args.Error(1)
}

func (m *MockItemRepository) FindBySKU(ctx context.Context, sku string) (*stock.SellableItem, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.SellableItem), args.Error(1)
}

func (m *MockItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]stock.SellableItem, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]stock.SellableItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockItemRepository) Create(ctx context.Context, item *stock.SellableItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockItemRepository) UpdateRules(ctx context.Context, item *stock.SellableItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockItemRepository) ApplyChange(ctx context.Context, change stock.LedgerChange, now time.Time) (*stock.SellableItem, error) {
	args := m.Called(ctx, change, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.SellableItem), args.Error(1)
}

func (m *MockItemRepository) FindExpiryCandidates(ctx context.Context, cutoff time.Time, after *stock.ExpiryCursor, limit int) ([]stock.SellableItem, error) {
	args := m.Called(ctx, cutoff, after, limit)
	return args.Get(0).([]stock.SellableItem), args.Error(1)
}

func (m *MockItemRepository) FindLowStock(ctx context.Context, filter shared.Filter) ([]stock.SellableItem, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]stock.SellableItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockItemRepository) Summarize(ctx context.Context) (*stock.Summary, error) {
	args := m.Called(ctx)
	return args.Get(0).(*stock.Summary), args.Error(1)
}

type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, r *stock.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindByOrder(ctx context.Context, orderRef string) ([]stock.Reservation, error) {
	args := m.Called(ctx, orderRef)
	return args.Get(0).([]stock.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindLiveByOrder(ctx context.Context, orderRef string) ([]stock.Reservation, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]stock.Reservation, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]stock.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Settle(ctx context.Context, id uuid.UUID, to stock.ReservationState, now time.Time) (*stock.Reservation, error) {
	args := m.Called(ctx, id, to, now)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, stock.ReservationState, time.Time) *stock.Reservation); ok {
		return fn(ctx, id, to, now), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Reservation), args.Error(1)
}

type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Append(ctx context.Context, mv *stock.StockMovement) error {
	return m.Called(ctx, mv).Error(0)
}

func (m *MockMovementRepository) FindByItem(ctx context.Context, itemID uuid.UUID, filter stock.MovementFilter) ([]stock.StockMovement, int64, error) {
	args := m.Called(ctx, itemID, filter)
	return args.Get(0).([]stock.StockMovement), args.Get(1).(int64), args.Error(2)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

// recordingScope runs work like NoOpTransactionScope and remembers whether a
// transaction is open and how the last one ended
type recordingScope struct {
	inner      *stockapp.NoOpTransactionScope
	active     bool
	executions int
	lastErr    error
}

func newRecordingScope(f *bridgeFixture) *recordingScope {
	s := &recordingScope{
		inner: stockapp.NewNoOpTransactionScope(f.items, f.reservations, f.movements, f.records),
	}
	f.bridge.txScope = s
	return s
}

func (s *recordingScope) Execute(ctx context.Context, fn func(repos stockapp.TransactionalRepositories) error) error {
	s.executions++
	s.active = true
	s.lastErr = s.inner.Execute(ctx, fn)
	s.active = false
	return s.lastErr
}

// mustBeInside fails the test when the mocked call runs outside a transaction
func (s *recordingScope) mustBeInside(t *testing.T) func(mock.Arguments) {
	return func(mock.Arguments) {
		assert.True(t, s.active, "call made outside the transaction")
	}
}
