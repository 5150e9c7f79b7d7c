package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/stretchr/testify/mock"
)

// MockItemRepository is a mock implementation of stock.ItemRepository
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
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]stock.SellableItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockItemRepository) Create(ctx context.Context, item *stock.SellableItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockItemRepository) UpdateRules(ctx context.Context, item *stock.SellableItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.SellableItem), args.Error(1)
}

func (m *MockItemRepository) FindLowStock(ctx context.Context, filter shared.Filter) ([]stock.SellableItem, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]stock.SellableItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockItemRepository) Summarize(ctx context.Context) (*stock.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Summary), args.Error(1)
}

// MockReservationRepository is a mock implementation of stock.ReservationRepository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, r *stock.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stock.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Settle(ctx context.Context, id uuid.UUID, to stock.ReservationState, now time.Time) (*stock.Reservation, error) {
	args := m.Called(ctx, id, to, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Reservation), args.Error(1)
}

// MockMovementRepository is a mock implementation of stock.MovementRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Append(ctx context.Context, mv *stock.StockMovement) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockMovementRepository) FindByItem(ctx context.Context, itemID uuid.UUID, filter stock.MovementFilter) ([]stock.StockMovement, int64, error) {
	args := m.Called(ctx, itemID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]stock.StockMovement), args.Get(1).(int64), args.Error(2)
}

// MockEventBus is a mock implementation of shared.EventPublisher
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockSnapshotStore is a mock implementation of SnapshotStore
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	args := m.Called(ctx, storageKey, data, contentType)
	return args.Error(0)
}

func (m *MockSnapshotStore) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type ledgerFixture struct {
	items        *MockItemRepository
	reservations *MockReservationRepository
	movements    *MockMovementRepository
	bus          *MockEventBus
	scope        *NoOpTransactionScope
	now          time.Time
}

func newLedgerFixture() *ledgerFixture {
	f := &ledgerFixture{
		items:        new(MockItemRepository),
		reservations: new(MockReservationRepository),
		movements:    new(MockMovementRepository),
		bus:          new(MockEventBus),
		now:          time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
	}
	f.scope = NewNoOpTransactionScope(f.items, f.reservations, f.movements, nil)
	return f
}

func (f *ledgerFixture) clock() time.Time { return f.now }

func testItem(stockQty, reserved int64, tracked bool) *stock.SellableItem {
	item, err := stock.NewSellableItem("ROSE-12", "Dozen red roses", stockQty, stock.ItemRules{TrackInventory: tracked})
	if err != nil {
		panic(err)
	}
	item.ReservedStock = reserved
	item.RecomputeInStock()
	return item
}

// withCounters returns a copy of item with new counter values
func withCounters(item *stock.SellableItem, stockQty, reserved int64) *stock.SellableItem {
	c := *item
	c.Stock = stockQty
	c.ReservedStock = reserved
	c.RecomputeInStock()
	return &c
}
