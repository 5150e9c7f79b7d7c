package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	orderapp "github.com/shopcore/stockengine/internal/application/order"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/mock"
)

type MockItemService struct{ mock.Mock }

func (m *MockItemService) Register(ctx context.Context, req stockapp.RegisterItemRequest) (*stockapp.ItemResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.ItemResponse), args.Error(1)
}

func (m *MockItemService) Get(ctx context.Context, id uuid.UUID) (*stockapp.ItemResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.ItemResponse), args.Error(1)
}

func (m *MockItemService) List(ctx context.Context, filter stockapp.ListFilter) (shared.Paginated[stockapp.ItemResponse], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[stockapp.ItemResponse]), args.Error(1)
}

func (m *MockItemService) UpdateRules(ctx context.Context, id uuid.UUID, req stockapp.ItemRulesRequest) (*stockapp.ItemResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.ItemResponse), args.Error(1)
}

type MockAvailability struct{ mock.Mock }

func (m *MockAvailability) CanOrder(ctx context.Context, itemID uuid.UUID, deliveryDate *time.Time) (*stockapp.CanOrderResponse, error) {
	args := m.Called(ctx, itemID, deliveryDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.CanOrderResponse), args.Error(1)
}

// MockLedger covers every ledger-facing handler interface
type MockLedger struct{ mock.Mock }

func (m *MockLedger) reservation(args mock.Arguments) (*stockapp.ReservationResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.ReservationResponse), args.Error(1)
}

func (m *MockLedger) Reserve(ctx context.Context, itemID uuid.UUID, req stockapp.ReserveRequest) (*stockapp.ReservationResponse, error) {
	return m.reservation(m.Called(ctx, itemID, req))
}

func (m *MockLedger) Release(ctx context.Context, id uuid.UUID) (*stockapp.ReservationResponse, error) {
	return m.reservation(m.Called(ctx, id))
}

func (m *MockLedger) ConfirmSale(ctx context.Context, id uuid.UUID) (*stockapp.ReservationResponse, error) {
	return m.reservation(m.Called(ctx, id))
}

func (m *MockLedger) GetReservation(ctx context.Context, id uuid.UUID) (*stockapp.ReservationResponse, error) {
	return m.reservation(m.Called(ctx, id))
}

func (m *MockLedger) ListOrderReservations(ctx context.Context, orderRef string) ([]stockapp.ReservationResponse, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]stockapp.ReservationResponse), args.Error(1)
}

func (m *MockLedger) AdjustStock(ctx context.Context, itemID uuid.UUID, req stockapp.AdjustStockRequest) (*stockapp.ItemResponse, error) {
	args := m.Called(ctx, itemID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.ItemResponse), args.Error(1)
}

func (m *MockLedger) AvailableStock(ctx context.Context, itemID uuid.UUID) (stock.Availability, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(stock.Availability), args.Error(1)
}

type MockBridge struct{ mock.Mock }

func (m *MockBridge) Apply(ctx context.Context, e *order.OrderStatusChangedEvent) (*orderapp.TransitionResult, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.TransitionResult), args.Error(1)
}

type MockReports struct{ mock.Mock }

func (m *MockReports) Summary(ctx context.Context) (*stock.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.Summary), args.Error(1)
}

func (m *MockReports) LowStockItems(ctx context.Context, filter stockapp.ListFilter) (shared.Paginated[stockapp.ItemResponse], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[stockapp.ItemResponse]), args.Error(1)
}

func (m *MockReports) History(ctx context.Context, itemID uuid.UUID, filter stockapp.HistoryFilter) (shared.Paginated[stockapp.MovementResponse], error) {
	args := m.Called(ctx, itemID, filter)
	return args.Get(0).(shared.Paginated[stockapp.MovementResponse]), args.Error(1)
}

func (m *MockReports) ExportSnapshot(ctx context.Context) (*stockapp.SnapshotResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.SnapshotResponse), args.Error(1)
}

type MockBackground struct{ mock.Mock }

func (m *MockBackground) Sweep(ctx context.Context) (*stockapp.SweepStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.SweepStats), args.Error(1)
}

func (m *MockBackground) ReleaseOverdue(ctx context.Context) (*stockapp.ExpiredReservationStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stockapp.ExpiredReservationStats), args.Error(1)
}

func (m *MockBackground) LastRun(task string) (scheduler.JobRun, bool) {
	args := m.Called(task)
	return args.Get(0).(scheduler.JobRun), args.Bool(1)
}

func (m *MockBackground) RecordSweep(ctx context.Context, expired int, expiredUnits int64, failed int) {
	m.Called(ctx, expired, expiredUnits, failed)
}

func (m *MockBackground) RecordReservationExpiry(ctx context.Context, released, failed int) {
	m.Called(ctx, released, failed)
}

type MockErrorRecorder struct{ mock.Mock }

func (m *MockErrorRecorder) RecordDomainError(ctx context.Context, operation string, err error) {
	m.Called(ctx, operation, err)
}
