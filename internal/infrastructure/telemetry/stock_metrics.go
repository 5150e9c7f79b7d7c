package telemetry

import (
	"context"
	"errors"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when NewStockMetrics gets no meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Summarizer reads the aggregate stock levels
type Summarizer interface {
	Summarize(ctx context.Context) (*stock.Summary, error)
}

// StockMetrics records ledger outcomes and stock level gauges. It is
// subscribed to the event bus for the stock events and observes the
// background tasks.
type StockMetrics struct {
	ledgerEvents        *Counter
	unitsMoved          *Counter
	domainErrors        *Counter
	lowStockCrossings   *Counter
	sweepExpiredItems   *Counter
	sweepExpiredUnits   *Counter
	sweepFailures       *Counter
	reservationsExpired *Counter

	items     *Gauge
	units     *Gauge
	valuation *FloatGauge

	summarizer Summarizer
}

// NewStockMetrics creates the instruments on meter. summarizer feeds
// RefreshStockGauges and may be nil when gauges are not collected.
func NewStockMetrics(meter metric.Meter, summarizer Summarizer) (*StockMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &StockMetrics{summarizer: summarizer}

	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&m.ledgerEvents, "stock_ledger_events_total", "Ledger mutations by event type", "{event}"},
		{&m.unitsMoved, "stock_units_moved_total", "Units moved by ledger mutations", "{unit}"},
		{&m.domainErrors, "stock_domain_errors_total", "Rejected operations by error code", "{error}"},
		{&m.lowStockCrossings, "stock_low_stock_events_total", "Mutations leaving an item at or under its alert threshold", "{event}"},
		{&m.sweepExpiredItems, "stock_sweep_expired_items_total", "Items written off by the expiry sweep", "{item}"},
		{&m.sweepExpiredUnits, "stock_sweep_expired_units_total", "Units written off by the expiry sweep", "{unit}"},
		{&m.sweepFailures, "stock_sweep_failures_total", "Items the expiry sweep failed to process", "{item}"},
		{&m.reservationsExpired, "stock_reservations_expired_total", "Reservations released for exceeding their TTL", "{reservation}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	if m.items, err = NewGauge(meter, "stock_items", "Items by stock state", "{item}"); err != nil {
		return nil, err
	}
	if m.units, err = NewGauge(meter, "stock_units", "Tracked units by state", "{unit}"); err != nil {
		return nil, err
	}
	if m.valuation, err = NewFloatGauge(meter, "stock_valuation", "On-hand stock valued at unit price", "1"); err != nil {
		return nil, err
	}
	return m, nil
}

// EventTypes returns every ledger event
func (m *StockMetrics) EventTypes() []string {
	return []string{
		stock.EventTypeStockReserved,
		stock.EventTypeReservationReleased,
		stock.EventTypeSaleConfirmed,
		stock.EventTypeStockAdjusted,
		stock.EventTypeStockExpired,
		stock.EventTypeReservationExpired,
	}
}

// Handle counts one ledger event and the units it moved
func (m *StockMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	eventType := AttrEventType.String(event.EventType())
	m.ledgerEvents.Inc(ctx, eventType)

	if units := movedUnits(event); units > 0 {
		m.unitsMoved.Add(ctx, units, eventType)
	}
	if le, ok := event.(stock.LevelsEvent); ok && le.Levels().IsLow() {
		m.lowStockCrossings.Inc(ctx, eventType)
	}
	return nil
}

func movedUnits(event shared.DomainEvent) int64 {
	switch e := event.(type) {
	case *stock.StockReservedEvent:
		return e.Quantity
	case *stock.ReservationReleasedEvent:
		return e.Quantity
	case *stock.SaleConfirmedEvent:
		return e.Quantity
	case *stock.ReservationExpiredEvent:
		return e.Quantity
	case *stock.StockExpiredEvent:
		return e.ExpiredUnits
	case *stock.StockAdjustedEvent:
		if e.Delta < 0 {
			return -e.Delta
		}
		return e.Delta
	}
	return 0
}

// RecordDomainError counts a rejected operation. Errors without a domain
// code are counted as INTERNAL.
func (m *StockMetrics) RecordDomainError(ctx context.Context, operation string, err error) {
	if err == nil {
		return
	}
	code := shared.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	m.domainErrors.Inc(ctx, AttrErrorCode.String(code), AttrOperation.String(operation))
}

// RecordSweep records one expiry sweep
func (m *StockMetrics) RecordSweep(ctx context.Context, expired int, expiredUnits int64, failed int) {
	m.sweepExpiredItems.Add(ctx, int64(expired))
	m.sweepExpiredUnits.Add(ctx, expiredUnits)
	m.sweepFailures.Add(ctx, int64(failed))
}

// RecordReservationExpiry records one reservation TTL pass
func (m *StockMetrics) RecordReservationExpiry(ctx context.Context, released, failed int) {
	m.reservationsExpired.Add(ctx, int64(released), AttrOutcome.String("released"))
	m.reservationsExpired.Add(ctx, int64(failed), AttrOutcome.String("failed"))
}

// RefreshStockGauges reads the current summary and records every gauge
func (m *StockMetrics) RefreshStockGauges(ctx context.Context) error {
	if m.summarizer == nil {
		return nil
	}
	s, err := m.summarizer.Summarize(ctx)
	if err != nil {
		return err
	}

	m.items.Record(ctx, s.InStock, AttrState.String("in_stock"))
	m.items.Record(ctx, s.OutOfStock, AttrState.String("out_of_stock"))
	m.items.Record(ctx, s.LowStock, AttrState.String("low_stock"))
	m.units.Record(ctx, s.StockUnits, AttrState.String("on_hand"))
	m.units.Record(ctx, s.ReservedUnits, AttrState.String("reserved"))
	m.units.Record(ctx, s.AvailableUnits, AttrState.String("available"))
	m.valuation.Record(ctx, s.Valuation.InexactFloat64())
	return nil
}

var _ shared.EventHandler = (*StockMetrics)(nil)
