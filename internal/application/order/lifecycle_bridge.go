package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"github.com/shopcore/stockengine/internal/domain/order"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

// LifecycleBridge turns order status changes into ledger operations.
//
// The order ledger record remembers the last status applied for each order.
// Creating it claims the order's reservation step and commits together with
// the reservations of every line. Advancing it is a conditional update
// executed in the same transaction as the settlements it triggers, so a
// terminal transition takes effect exactly once and DELIVERED and CANCELLED
// can never both win.
type LifecycleBridge struct {
	ledger  *stockapp.Ledger
	txScope stockapp.TransactionScope
	records order.LedgerRecordRepository
	lines   order.LineItemReader
	logger  *zap.Logger
	now     func() time.Time
}

// BridgeOption configures a LifecycleBridge
type BridgeOption func(*LifecycleBridge)

// WithLineItemReader sets the reader used when events carry no lines
func WithLineItemReader(r order.LineItemReader) BridgeOption {
	return func(b *LifecycleBridge) {
		b.lines = r
	}
}

// WithBridgeClock overrides the time source
func WithBridgeClock(now func() time.Time) BridgeOption {
	return func(b *LifecycleBridge) {
		b.now = now
	}
}

// NewLifecycleBridge creates a LifecycleBridge
func NewLifecycleBridge(
	ledger *stockapp.Ledger,
	txScope stockapp.TransactionScope,
	records order.LedgerRecordRepository,
	logger *zap.Logger,
	opts ...BridgeOption,
) *LifecycleBridge {
	b := &LifecycleBridge{
		ledger:  ledger,
		txScope: txScope,
		records: records,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TransitionResult reports what a status change did to the ledger
type TransitionResult struct {
	OrderRef     string                         `json:"order_ref"`
	From         order.Status                   `json:"from"`
	To           order.Status                   `json:"to"`
	Effect       string                         `json:"effect"`
	Reservations []stockapp.ReservationResponse `json:"reservations"`
}

// EventTypes returns the event types this handler is interested in
func (b *LifecycleBridge) EventTypes() []string {
	return []string{order.EventTypeOrderStatusChanged}
}

// Handle processes an OrderStatusChangedEvent
func (b *LifecycleBridge) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*order.OrderStatusChangedEvent)
	if !ok {
		b.logger.Error("unexpected event type",
			zap.String("expected", order.EventTypeOrderStatusChanged),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			order.EventTypeOrderStatusChanged, event.EventType())
	}
	_, err := b.Apply(ctx, changed)
	return err
}

// Apply executes the ledger effect of one status change
func (b *LifecycleBridge) Apply(ctx context.Context, e *order.OrderStatusChangedEvent) (*TransitionResult, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	from := order.StatusNone
	rec, err := b.records.FindByOrderRef(ctx, e.OrderRef)
	switch {
	case err == nil:
		from = rec.Status
	case errors.Is(err, order.ErrLedgerRecordNotFound):
	default:
		return nil, err
	}
	if e.From != from {
		b.logger.Warn("order status event disagrees with recorded status",
			zap.String("order_ref", e.OrderRef),
			zap.String("event_from", string(e.From)),
			zap.String("recorded", string(from)),
		)
	}

	effect, err := order.EffectOf(from, e.To)
	if err != nil {
		b.logger.Info("order status transition rejected",
			zap.String("order_ref", e.OrderRef),
			zap.String("from", string(from)),
			zap.String("to", string(e.To)),
		)
		if from == order.StatusNone {
			// the PENDING transaction may not have committed yet
			return nil, fmt.Errorf("order %s: %s -> %s: %w: %w", e.OrderRef, displayStatus(from), e.To, err, order.ErrLedgerRecordNotFound)
		}
		return nil, fmt.Errorf("order %s: %s -> %s: %w", e.OrderRef, displayStatus(from), e.To, err)
	}

	result := &TransitionResult{OrderRef: e.OrderRef, From: from, To: e.To, Effect: effect.String()}
	switch effect {
	case order.EffectReserve:
		result.Reservations, err = b.reserveOrder(ctx, e)
	case order.EffectConfirmSale, order.EffectRelease:
		result.Reservations, err = b.settleOrder(ctx, e.OrderRef, from, e.To, effect)
	default:
		err = b.records.Advance(ctx, e.OrderRef, from, e.To, b.now())
	}
	if err != nil {
		return nil, err
	}

	b.logger.Info("order status applied to ledger",
		zap.String("order_ref", e.OrderRef),
		zap.String("from", string(from)),
		zap.String("to", string(e.To)),
		zap.String("effect", result.Effect),
		zap.Int("reservations", len(result.Reservations)),
	)
	return result, nil
}

// reserveOrder creates the order's record and reserves every line in one
// transaction. A failing line rolls back the record and the earlier lines, and
// no other transition can see the order until every line is held.
func (b *LifecycleBridge) reserveOrder(ctx context.Context, e *order.OrderStatusChangedEvent) ([]stockapp.ReservationResponse, error) {
	lines := e.Lines
	if len(lines) == 0 && b.lines != nil {
		var err error
		if lines, err = b.lines.LineItems(ctx, e.OrderRef); err != nil {
			return nil, fmt.Errorf("read line items of order %s: %w", e.OrderRef, err)
		}
	}

	var (
		reserved []stockapp.ReservationResponse
		events   []shared.DomainEvent
	)
	// item rows are locked in id order so two orders never wait on each other
	lockOrder := make([]int, len(lines))
	for i := range lockOrder {
		lockOrder[i] = i
	}
	sort.SliceStable(lockOrder, func(x, y int) bool {
		return bytes.Compare(lines[lockOrder[x]].ItemID[:], lines[lockOrder[y]].ItemID[:]) < 0
	})

	err := b.txScope.Execute(ctx, func(repos stockapp.TransactionalRepositories) error {
		reserved = make([]stockapp.ReservationResponse, len(lines))
		events = make([]shared.DomainEvent, 0, len(lines))

		if err := repos.OrderRecords().Create(ctx, order.NewLedgerRecord(e.OrderRef, b.now())); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return fmt.Errorf("order %s is already reserved: %w", e.OrderRef, order.ErrInvalidTransition)
			}
			return err
		}

		for _, i := range lockOrder {
			line := lines[i]
			r, event, err := b.ledger.ReserveInTx(ctx, repos, line.ItemID, line.Quantity, e.OrderRef)
			if err != nil {
				b.logger.Warn("failed to reserve stock for order line",
					zap.String("order_ref", e.OrderRef),
					zap.String("item_id", line.ItemID.String()),
					zap.Int64("quantity", line.Quantity),
					zap.Int("lines_rolled_back", len(events)),
					zap.Error(err),
				)
				return fmt.Errorf("reserve item %s for order %s: %w", line.ItemID, e.OrderRef, err)
			}
			reserved[i] = stockapp.ToReservationResponse(r)
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.ledger.Publish(ctx, events...)
	return reserved, nil
}

// settleOrder advances the record and settles every live reservation of the
// order in one transaction. A delivery is refused when any of the order's
// reservations was released before it, since the delivered units were no
// longer held.
func (b *LifecycleBridge) settleOrder(
	ctx context.Context,
	orderRef string,
	from, to order.Status,
	effect order.LedgerEffect,
) ([]stockapp.ReservationResponse, error) {
	var (
		settled []stockapp.ReservationResponse
		events  []shared.DomainEvent
	)
	err := b.txScope.Execute(ctx, func(repos stockapp.TransactionalRepositories) error {
		settled, events = nil, nil
		if err := repos.OrderRecords().Advance(ctx, orderRef, from, to, b.now()); err != nil {
			return err
		}
		live, err := b.reservationsToSettle(ctx, repos, orderRef, effect)
		if err != nil {
			return err
		}
		sort.SliceStable(live, func(x, y int) bool {
			return bytes.Compare(live[x].ItemID[:], live[y].ItemID[:]) < 0
		})
		for i := range live {
			r, event, err := b.settleOne(ctx, repos, live[i].ID, effect)
			if errors.Is(err, stock.ErrAlreadyReleased) {
				if effect == order.EffectConfirmSale {
					return lapsedError(orderRef, []uuid.UUID{live[i].ID})
				}
				b.logger.Debug("reservation settled concurrently, skipping",
					zap.String("order_ref", orderRef),
					zap.String("reservation_id", live[i].ID.String()),
				)
				continue
			}
			if err != nil {
				return fmt.Errorf("settle reservation %s of order %s: %w", live[i].ID, orderRef, err)
			}
			settled = append(settled, stockapp.ToReservationResponse(r))
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrReservationLapsed) {
			b.logger.Warn("delivery refused, order reservations already released",
				zap.String("order_ref", orderRef),
				zap.Error(err),
			)
		}
		return nil, err
	}

	b.ledger.Publish(ctx, events...)
	return settled, nil
}

// reservationsToSettle returns the order's live reservations. For a sale
// confirmation every reservation of the order must still be live.
func (b *LifecycleBridge) reservationsToSettle(
	ctx context.Context,
	repos stockapp.TransactionalRepositories,
	orderRef string,
	effect order.LedgerEffect,
) ([]stock.Reservation, error) {
	if effect != order.EffectConfirmSale {
		return repos.Reservations().FindLiveByOrder(ctx, orderRef)
	}

	all, err := repos.Reservations().FindByOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	live := make([]stock.Reservation, 0, len(all))
	var lapsed []uuid.UUID
	for i := range all {
		switch all[i].State {
		case stock.ReservationLive:
			live = append(live, all[i])
		case stock.ReservationReleased:
			lapsed = append(lapsed, all[i].ID)
		}
	}
	if len(lapsed) > 0 {
		return nil, lapsedError(orderRef, lapsed)
	}
	return live, nil
}

func lapsedError(orderRef string, ids []uuid.UUID) error {
	return fmt.Errorf("order %s: reservations %v were released before delivery: %w", orderRef, ids, order.ErrReservationLapsed)
}

func (b *LifecycleBridge) settleOne(
	ctx context.Context,
	repos stockapp.TransactionalRepositories,
	id uuid.UUID,
	effect order.LedgerEffect,
) (*stock.Reservation, shared.DomainEvent, error) {
	if effect == order.EffectConfirmSale {
		return b.ledger.ConfirmSaleInTx(ctx, repos, id)
	}
	return b.ledger.ReleaseInTx(ctx, repos, id)
}

func displayStatus(s order.Status) string {
	if s == order.StatusNone {
		return "(none)"
	}
	return string(s)
}

var _ shared.EventHandler = (*LifecycleBridge)(nil)
