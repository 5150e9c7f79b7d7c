package stock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopcore/stockengine/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Ledger is the only writer of stock and reserved stock.
//
// Every mutation is one guarded conditional update executed inside a
// transaction together with the reservation row and movement entry it
// belongs to. The ledger holds no in-process locks; two callers racing for
// the last units are serialized by the database and exactly one wins.
type Ledger struct {
	items          stock.ItemRepository
	reservations   stock.ReservationRepository
	movements      stock.MovementRepository
	txScope        TransactionScope
	eventBus       shared.EventPublisher
	logger         *zap.Logger
	reservationTTL time.Duration
	now            func() time.Time
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithReservationTTL makes new reservations expire after ttl. Zero disables.
func WithReservationTTL(ttl time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.reservationTTL = ttl
	}
}

// WithLedgerClock overrides the time source
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a Ledger
func NewLedger(
	items stock.ItemRepository,
	reservations stock.ReservationRepository,
	movements stock.MovementRepository,
	txScope TransactionScope,
	logger *zap.Logger,
	opts ...LedgerOption,
) *Ledger {
	l := &Ledger{
		items:        items,
		reservations: reservations,
		movements:    movements,
		txScope:      txScope,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetEventBus sets the publisher used after commits
func (l *Ledger) SetEventBus(bus shared.EventPublisher) {
	l.eventBus = bus
}

// Reserve holds qty units of an item for orderRef.
// Fails with ErrInsufficientStock or ErrItemNotFound; untracked items always
// succeed without touching counters.
func (l *Ledger) Reserve(ctx context.Context, itemID uuid.UUID, req ReserveRequest) (*ReservationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reserve",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, itemID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderRef, req.OrderRef),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, req.Quantity),
	)
	defer span.End()

	var (
		reservation *stock.Reservation
		event       shared.DomainEvent
	)
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, event, err = l.ReserveInTx(ctx, repos, itemID, req.Quantity, req.OrderRef)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		l.logger.Debug("reservation refused",
			zap.String("item_id", itemID.String()),
			zap.String("order_ref", req.OrderRef),
			zap.Int64("quantity", req.Quantity),
			zap.Error(err),
		)
		return nil, err
	}

	l.publish(ctx, event)
	resp := ToReservationResponse(reservation)
	return &resp, nil
}

// ReserveInTx reserves within the caller's transaction. The returned event
// must be published by the caller after commit.
func (l *Ledger) ReserveInTx(
	ctx context.Context,
	repos TransactionalRepositories,
	itemID uuid.UUID,
	qty int64,
	orderRef string,
) (*stock.Reservation, shared.DomainEvent, error) {
	if qty <= 0 {
		return nil, nil, stock.ErrInvalidQuantity
	}
	reservation, err := stock.NewReservation(itemID, orderRef, qty, true, l.reservationTTL)
	if err != nil {
		return nil, nil, err
	}

	now := l.now()
	reservation.StartAt(now)
	change := stock.ReserveChange(itemID, qty)
	after, err := repos.Items().ApplyChange(ctx, change, now)
	if errors.Is(err, stock.ErrItemNotTracked) {
		reservation.Tracked = false
		after, err = repos.Items().FindByID(ctx, itemID)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := repos.Reservations().Create(ctx, reservation); err != nil {
		return nil, nil, err
	}
	if reservation.Tracked {
		movement := stock.NewStockMovement(change, after, now).ForReservation(reservation)
		if err := repos.Movements().Append(ctx, movement); err != nil {
			return nil, nil, err
		}
	}

	return reservation, stock.NewStockReservedEvent(reservation, after.Levels()), nil
}

// Release returns a live reservation's units to available stock.
// A second release fails with ErrAlreadyReleased and changes nothing.
func (l *Ledger) Release(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return l.settle(ctx, reservationID, stock.ReservationReleased)
}

// ConfirmSale turns a live reservation into a sale: stock and reserved stock
// drop together, so available stock does not change.
func (l *Ledger) ConfirmSale(ctx context.Context, reservationID uuid.UUID) (*ReservationResponse, error) {
	return l.settle(ctx, reservationID, stock.ReservationConfirmed)
}

func (l *Ledger) settle(ctx context.Context, reservationID uuid.UUID, to stock.ReservationState) (*ReservationResponse, error) {
	method := "release"
	if to == stock.ReservationConfirmed {
		method = "confirm_sale"
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", method,
		telemetry.WithAttribute(telemetry.SpanAttrReservationID, reservationID.String()),
	)
	defer span.End()

	var (
		reservation *stock.Reservation
		event       shared.DomainEvent
	)
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, event, err = l.SettleInTx(ctx, repos, reservationID, to)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	l.publish(ctx, event)
	resp := ToReservationResponse(reservation)
	return &resp, nil
}

// ReleaseInTx releases within the caller's transaction
func (l *Ledger) ReleaseInTx(ctx context.Context, repos TransactionalRepositories, reservationID uuid.UUID) (*stock.Reservation, shared.DomainEvent, error) {
	return l.SettleInTx(ctx, repos, reservationID, stock.ReservationReleased)
}

// ConfirmSaleInTx confirms within the caller's transaction
func (l *Ledger) ConfirmSaleInTx(ctx context.Context, repos TransactionalRepositories, reservationID uuid.UUID) (*stock.Reservation, shared.DomainEvent, error) {
	return l.SettleInTx(ctx, repos, reservationID, stock.ReservationConfirmed)
}

// SettleInTx flips the reservation out of LIVE first, so a concurrent settle
// of the same reservation loses before any counter moves, then applies the
// matching counter change.
func (l *Ledger) SettleInTx(
	ctx context.Context,
	repos TransactionalRepositories,
	reservationID uuid.UUID,
	to stock.ReservationState,
) (*stock.Reservation, shared.DomainEvent, error) {
	now := l.now()
	reservation, err := repos.Reservations().Settle(ctx, reservationID, to, now)
	if err != nil {
		return nil, nil, err
	}

	var after *stock.SellableItem
	if change, ok := reservation.SettlementChange(to); ok {
		after, err = repos.Items().ApplyChange(ctx, change, now)
		if err != nil {
			if errors.Is(err, stock.ErrLedgerUnderflow) {
				l.logger.Error("ledger underflow while settling reservation",
					zap.String("reservation_id", reservationID.String()),
					zap.String("item_id", reservation.ItemID.String()),
					zap.Int64("quantity", reservation.Quantity),
				)
			}
			return nil, nil, err
		}
		movement := stock.NewStockMovement(change, after, now).ForReservation(reservation)
		if err := repos.Movements().Append(ctx, movement); err != nil {
			return nil, nil, err
		}
	} else {
		after, err = repos.Items().FindByID(ctx, reservation.ItemID)
		if err != nil {
			return nil, nil, err
		}
	}

	var event shared.DomainEvent
	if to == stock.ReservationConfirmed {
		event = stock.NewSaleConfirmedEvent(reservation, after.Levels())
	} else {
		event = stock.NewReservationReleasedEvent(reservation, after.Levels())
	}
	return reservation, event, nil
}

// AdjustStock changes physical stock by delta. The result must stay at or
// above reserved stock; reason and actor land in the audit log.
func (l *Ledger) AdjustStock(ctx context.Context, itemID uuid.UUID, req AdjustStockRequest) (*ItemResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "adjust_stock",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, itemID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrDelta, req.Delta),
	)
	defer span.End()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, shared.NewDomainError("REASON_REQUIRED", "Adjustment reason is required")
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return nil, shared.NewDomainError("ACTOR_REQUIRED", "Adjustment actor is required")
	}
	change := stock.AdjustChange(itemID, req.Delta)
	if err := change.Validate(); err != nil {
		return nil, err
	}

	var after *stock.SellableItem
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := l.now()
		var err error
		after, err = repos.Items().ApplyChange(ctx, change, now)
		if err != nil {
			return err
		}
		movement := stock.NewStockMovement(change, after, now).WithReason(reason, req.ActorID)
		return repos.Movements().Append(ctx, movement)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	l.logger.Info("stock adjusted",
		zap.String("item_id", itemID.String()),
		zap.Int64("delta", req.Delta),
		zap.Int64("stock_after", after.Stock),
		zap.String("actor_id", req.ActorID),
		zap.String("reason", reason),
	)
	l.publish(ctx, stock.NewStockAdjustedEvent(after.Levels(), req.Delta, reason, req.ActorID))

	resp := ToItemResponse(after)
	return &resp, nil
}

// AvailableStock returns stock minus reserved stock, or an unbounded result
// for untracked items. Reads never block on writers.
func (l *Ledger) AvailableStock(ctx context.Context, itemID uuid.UUID) (stock.Availability, error) {
	item, err := l.items.FindByID(ctx, itemID)
	if err != nil {
		return stock.Availability{}, err
	}
	return item.Availability(), nil
}

// GetReservation returns a reservation by ID
func (l *Ledger) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	r, err := l.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToReservationResponse(r)
	return &resp, nil
}

// ListOrderReservations returns every reservation recorded for an order
func (l *Ledger) ListOrderReservations(ctx context.Context, orderRef string) ([]ReservationResponse, error) {
	rs, err := l.reservations.FindByOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	out := make([]ReservationResponse, len(rs))
	for i := range rs {
		out[i] = ToReservationResponse(&rs[i])
	}
	return out, nil
}

// Publish hands events to the bus after a commit. Failures are logged only:
// the ledger state is already durable.
func (l *Ledger) Publish(ctx context.Context, events ...shared.DomainEvent) {
	l.publish(ctx, events...)
}

func (l *Ledger) publish(ctx context.Context, events ...shared.DomainEvent) {
	if l.eventBus == nil {
		return
	}
	pending := make([]shared.DomainEvent, 0, len(events))
	for _, e := range events {
		if e != nil {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return
	}
	if err := l.eventBus.Publish(ctx, pending...); err != nil {
		l.logger.Warn("failed to publish ledger events",
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
	}
}
