package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

const (
	defaultSweepBatchSize   = 200
	defaultSweepMaxAttempts = 3
)

// ExpirySweeper writes off the unreserved stock of expired perishable items.
//
// Each item is swept with the ledger's guarded update pinned to the counters
// it just read. If a reservation or release slips in between, the update
// affects no row and the item is re-read and retried, so the sweep can never
// take units an order already holds.
type ExpirySweeper struct {
	items       stock.ItemRepository
	txScope     TransactionScope
	policy      stock.ExpiryPolicy
	eventBus    shared.EventPublisher
	logger      *zap.Logger
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

// SweeperOption configures an ExpirySweeper
type SweeperOption func(*ExpirySweeper)

// WithSweepBatchSize caps candidates fetched per query
func WithSweepBatchSize(n int) SweeperOption {
	return func(s *ExpirySweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSweepClock overrides the time source
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *ExpirySweeper) {
		s.now = now
	}
}

// NewExpirySweeper creates an ExpirySweeper
func NewExpirySweeper(
	items stock.ItemRepository,
	txScope TransactionScope,
	policy stock.ExpiryPolicy,
	logger *zap.Logger,
	opts ...SweeperOption,
) *ExpirySweeper {
	s := &ExpirySweeper{
		items:       items,
		txScope:     txScope,
		policy:      policy,
		logger:      logger,
		batchSize:   defaultSweepBatchSize,
		maxAttempts: defaultSweepMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventBus sets the event publisher
func (s *ExpirySweeper) SetEventBus(bus shared.EventPublisher) {
	s.eventBus = bus
}

// SweepStats summarizes one sweep run
type SweepStats struct {
	Scanned      int       `json:"scanned"`
	Expired      int       `json:"expired"`
	ExpiredUnits int64     `json:"expired_units"`
	Conflicts    int       `json:"conflicts"`
	Failed       int       `json:"failed"`
	Cutoff       time.Time `json:"cutoff"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Sweep runs one pass over all expiry candidates
func (s *ExpirySweeper) Sweep(ctx context.Context) (*SweepStats, error) {
	now := s.now()
	stats := &SweepStats{
		Cutoff:      s.policy.Cutoff(now),
		ProcessedAt: now,
	}
	var cursor *stock.ExpiryCursor

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		candidates, err := s.items.FindExpiryCandidates(ctx, stats.Cutoff, cursor, s.batchSize)
		if err != nil {
			s.logger.Error("failed to load expiry candidates", zap.Error(err))
			return nil, err
		}

		for i := range candidates {
			item := &candidates[i]
			stats.Scanned++

			units, expired, err := s.sweepItem(ctx, item, now)
			switch {
			case err == nil:
				if expired {
					stats.Expired++
					stats.ExpiredUnits += units
				}
			case errors.Is(err, shared.ErrConcurrencyConflict):
				stats.Conflicts++
			default:
				stats.Failed++
				s.logger.Error("failed to expire item stock",
					zap.String("item_id", item.ID.String()),
					zap.Error(err),
				)
			}
		}

		if len(candidates) < s.batchSize {
			break
		}
		cursor = stock.CursorAfter(&candidates[len(candidates)-1])
	}

	if stats.Scanned > 0 {
		s.logger.Info("expiry sweep completed",
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int64("expired_units", stats.ExpiredUnits),
			zap.Int("conflicts", stats.Conflicts),
			zap.Int("failed", stats.Failed),
		)
	} else {
		s.logger.Debug("no expired stock found", zap.Time("cutoff", stats.Cutoff))
	}
	return stats, nil
}

// sweepItem returns the number of units written off and whether the item was
// swept at all
func (s *ExpirySweeper) sweepItem(ctx context.Context, item *stock.SellableItem, now time.Time) (int64, bool, error) {
	current := item
	for attempt := 1; ; attempt++ {
		if !current.IsExpired(s.policy, now) || !current.TrackInventory {
			return 0, false, nil
		}
		seen := stock.CounterSnapshot{Stock: current.Stock, Reserved: current.ReservedStock}
		change := stock.ExpireChange(current.ID, seen)

		var after *stock.SellableItem
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			after, err = repos.Items().ApplyChange(ctx, change, now)
			if err != nil {
				return err
			}
			movement := stock.NewStockMovement(change, after, now).WithReason("expired", "system:expiry-sweeper")
			return repos.Movements().Append(ctx, movement)
		})
		if err == nil {
			units := -change.StockDelta
			if s.eventBus != nil {
				if pubErr := s.eventBus.Publish(ctx, stock.NewStockExpiredEvent(after.Levels(), units)); pubErr != nil {
					s.logger.Warn("failed to publish StockExpired event",
						zap.String("item_id", current.ID.String()),
						zap.Error(pubErr),
					)
				}
			}
			s.logger.Debug("expired item stock",
				zap.String("item_id", current.ID.String()),
				zap.Int64("expired_units", units),
				zap.Int64("reserved_kept", after.ReservedStock),
			)
			return units, true, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= s.maxAttempts {
			return 0, false, err
		}

		current, err = s.items.FindByID(ctx, current.ID)
		if err != nil {
			return 0, false, err
		}
	}
}
