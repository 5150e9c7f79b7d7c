package scheduler

import (
	"context"

	stockapp "github.com/shopcore/stockengine/internal/application/stock"
	"go.uber.org/zap"
)

// Task names, also used as lock names
const (
	TaskExpirySweep       = "expiry-sweep"
	TaskReservationExpiry = "reservation-expiry"
	TaskStockGauges       = "stock-gauges"
)

// Sweeper runs one expiry sweep
type Sweeper interface {
	Sweep(ctx context.Context) (*stockapp.SweepStats, error)
}

// OverdueReleaser releases overdue reservations
type OverdueReleaser interface {
	ReleaseOverdue(ctx context.Context) (*stockapp.ExpiredReservationStats, error)
}

// SweepObserver receives the outcome of every sweep
type SweepObserver interface {
	RecordSweep(ctx context.Context, expired int, expiredUnits int64, failed int)
}

// ReservationExpiryObserver receives the outcome of every TTL pass
type ReservationExpiryObserver interface {
	RecordReservationExpiry(ctx context.Context, released, failed int)
}

// NewSweepTask wraps the expiry sweeper. observer may be nil.
func NewSweepTask(sweeper Sweeper, observer SweepObserver, logger *zap.Logger) Task {
	return TaskFunc{TaskName: TaskExpirySweep, Fn: func(ctx context.Context) error {
		stats, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		if observer != nil {
			observer.RecordSweep(ctx, stats.Expired, stats.ExpiredUnits, stats.Failed)
		}
		logger.Info("expiry sweep finished",
			zap.Int("scanned", stats.Scanned),
			zap.Int("expired", stats.Expired),
			zap.Int64("expired_units", stats.ExpiredUnits),
			zap.Int("failed", stats.Failed),
		)
		return nil
	}}
}

// NewReservationExpiryTask wraps the reservation TTL service. observer may be nil.
func NewReservationExpiryTask(releaser OverdueReleaser, observer ReservationExpiryObserver, logger *zap.Logger) Task {
	return TaskFunc{TaskName: TaskReservationExpiry, Fn: func(ctx context.Context) error {
		stats, err := releaser.ReleaseOverdue(ctx)
		if err != nil {
			return err
		}
		if observer != nil {
			observer.RecordReservationExpiry(ctx, stats.SuccessReleased, stats.FailedReleases)
		}
		if stats.TotalOverdue > 0 {
			logger.Info("overdue reservations processed",
				zap.Int("total", stats.TotalOverdue),
				zap.Int("released", stats.SuccessReleased),
				zap.Int("already_settled", stats.AlreadySettled),
				zap.Int("failed", stats.FailedReleases),
			)
		}
		return nil
	}}
}

// NewGaugeTask refreshes the stock level gauges
func NewGaugeTask(refresh func(ctx context.Context) error) Task {
	return TaskFunc{TaskName: TaskStockGauges, Fn: refresh}
}
