package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

const defaultOverdueBatchSize = 500

// ReservationExpiryService releases reservations that outlived their TTL.
// It only has work when the ledger stamps reservations with a TTL.
type ReservationExpiryService struct {
	reservations stock.ReservationRepository
	ledger       *Ledger
	eventBus     shared.EventPublisher
	logger       *zap.Logger
	batchSize    int
	now          func() time.Time
}

// NewReservationExpiryService creates a ReservationExpiryService
func NewReservationExpiryService(
	reservations stock.ReservationRepository,
	ledger *Ledger,
	logger *zap.Logger,
) *ReservationExpiryService {
	return &ReservationExpiryService{
		reservations: reservations,
		ledger:       ledger,
		logger:       logger,
		batchSize:    defaultOverdueBatchSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetEventBus sets the event publisher
func (s *ReservationExpiryService) SetEventBus(bus shared.EventPublisher) {
	s.eventBus = bus
}

// ExpiredReservationStats summarizes one run
type ExpiredReservationStats struct {
	TotalOverdue    int       `json:"total_overdue"`
	SuccessReleased int       `json:"success_released"`
	AlreadySettled  int       `json:"already_settled"`
	FailedReleases  int       `json:"failed_releases"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// ReleaseOverdue releases every overdue live reservation
func (s *ReservationExpiryService) ReleaseOverdue(ctx context.Context) (*ExpiredReservationStats, error) {
	stats := &ExpiredReservationStats{ProcessedAt: s.now()}

	overdue, err := s.reservations.FindOverdue(ctx, stats.ProcessedAt, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to find overdue reservations", zap.Error(err))
		return nil, err
	}
	stats.TotalOverdue = len(overdue)
	if stats.TotalOverdue == 0 {
		return stats, nil
	}

	for i := range overdue {
		r := &overdue[i]
		if _, err := s.ledger.Release(ctx, r.ID); err != nil {
			if errors.Is(err, stock.ErrAlreadyReleased) {
				// settled by its order between the query and now
				stats.AlreadySettled++
				continue
			}
			s.logger.Error("Failed to release overdue reservation",
				zap.String("reservation_id", r.ID.String()),
				zap.String("order_ref", r.OrderRef),
				zap.Error(err),
			)
			stats.FailedReleases++
			continue
		}
		stats.SuccessReleased++

		if s.eventBus != nil {
			if err := s.eventBus.Publish(ctx, stock.NewReservationExpiredEvent(r)); err != nil {
				s.logger.Warn("Failed to publish ReservationExpired event",
					zap.String("reservation_id", r.ID.String()),
					zap.Error(err),
				)
			}
		}
	}

	s.logger.Info("Completed overdue reservation release",
		zap.Int("total", stats.TotalOverdue),
		zap.Int("released", stats.SuccessReleased),
		zap.Int("already_settled", stats.AlreadySettled),
		zap.Int("failed", stats.FailedReleases),
	)
	return stats, nil
}
