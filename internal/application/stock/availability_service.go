package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/stock"
)

// AvailabilityService answers "may this item be ordered for that date?".
// It is read-only and ignores stock counts.
type AvailabilityService struct {
	items  stock.ItemRepository
	policy stock.ExpiryPolicy
	now    func() time.Time
}

// NewAvailabilityService creates an AvailabilityService
func NewAvailabilityService(items stock.ItemRepository, policy stock.ExpiryPolicy) *AvailabilityService {
	return &AvailabilityService{
		items:  items,
		policy: policy,
		now:    time.Now,
	}
}

// Policy returns the expiry policy in effect
func (s *AvailabilityService) Policy() stock.ExpiryPolicy {
	return s.policy
}

// CanOrder evaluates expiry and lead time for an item
func (s *AvailabilityService) CanOrder(ctx context.Context, itemID uuid.UUID, deliveryDate *time.Time) (*CanOrderResponse, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &CanOrderResponse{
		ItemID:   itemID,
		Decision: stock.EvaluateOrdering(item, deliveryDate, s.now(), s.policy),
	}, nil
}
