package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"go.uber.org/zap"
)

// ItemService registers sellable items and maintains their ordering rules.
// It never writes stock counters; opening stock is the only exception and is
// set on creation.
type ItemService struct {
	items  stock.ItemRepository
	policy stock.ExpiryPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewItemService creates an ItemService
func NewItemService(items stock.ItemRepository, policy stock.ExpiryPolicy, logger *zap.Logger) *ItemService {
	return &ItemService{
		items:  items,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates a new item
func (s *ItemService) Register(ctx context.Context, req RegisterItemRequest) (*ItemResponse, error) {
	item, err := stock.NewSellableItem(req.SKU, req.Name, req.OpeningStock, req.toDomain())
	if err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("sellable item registered",
		zap.String("item_id", item.ID.String()),
		zap.String("sku", item.SKU),
		zap.Int64("opening_stock", item.Stock),
		zap.Bool("track_inventory", item.TrackInventory),
	)
	resp := ToItemResponse(item)
	return &resp, nil
}

// Get returns an item by ID
func (s *ItemService) Get(ctx context.Context, id uuid.UUID) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToItemResponse(item)
	return &resp, nil
}

// List pages through items
func (s *ItemService) List(ctx context.Context, filter ListFilter) (shared.Paginated[ItemResponse], error) {
	f := toFilter(filter.Page, filter.PageSize)
	items, total, err := s.items.FindAll(ctx, f)
	if err != nil {
		return shared.Paginated[ItemResponse]{}, err
	}
	out := make([]ItemResponse, len(items))
	for i := range items {
		out[i] = ToItemResponse(&items[i])
	}
	return shared.NewPaginated(out, total, f.Page, f.PageSize), nil
}

// UpdateRules replaces an item's ordering rules
func (s *ItemService) UpdateRules(ctx context.Context, id uuid.UUID, req ItemRulesRequest) (*ItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasSwept := item.SweptAt != nil
	if err := item.ApplyRules(req.toDomain(), s.policy, s.now()); err != nil {
		return nil, err
	}
	if err := s.items.UpdateRules(ctx, item); err != nil {
		return nil, err
	}

	// Counters may have moved since the read; return what is stored now.
	fresh, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wasSwept && fresh.SweptAt == nil {
		s.logger.Info("expired item reopened for sale",
			zap.String("item_id", id.String()),
			zap.Timep("expiration_date", fresh.ExpirationDate),
		)
	}
	resp := ToItemResponse(fresh)
	return &resp, nil
}

func toFilter(page, pageSize int) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	return f
}
