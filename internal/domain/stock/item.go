package stock

import (
	"strings"
	"time"

	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeSellableItem is the aggregate type used on stock events
const AggregateTypeSellableItem = "SellableItem"

// SellableItem is the stock-bearing unit offered for sale.
//
// Stock and ReservedStock are owned by the ledger: they change only through a
// LedgerChange applied by the repository's guarded update, never by saving the
// struct. While TrackInventory is true the ledger keeps
// 0 <= ReservedStock <= Stock. IsInStock is a cache recomputed on every
// mutation.
type SellableItem struct {
	shared.BaseAggregateRoot
	SKU               string
	Name              string
	Stock             int64
	ReservedStock     int64
	TrackInventory    bool
	IsInStock         bool
	LowStockAlert     int64
	IsPerishable      bool
	ExpirationDate    *time.Time
	ProductionDate    *time.Time
	AdvanceOrderDays  int
	DeliveryTimeHours int
	DeliveryTimeDays  int
	UnitName          string
	UnitPrice         decimal.Decimal
	// SweptAt is set by the expiry sweep. A swept item accepts no new
	// reservations until its rules give it a fresh expiration date.
	SweptAt *time.Time
}

// ItemRules are the administrator-controlled ordering attributes of an item.
type ItemRules struct {
	TrackInventory    bool
	LowStockAlert     int64
	IsPerishable      bool
	ExpirationDate    *time.Time
	ProductionDate    *time.Time
	AdvanceOrderDays  int
	DeliveryTimeHours int
	DeliveryTimeDays  int
	UnitName          string
	UnitPrice         decimal.Decimal
}

// Validate checks rule values
func (r ItemRules) Validate() error {
	if r.LowStockAlert < 0 {
		return shared.NewDomainError("INVALID_LOW_STOCK_ALERT", "Low stock alert cannot be negative")
	}
	if r.AdvanceOrderDays < 0 {
		return shared.NewDomainError("INVALID_ADVANCE_ORDER_DAYS", "Advance order days cannot be negative")
	}
	if r.DeliveryTimeHours < 0 || r.DeliveryTimeDays < 0 {
		return shared.NewDomainError("INVALID_DELIVERY_TIME", "Delivery time cannot be negative")
	}
	if r.UnitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_UNIT_PRICE", "Unit price cannot be negative")
	}
	if r.IsPerishable && r.ExpirationDate == nil {
		return shared.NewDomainError("EXPIRATION_DATE_REQUIRED", "Perishable items require an expiration date")
	}
	if r.ExpirationDate != nil && r.ProductionDate != nil && r.ExpirationDate.Before(*r.ProductionDate) {
		return shared.NewDomainError("INVALID_EXPIRATION_DATE", "Expiration date cannot precede production date")
	}
	return nil
}

// NewSellableItem creates an item with its opening stock
func NewSellableItem(sku, name string, openingStock int64, rules ItemRules) (*SellableItem, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if len(sku) > 64 {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot exceed 64 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Name cannot be empty")
	}
	if openingStock < 0 {
		return nil, shared.NewDomainError("INVALID_OPENING_STOCK", "Opening stock cannot be negative")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	item := &SellableItem{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		Name:              strings.TrimSpace(name),
		Stock:             openingStock,
	}
	item.setRules(rules)
	item.RecomputeInStock()
	return item, nil
}

// ApplyRules replaces the ordering rules. A swept item whose new rules no
// longer make it expired becomes reservable again.
func (i *SellableItem) ApplyRules(rules ItemRules, policy ExpiryPolicy, now time.Time) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	i.setRules(rules)
	if i.SweptAt != nil && !i.IsExpired(policy, now) {
		i.SweptAt = nil
	}
	i.RecomputeInStock()
	i.UpdatedAt = now
	return nil
}

func (i *SellableItem) setRules(r ItemRules) {
	i.TrackInventory = r.TrackInventory
	i.LowStockAlert = r.LowStockAlert
	i.IsPerishable = r.IsPerishable
	i.ExpirationDate = r.ExpirationDate
	i.ProductionDate = r.ProductionDate
	i.AdvanceOrderDays = r.AdvanceOrderDays
	i.DeliveryTimeHours = r.DeliveryTimeHours
	i.DeliveryTimeDays = r.DeliveryTimeDays
	i.UnitName = r.UnitName
	i.UnitPrice = r.UnitPrice
}

// Rules returns the item's current rules
func (i *SellableItem) Rules() ItemRules {
	return ItemRules{
		TrackInventory:    i.TrackInventory,
		LowStockAlert:     i.LowStockAlert,
		IsPerishable:      i.IsPerishable,
		ExpirationDate:    i.ExpirationDate,
		ProductionDate:    i.ProductionDate,
		AdvanceOrderDays:  i.AdvanceOrderDays,
		DeliveryTimeHours: i.DeliveryTimeHours,
		DeliveryTimeDays:  i.DeliveryTimeDays,
		UnitName:          i.UnitName,
		UnitPrice:         i.UnitPrice,
	}
}

// RecomputeInStock refreshes the IsInStock cache
func (i *SellableItem) RecomputeInStock() {
	i.IsInStock = !i.TrackInventory || (i.Stock > 0 && i.SweptAt == nil)
}

// Availability returns how many units a new reservation may take
func (i *SellableItem) Availability() Availability {
	if !i.TrackInventory {
		return UnboundedAvailability()
	}
	avail := i.Stock - i.ReservedStock
	if avail < 0 || i.SweptAt != nil {
		avail = 0
	}
	return Availability{Quantity: avail}
}

// IsLowStock reports whether a tracked item has fallen to its alert threshold
func (i *SellableItem) IsLowStock() bool {
	return i.TrackInventory && i.LowStockAlert > 0 && i.Stock-i.ReservedStock <= i.LowStockAlert
}

// IsExpired reports whether a perishable item is past its expiration under policy
func (i *SellableItem) IsExpired(policy ExpiryPolicy, now time.Time) bool {
	if !i.IsPerishable || i.ExpirationDate == nil {
		return false
	}
	return policy.IsExpired(*i.ExpirationDate, now)
}

// Levels snapshots the counters for events and reports
func (i *SellableItem) Levels() StockLevels {
	return StockLevels{
		ItemID:         i.ID,
		Stock:          i.Stock,
		ReservedStock:  i.ReservedStock,
		TrackInventory: i.TrackInventory,
		LowStockAlert:  i.LowStockAlert,
	}
}

// Availability is the result of an available-stock read. Untracked items
// report Unbounded and a zero Quantity.
type Availability struct {
	Quantity  int64 `json:"quantity"`
	Unbounded bool  `json:"unbounded"`
}

// UnboundedAvailability is returned for items that do not track inventory
func UnboundedAvailability() Availability {
	return Availability{Unbounded: true}
}

// Covers reports whether qty units can be taken
func (a Availability) Covers(qty int64) bool {
	return a.Unbounded || a.Quantity >= qty
}
