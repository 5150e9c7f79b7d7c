package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// ItemResponse represents a sellable item in API responses
type ItemResponse struct {
	ID                uuid.UUID          `json:"id"`
	SKU               string             `json:"sku"`
	Name              string             `json:"name"`
	Stock             int64              `json:"stock"`
	ReservedStock     int64              `json:"reserved_stock"`
	Available         stock.Availability `json:"available"`
	TrackInventory    bool               `json:"track_inventory"`
	IsInStock         bool               `json:"is_in_stock"`
	IsLowStock        bool               `json:"is_low_stock"`
	LowStockAlert     int64              `json:"low_stock_alert"`
	IsPerishable      bool               `json:"is_perishable"`
	ExpirationDate    *time.Time         `json:"expiration_date,omitempty"`
	ProductionDate    *time.Time         `json:"production_date,omitempty"`
	SweptAt           *time.Time         `json:"swept_at,omitempty"`
	AdvanceOrderDays  int                `json:"advance_order_days"`
	DeliveryTimeHours int                `json:"delivery_time_hours"`
	DeliveryTimeDays  int                `json:"delivery_time_days"`
	UnitName          string             `json:"unit_name"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ToItemResponse converts a domain item
func ToItemResponse(i *stock.SellableItem) ItemResponse {
	return ItemResponse{
		ID:                i.ID,
		SKU:               i.SKU,
		Name:              i.Name,
		Stock:             i.Stock,
		ReservedStock:     i.ReservedStock,
		Available:         i.Availability(),
		TrackInventory:    i.TrackInventory,
		IsInStock:         i.IsInStock,
		IsLowStock:        i.IsLowStock(),
		LowStockAlert:     i.LowStockAlert,
		IsPerishable:      i.IsPerishable,
		ExpirationDate:    i.ExpirationDate,
		ProductionDate:    i.ProductionDate,
		SweptAt:           i.SweptAt,
		AdvanceOrderDays:  i.AdvanceOrderDays,
		DeliveryTimeHours: i.DeliveryTimeHours,
		DeliveryTimeDays:  i.DeliveryTimeDays,
		UnitName:          i.UnitName,
		UnitPrice:         i.UnitPrice,
		Version:           i.Version,
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

// ItemRulesRequest carries the ordering rules of an item
type ItemRulesRequest struct {
	TrackInventory    bool            `json:"track_inventory" example:"true"`
	LowStockAlert     int64           `json:"low_stock_alert" binding:"min=0" example:"5"`
	IsPerishable      bool            `json:"is_perishable" example:"true"`
	ExpirationDate    *time.Time      `json:"expiration_date" binding:"required_if=IsPerishable true"`
	ProductionDate    *time.Time      `json:"production_date"`
	AdvanceOrderDays  int             `json:"advance_order_days" binding:"min=0,max=365" example:"1"`
	DeliveryTimeHours int             `json:"delivery_time_hours" binding:"min=0"`
	DeliveryTimeDays  int             `json:"delivery_time_days" binding:"min=0"`
	UnitName          string          `json:"unit_name" binding:"max=32" example:"bouquet"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

func (r ItemRulesRequest) toDomain() stock.ItemRules {
	return stock.ItemRules{
		TrackInventory:    r.TrackInventory,
		LowStockAlert:     r.LowStockAlert,
		IsPerishable:      r.IsPerishable,
		ExpirationDate:    r.ExpirationDate,
		ProductionDate:    r.ProductionDate,
		AdvanceOrderDays:  r.AdvanceOrderDays,
		DeliveryTimeHours: r.DeliveryTimeHours,
		DeliveryTimeDays:  r.DeliveryTimeDays,
		UnitName:          r.UnitName,
		UnitPrice:         r.UnitPrice,
	}
}

// RegisterItemRequest registers a sellable item with the ledger
type RegisterItemRequest struct {
	SKU          string `json:"sku" binding:"required,max=64" example:"ROSE-12"`
	Name         string `json:"name" binding:"required,max=200" example:"Dozen red roses"`
	OpeningStock int64  `json:"opening_stock" binding:"min=0" example:"40"`
	ItemRulesRequest
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID        uuid.UUID              `json:"id"`
	ItemID    uuid.UUID              `json:"item_id"`
	OrderRef  string                 `json:"order_ref"`
	Quantity  int64                  `json:"quantity"`
	State     stock.ReservationState `json:"state"`
	Tracked   bool                   `json:"tracked"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	SettledAt *time.Time             `json:"settled_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// ToReservationResponse converts a domain reservation
func ToReservationResponse(r *stock.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:        r.ID,
		ItemID:    r.ItemID,
		OrderRef:  r.OrderRef,
		Quantity:  r.Quantity,
		State:     r.State,
		Tracked:   r.Tracked,
		ExpiresAt: r.ExpiresAt,
		SettledAt: r.SettledAt,
		CreatedAt: r.CreatedAt,
	}
}

// ReserveRequest asks for units of an item on behalf of an order
type ReserveRequest struct {
	Quantity int64  `json:"quantity" binding:"required,gt=0" example:"3"`
	OrderRef string `json:"order_ref" binding:"required,max=100" example:"SO-2026-000123"`
}

// AdjustStockRequest corrects physical stock. ActorID is filled from the
// authenticated caller, never from the body.
type AdjustStockRequest struct {
	Delta   int64  `json:"delta" binding:"required,ne=0" example:"-2"`
	Reason  string `json:"reason" binding:"required,min=1,max=255" example:"Damaged in cold storage"`
	ActorID string `json:"-"`
}

// MovementResponse represents an audit log entry
type MovementResponse struct {
	ID            uuid.UUID          `json:"id"`
	ItemID        uuid.UUID          `json:"item_id"`
	Kind          stock.MovementKind `json:"kind"`
	StockDelta    int64              `json:"stock_delta"`
	ReservedDelta int64              `json:"reserved_delta"`
	StockAfter    int64              `json:"stock_after"`
	ReservedAfter int64              `json:"reserved_after"`
	ReservationID *uuid.UUID         `json:"reservation_id,omitempty"`
	OrderRef      string             `json:"order_ref,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	ActorID       string             `json:"actor_id,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// ToMovementResponse converts a movement
func ToMovementResponse(m *stock.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		ItemID:        m.ItemID,
		Kind:          m.Kind,
		StockDelta:    m.StockDelta,
		ReservedDelta: m.ReservedDelta,
		StockAfter:    m.StockAfter,
		ReservedAfter: m.ReservedAfter,
		ReservationID: m.ReservationID,
		OrderRef:      m.OrderRef,
		Reason:        m.Reason,
		ActorID:       m.ActorID,
		OccurredAt:    m.OccurredAt,
	}
}

// CanOrderResponse is the availability calculator's answer
type CanOrderResponse struct {
	ItemID uuid.UUID `json:"item_id"`
	stock.Decision
}

// HistoryFilter narrows an item history query
type HistoryFilter struct {
	Kinds    []string   `form:"kind"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=200"`
}

// ListFilter pages a plain list
type ListFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=200"`
}
