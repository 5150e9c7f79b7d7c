package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/shared"
	"github.com/shopcore/stockengine/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// SellableItemModel is the persistence model for the SellableItem aggregate root.
// The CHECK constraints mirror the ledger invariant; the guarded update keeps
// them from ever firing.
type SellableItemModel struct {
	AggregateModel
	SKU               string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name              string          `gorm:"type:varchar(200);not null"`
	Stock             int64           `gorm:"not null;default:0;check:chk_sellable_items_stock,stock >= reserved_stock"`
	ReservedStock     int64           `gorm:"not null;default:0;check:chk_sellable_items_reserved,reserved_stock >= 0"`
	TrackInventory    bool            `gorm:"not null;default:true"`
	IsInStock         bool            `gorm:"not null;default:false;index"`
	LowStockAlert     int64           `gorm:"not null;default:0"`
	IsPerishable      bool            `gorm:"not null;default:false"`
	ExpirationDate    *time.Time      `gorm:"index"`
	ProductionDate    *time.Time
	AdvanceOrderDays  int             `gorm:"not null;default:0"`
	DeliveryTimeHours int             `gorm:"not null;default:0"`
	DeliveryTimeDays  int             `gorm:"not null;default:0"`
	UnitName          string          `gorm:"type:varchar(32)"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SweptAt           *time.Time
}

// TableName returns the table name for GORM
func (SellableItemModel) TableName() string {
	return "sellable_items"
}

// ToDomain converts the persistence model to a domain SellableItem.
func (m *SellableItemModel) ToDomain() *stock.SellableItem {
	return &stock.SellableItem{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SKU:               m.SKU,
		Name:              m.Name,
		Stock:             m.Stock,
		ReservedStock:     m.ReservedStock,
		TrackInventory:    m.TrackInventory,
		IsInStock:         m.IsInStock,
		LowStockAlert:     m.LowStockAlert,
		IsPerishable:      m.IsPerishable,
		ExpirationDate:    m.ExpirationDate,
		ProductionDate:    m.ProductionDate,
		AdvanceOrderDays:  m.AdvanceOrderDays,
		DeliveryTimeHours: m.DeliveryTimeHours,
		DeliveryTimeDays:  m.DeliveryTimeDays,
		UnitName:          m.UnitName,
		UnitPrice:         m.UnitPrice,
		SweptAt:           m.SweptAt,
	}
}

// FromDomain populates the persistence model from a domain SellableItem.
func (m *SellableItemModel) FromDomain(i *stock.SellableItem) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.SKU = i.SKU
	m.Name = i.Name
	m.Stock = i.Stock
	m.ReservedStock = i.ReservedStock
	m.TrackInventory = i.TrackInventory
	m.IsInStock = i.IsInStock
	m.LowStockAlert = i.LowStockAlert
	m.IsPerishable = i.IsPerishable
	m.ExpirationDate = i.ExpirationDate
	m.ProductionDate = i.ProductionDate
	m.AdvanceOrderDays = i.AdvanceOrderDays
	m.DeliveryTimeHours = i.DeliveryTimeHours
	m.DeliveryTimeDays = i.DeliveryTimeDays
	m.UnitName = i.UnitName
	m.UnitPrice = i.UnitPrice
	m.SweptAt = i.SweptAt
}

// SellableItemModelFromDomain creates a new persistence model from a domain SellableItem.
func SellableItemModelFromDomain(i *stock.SellableItem) *SellableItemModel {
	m := &SellableItemModel{}
	m.FromDomain(i)
	return m
}

// StockReservationModel is the persistence model for the Reservation entity.
type StockReservationModel struct {
	BaseModel
	ItemID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderRef  string    `gorm:"type:varchar(100);not null;index:idx_stock_reservations_order_state,priority:1"`
	Quantity  int64     `gorm:"not null;check:chk_stock_reservations_quantity,quantity > 0"`
	State     string    `gorm:"type:varchar(16);not null;index:idx_stock_reservations_order_state,priority:2"`
	Tracked   bool      `gorm:"not null;default:true"`
	ExpiresAt *time.Time
	SettledAt *time.Time
}

// TableName returns the table name for GORM
func (StockReservationModel) TableName() string {
	return "stock_reservations"
}

// ToDomain converts the persistence model to a domain Reservation.
func (m *StockReservationModel) ToDomain() *stock.Reservation {
	return &stock.Reservation{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ItemID:    m.ItemID,
		OrderRef:  m.OrderRef,
		Quantity:  m.Quantity,
		State:     stock.ReservationState(m.State),
		Tracked:   m.Tracked,
		ExpiresAt: m.ExpiresAt,
		SettledAt: m.SettledAt,
	}
}

// FromDomain populates the persistence model from a domain Reservation.
func (m *StockReservationModel) FromDomain(r *stock.Reservation) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.ItemID = r.ItemID
	m.OrderRef = r.OrderRef
	m.Quantity = r.Quantity
	m.State = string(r.State)
	m.Tracked = r.Tracked
	m.ExpiresAt = r.ExpiresAt
	m.SettledAt = r.SettledAt
}

// StockReservationModelFromDomain creates a new persistence model from a domain Reservation.
func StockReservationModelFromDomain(r *stock.Reservation) *StockReservationModel {
	m := &StockReservationModel{}
	m.FromDomain(r)
	return m
}

// StockMovementModel is the persistence model for the append-only movement log.
type StockMovementModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	ItemID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_movements_item_time,priority:1"`
	Kind          string     `gorm:"type:varchar(16);not null"`
	StockDelta    int64      `gorm:"not null"`
	ReservedDelta int64      `gorm:"not null"`
	StockAfter    int64      `gorm:"not null"`
	ReservedAfter int64      `gorm:"not null"`
	ReservationID *uuid.UUID `gorm:"type:uuid;index"`
	OrderRef      string     `gorm:"type:varchar(100)"`
	Reason        string     `gorm:"type:varchar(255)"`
	ActorID       string     `gorm:"type:varchar(100)"`
	OccurredAt    time.Time  `gorm:"not null;index:idx_stock_movements_item_time,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() *stock.StockMovement {
	return &stock.StockMovement{
		ID:            m.ID,
		ItemID:        m.ItemID,
		Kind:          stock.MovementKind(m.Kind),
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

// StockMovementModelFromDomain creates a new persistence model from a domain StockMovement.
func StockMovementModelFromDomain(mv *stock.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:            mv.ID,
		ItemID:        mv.ItemID,
		Kind:          string(mv.Kind),
		StockDelta:    mv.StockDelta,
		ReservedDelta: mv.ReservedDelta,
		StockAfter:    mv.StockAfter,
		ReservedAfter: mv.ReservedAfter,
		ReservationID: mv.ReservationID,
		OrderRef:      mv.OrderRef,
		Reason:        mv.Reason,
		ActorID:       mv.ActorID,
		OccurredAt:    mv.OccurredAt,
	}
}
