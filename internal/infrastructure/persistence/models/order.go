package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/stockengine/internal/domain/order"
)

// OrderLedgerRecordModel is the persistence model for order ledger records.
type OrderLedgerRecordModel struct {
	OrderRef  string    `gorm:"type:varchar(100);primary_key"`
	Status    string    `gorm:"type:varchar(16);not null"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLedgerRecordModel) TableName() string {
	return "order_ledger_records"
}

// ToDomain converts the persistence model to a domain LedgerRecord.
func (m *OrderLedgerRecordModel) ToDomain() *order.LedgerRecord {
	return &order.LedgerRecord{
		OrderRef:  m.OrderRef,
		Status:    order.Status(m.Status),
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// OrderLedgerRecordModelFromDomain creates a new persistence model from a domain LedgerRecord.
func OrderLedgerRecordModelFromDomain(r *order.LedgerRecord) *OrderLedgerRecordModel {
	return &OrderLedgerRecordModel{
		OrderRef:  r.OrderRef,
		Status:    string(r.Status),
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// OrderItemModel maps the order service's order_items table. The ledger only
// reads it.
type OrderItemModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderRef string    `gorm:"type:varchar(100);not null;index"`
	ItemID   uuid.UUID `gorm:"type:uuid;not null"`
	Quantity int64     `gorm:"not null"`
	LineNo   int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the row to a LineItem
func (m *OrderItemModel) ToDomain() order.LineItem {
	return order.LineItem{ItemID: m.ItemID, Quantity: m.Quantity}
}
