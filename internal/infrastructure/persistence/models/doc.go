// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel
//   - stock.go: sellable items, reservations and the movement log
//   - order.go: order ledger records and the read-only order_items view
package models
