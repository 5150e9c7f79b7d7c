package stock

import "github.com/shopspring/decimal"

// Summary is a point-in-time aggregate over all items
type Summary struct {
	TotalItems     int64           `json:"total_items"`
	TrackedItems   int64           `json:"tracked_items"`
	InStock        int64           `json:"in_stock"`
	OutOfStock     int64           `json:"out_of_stock"`
	LowStock       int64           `json:"low_stock"`
	StockUnits     int64           `json:"stock_units"`
	ReservedUnits  int64           `json:"reserved_units"`
	AvailableUnits int64           `json:"available_units"`
	Valuation      decimal.Decimal `json:"valuation"`
}
