package router

import (
	"github.com/gin-gonic/gin"
	"github.com/shopcore/stockengine/internal/infrastructure/auth"
	"github.com/shopcore/stockengine/internal/interfaces/http/handler"
)

// Handlers bundles the API handlers mounted under /api/v1
type Handlers struct {
	Items        *handler.ItemHandler
	Reservations *handler.ReservationHandler
	Adjustments  *handler.AdjustmentHandler
	OrderEvents  *handler.OrderEventHandler
	Reports      *handler.ReportHandler
	Admin        *handler.AdminHandler
}

// Guards builds the access checks for protected routes. Authenticate is
// JWTAuth, Require is RequirePermission.
type Guards struct {
	Authenticate gin.HandlerFunc
	Require      func(permission string) gin.HandlerFunc
}

func (g Guards) protect(permission string) []gin.HandlerFunc {
	return []gin.HandlerFunc{g.Authenticate, g.Require(permission)}
}

// StockRoutes returns the domain groups of the stock API.
//
// Stock reads, reservations and the order callback are open to the internal
// network. Adjustments, snapshot export and the admin endpoints need a token
// carrying the matching permission.
func StockRoutes(h Handlers, g Guards) []RouteRegistrar {
	items := NewDomainGroup("items", "/items")
	items.POST("", h.Items.Register)
	items.GET("", h.Items.List)
	items.GET("/:id", h.Items.Get)
	items.PUT("/:id/rules", h.Items.UpdateRules)
	items.GET("/:id/availability", h.Items.Availability)
	items.GET("/:id/can-order", h.Items.CanOrder)
	items.POST("/:id/reservations", h.Reservations.Reserve)
	items.GET("/:id/history", h.Reports.History)

	adjustments := NewDomainGroup("adjustments", "/items").Use(g.protect(auth.PermissionStockAdjust)...)
	adjustments.POST("/:id/adjustments", h.Adjustments.Adjust)

	reservations := NewDomainGroup("reservations", "/reservations")
	reservations.GET("/:id", h.Reservations.Get)
	reservations.POST("/:id/release", h.Reservations.Release)
	reservations.POST("/:id/confirm", h.Reservations.Confirm)

	orders := NewDomainGroup("orders", "/orders")
	orders.GET("/:ref/reservations", h.Reservations.ListByOrder)
	orders.POST("/:ref/status-events", h.OrderEvents.StatusEvent)

	reports := NewDomainGroup("reports", "/reports")
	reports.GET("/stock-summary", h.Reports.Summary)
	reports.GET("/low-stock", h.Reports.LowStock)
	reports.POST("/snapshots", append(g.protect(auth.PermissionStockReport), h.Reports.ExportSnapshot)...)

	admin := NewDomainGroup("admin", "/admin").Use(g.protect(auth.PermissionStockAdmin)...)
	admin.POST("/expiry-sweeps", h.Admin.RunExpirySweep)
	admin.POST("/reservation-expiry", h.Admin.RunReservationExpiry)
	admin.GET("/jobs/:task", h.Admin.LastJobRun)

	return []RouteRegistrar{items, adjustments, reservations, orders, reports, admin}
}
