package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slot-calendar/internal/config"
	"github.com/iliyamo/slot-calendar/internal/handler"
	"github.com/iliyamo/slot-calendar/internal/middleware"
	"github.com/iliyamo/slot-calendar/internal/model"
)

// RegisterAdmin registers admin-scoped endpoints under /v1/admin.  All
// routes require a valid JWT and the admin role.  Slot and ledger writes
// change what the calendar shows, so they invalidate the response cache.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/reservations", h.ListReservations)
	g.GET("/reservations/:id/history", h.History)

	invalidate := middleware.InvalidateCache(cacheCfg, rdb)
	g.POST("/slots", h.ProvisionSlots, invalidate)
	g.PUT("/slots/:date/:slot", h.SetCapacity, invalidate)
	g.GET("/ledger/audit", h.AuditLedger)
	g.POST("/ledger/repair", h.RepairLedger, invalidate)

	g.GET("/users", h.ListUsers)
	g.PATCH("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)
}
