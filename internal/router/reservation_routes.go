package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slot-calendar/internal/config"
	"github.com/iliyamo/slot-calendar/internal/handler"
	"github.com/iliyamo/slot-calendar/internal/middleware"
	"github.com/iliyamo/slot-calendar/internal/model"
)

// RegisterReservations registers the calendar and reservation endpoints.
// All of them require a valid JWT with the user or admin role.  Calendar
// reads are served through the Redis response cache; every reservation
// write invalidates it.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, cal *handler.CalendarHandler, jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)

	cached := middleware.NewRedisCache(cacheCfg, rdb)
	g.GET("/calendar", cal.Calendar, cached)
	g.GET("/slots", cal.Slots, cached)

	writes := g.Group("/reservations", middleware.InvalidateCache(cacheCfg, rdb))
	writes.POST("", r.Create)
	writes.GET("", r.List)
	writes.GET("/:id", r.Get)
	writes.PUT("/:id", r.Update)
	writes.POST("/:id/cancel", r.Cancel)
	writes.DELETE("/:id", r.Delete)
}
