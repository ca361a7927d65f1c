package handler

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// HealthHandler reports liveness along with database reachability.
type HealthHandler struct{ DB *sql.DB }

// Health answers 200 "ok" when the database responds to a ping and 503
// otherwise, so load balancers stop routing to an instance that cannot
// reach its store.
func (h *HealthHandler) Health(c echo.Context) error {
    if h.DB != nil {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := h.DB.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "database unavailable")
        }
    }
    return c.String(http.StatusOK, "ok")
}
