package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/slot-calendar/internal/calendar"
)

// CalendarHandler serves the read-only calendar views.
type CalendarHandler struct {
    Svc *calendar.Service
}

func NewCalendarHandler(svc *calendar.Service) *CalendarHandler {
    return &CalendarHandler{Svc: svc}
}

// Calendar handles GET /v1/calendar?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *CalendarHandler) Calendar(c echo.Context) error {
    from, to := c.QueryParam("from"), c.QueryParam("to")
    ctx, cancel := requestCtx(c)
    defer cancel()

    days, err := h.Svc.Range(ctx, from, to)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"from": from, "to": to, "days": days})
}

// Slots handles GET /v1/slots?from&to and lists provisioned counters.
func (h *CalendarHandler) Slots(c echo.Context) error {
    from, to := c.QueryParam("from"), c.QueryParam("to")
    ctx, cancel := requestCtx(c)
    defer cancel()

    counters, err := h.Svc.Availability(ctx, from, to)
    if err != nil {
        return writeError(c, err)
    }
    type item struct {
        Date      string `json:"date"`
        Slot      string `json:"slot"`
        Count     int    `json:"count"`
        Capacity  int    `json:"capacity"`
        Available int    `json:"available"`
    }
    items := make([]item, 0, len(counters))
    for _, sc := range counters {
        items = append(items, item{sc.Date, string(sc.Slot), sc.Count, sc.Capacity, sc.Available()})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
